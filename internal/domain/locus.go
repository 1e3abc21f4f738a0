// Package domain holds the locus wire model and the per-meeting session
// snapshot. Types here carry data and small derivations, no I/O.
package domain

import (
	"encoding/json"
	"strings"
)

type SelfState string

const (
	SelfIdle   SelfState = "IDLE"
	SelfJoined SelfState = "JOINED"
	SelfLeft   SelfState = "LEFT"
)

// Reasons the server attaches to self when it leaves us.
const (
	ReasonInactive = "INACTIVE"
	ReasonMoved    = "MOVED"
	ReasonEnded    = "MEETING_ENDED"
)

type FullState struct {
	State string `json:"state"` // ACTIVE, INACTIVE, TERMINATING
	Type  string `json:"type,omitempty"`
}

const FullStateInactive = "INACTIVE"

type Person struct {
	ID   string `json:"id"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

type Device struct {
	URL           string `json:"url"`
	State         string `json:"state"`
	Intent        string `json:"intent,omitempty"` // e.g. MOVE_MEDIA
	KeepAliveURL  string `json:"keepAliveUrl,omitempty"`
	KeepAliveSecs int    `json:"keepAliveSecs,omitempty"`
}

type Self struct {
	ID      string    `json:"id"`
	State   SelfState `json:"state"`
	Reason  string    `json:"reason,omitempty"`
	InLobby bool      `json:"inLobby,omitempty"`
	Muted   bool      `json:"muted,omitempty"`
	Devices []Device  `json:"devices,omitempty"`
}

// Device returns the self device registered under url.
func (s *Self) Device(url string) (Device, bool) {
	if s == nil {
		return Device{}, false
	}
	for _, d := range s.Devices {
		if d.URL == url {
			return d, true
		}
	}
	return Device{}, false
}

type Info struct {
	DisplayHints   []string `json:"userDisplayHints,omitempty"`
	Moderator      bool     `json:"moderator,omitempty"`
	Policy         string   `json:"policy,omitempty"`
	WebExMeetingID string   `json:"webExMeetingId,omitempty"`
}

// Floor dispositions.
const (
	FloorGranted  = "GRANTED"
	FloorReleased = "RELEASED"
)

type Floor struct {
	Disposition string  `json:"disposition"`
	Beneficiary *Person `json:"beneficiary,omitempty"`
	Requester   *Person `json:"requester,omitempty"`
}

// Media share track names.
const (
	ShareContent    = "content"
	ShareWhiteboard = "whiteboard"
)

type MediaShare struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ResourceURL string `json:"resourceUrl,omitempty"`
	Floor       *Floor `json:"floor,omitempty"`
}

// Granted reports whether the share currently holds the floor.
func (m *MediaShare) Granted() bool {
	return m != nil && m.Floor != nil && m.Floor.Disposition == FloorGranted
}

// BeneficiaryID is empty when nobody holds the floor.
func (m *MediaShare) BeneficiaryID() string {
	if !m.Granted() || m.Floor.Beneficiary == nil {
		return ""
	}
	return m.Floor.Beneficiary.ID
}

type ControlMeta struct {
	LastModified string `json:"lastModified,omitempty"`
	ModifiedBy   string `json:"modifiedBy,omitempty"`
}

type LockControl struct {
	Locked bool        `json:"locked"`
	Meta   ControlMeta `json:"meta"`
}

type RecordControl struct {
	Recording bool        `json:"recording"`
	Paused    bool        `json:"paused"`
	Meta      ControlMeta `json:"meta"`
}

type TranscribeControl struct {
	Transcribing bool        `json:"transcribing"`
	Caption      bool        `json:"caption"`
	Meta         ControlMeta `json:"meta"`
}

type LocusControls struct {
	Lock       *LockControl       `json:"lock,omitempty"`
	Record     *RecordControl     `json:"record,omitempty"`
	Transcribe *TranscribeControl `json:"transcribe,omitempty"`
}

// Sequence is the server ordering token. Entries grow monotonically; the
// last entry identifies the snapshot.
type Sequence struct {
	Entries    []uint64 `json:"entries,omitempty"`
	RangeStart uint64   `json:"rangeStart,omitempty"`
	RangeEnd   uint64   `json:"rangeEnd,omitempty"`
}

// Last returns the newest entry, falling back to RangeEnd.
func (s Sequence) Last() uint64 {
	if n := len(s.Entries); n > 0 {
		return s.Entries[n-1]
	}
	return s.RangeEnd
}

func (s Sequence) Empty() bool { return len(s.Entries) == 0 && s.RangeEnd == 0 }

type Participant struct {
	ID     string    `json:"id"`
	State  SelfState `json:"state"`
	Person *Person   `json:"person,omitempty"`
}

// Locus is a full snapshot or, when BaseSequence is set, a delta carrying
// only the sections that changed.
type Locus struct {
	URL          string         `json:"url"`
	FullState    *FullState     `json:"fullState,omitempty"`
	Host         *Person        `json:"host,omitempty"`
	Self         *Self          `json:"self,omitempty"`
	Info         *Info          `json:"info,omitempty"`
	MediaShares  []MediaShare   `json:"mediaShares,omitempty"`
	Controls     *LocusControls `json:"controls,omitempty"`
	Participants []Participant  `json:"participants,omitempty"`
	Sequence     Sequence       `json:"sequence"`
	BaseSequence *Sequence      `json:"baseSequence,omitempty"`
}

// Share returns the named media share, if present.
func (l *Locus) Share(name string) *MediaShare {
	if l == nil {
		return nil
	}
	for i := range l.MediaShares {
		if l.MediaShares[i].Name == name {
			return &l.MediaShares[i]
		}
	}
	return nil
}

// Clone returns a deep copy so readers never alias engine-owned state.
func (l *Locus) Clone() *Locus {
	if l == nil {
		return nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil
	}
	var out Locus
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return &out
}

// LocusIDFromURL takes the final path segment of a locus URL.
func LocusIDFromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// Push event types carried on the event channel.
const (
	EventLocusDelta = "locus.difference"
	EventLocusFull  = "locus.sync"
)

// LocusEvent is one pushed locus update.
type LocusEvent struct {
	Type     string `json:"eventType"`
	LocusURL string `json:"locusUrl"`
	Locus    *Locus `json:"locus"`
}
