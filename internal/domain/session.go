package domain

type PasswordStatus int

const (
	PasswordUnknown PasswordStatus = iota
	PasswordNotRequired
	PasswordRequired
	PasswordVerified
)

func (p PasswordStatus) String() string {
	switch p {
	case PasswordNotRequired:
		return "not_required"
	case PasswordRequired:
		return "required"
	case PasswordVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Captcha is an outstanding captcha challenge.
type Captcha struct {
	ID         string `json:"captchaId"`
	ImageURL   string `json:"verificationImageURL"`
	AudioURL   string `json:"verificationAudioURL"`
	RefreshURL string `json:"refreshURL"`
}

type InfoFailure int

const (
	InfoFailureNone InfoFailure = iota
	InfoFailureWrongPassword
	InfoFailureWrongCaptcha
	InfoFailureOther
)

func (f InfoFailure) String() string {
	switch f {
	case InfoFailureWrongPassword:
		return "wrong_password"
	case InfoFailureWrongCaptcha:
		return "wrong_captcha"
	case InfoFailureOther:
		return "other"
	default:
		return "none"
	}
}

// MeetingInfo is what the meeting-info service knows about a destination.
// A password challenge may come back with a partial one.
type MeetingInfo struct {
	MeetingNumber string `json:"meetingNumber,omitempty"`
	Topic         string `json:"topic,omitempty"`
	HostName      string `json:"hostDisplayName,omitempty"`
	LocusURL      string `json:"locusUrl,omitempty"`
	SipURI        string `json:"sipUrl,omitempty"`
}

type Control struct {
	Enabled    bool
	ModifiedBy string
}

type Controls struct {
	Lock       Control
	Record     Control
	Transcribe Control
	Caption    Control
}

// SessionState is the local snapshot of one meeting. It is written only by
// the locus engine; everyone else reads copies.
type SessionState struct {
	ID            string
	CorrelationID string
	Destination   string

	LocusURL string
	LocusID  string
	SelfID   string
	HostID   string
	MediaID  string

	FSM        FSMState
	SelfState  SelfState
	SelfReason string
	InLobby    bool
	Moderator  bool
	JoinedOnce bool

	Password    PasswordStatus
	Captcha     *Captcha
	MeetingInfo *MeetingInfo
	InfoFailure InfoFailure

	Controls     Controls
	DisplayHints []string

	RoapSeq  uint64
	Sequence Sequence

	KeepAliveURL  string
	KeepAliveSecs int
}

// Clone copies slices and pointers so the result can be handed out.
func (s SessionState) Clone() SessionState {
	out := s
	if s.Captcha != nil {
		c := *s.Captcha
		out.Captcha = &c
	}
	if s.MeetingInfo != nil {
		mi := *s.MeetingInfo
		out.MeetingInfo = &mi
	}
	out.DisplayHints = append([]string(nil), s.DisplayHints...)
	out.Sequence.Entries = append([]uint64(nil), s.Sequence.Entries...)
	return out
}

// JoinResponse is the body returned by a successful join or move.
type JoinResponse struct {
	Locus            *Locus            `json:"locus"`
	MediaConnections []MediaConnection `json:"mediaConnections,omitempty"`
}

type MediaConnection struct {
	MediaID   string `json:"mediaId"`
	RemoteSDP string `json:"remoteSdp,omitempty"`
}
