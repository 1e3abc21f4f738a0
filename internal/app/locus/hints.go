package locus

// Capability is a UI action the server may allow through display hints.
type Capability int

const (
	CanLock Capability = iota
	CanUnlock
	CanAdmit
	CanRaiseHand
	CanLowerAllHands
	CanLowerOthersHand
	CanStartCaption
	CanStartTranscription
	CanStopTranscription
	CanStartRecording
	CanStopRecording
	CanPauseRecording
	CanResumeRecording
	CanMuteAll
	CanUnmuteAll
	CanShareContent
	CanShareWhiteboard
	CanEndMeeting
)

var hintTokens = map[Capability]string{
	CanLock:               "LOCK_CONTROL_LOCK",
	CanUnlock:             "LOCK_CONTROL_UNLOCK",
	CanAdmit:              "ADMIT_PARTICIPANT",
	CanRaiseHand:          "RAISE_HAND",
	CanLowerAllHands:      "LOWER_ALL_HANDS",
	CanLowerOthersHand:    "LOWER_SOMEONE_ELSES_HAND",
	CanStartCaption:       "CAPTION_START",
	CanStartTranscription: "TRANSCRIPTION_CONTROL_START",
	CanStopTranscription:  "TRANSCRIPTION_CONTROL_STOP",
	CanStartRecording:     "RECORDING_CONTROL_START",
	CanStopRecording:      "RECORDING_CONTROL_STOP",
	CanPauseRecording:     "RECORDING_CONTROL_PAUSE",
	CanResumeRecording:    "RECORDING_CONTROL_RESUME",
	CanMuteAll:            "MUTE_ALL",
	CanUnmuteAll:          "UNMUTE_ALL",
	CanShareContent:       "SHARE_CONTENT",
	CanShareWhiteboard:    "SHARE_WHITEBOARD",
	CanEndMeeting:         "LEAVE_END_MEETING",
}

func (c Capability) Token() string { return hintTokens[c] }

// Capabilities is the set of display hints of one snapshot.
type Capabilities struct {
	hints map[string]struct{}
}

func newCapabilities(hints []string) Capabilities {
	set := make(map[string]struct{}, len(hints))
	for _, h := range hints {
		set[h] = struct{}{}
	}
	return Capabilities{hints: set}
}

// Has reports whether the hint token for c is present.
func (c Capabilities) Has(cp Capability) bool {
	tok, ok := hintTokens[cp]
	if !ok {
		return false
	}
	_, ok = c.hints[tok]
	return ok
}

// List returns the names of every capability currently granted.
func (c Capabilities) List() []string {
	out := make([]string, 0, len(c.hints))
	for cp := CanLock; cp <= CanEndMeeting; cp++ {
		if c.Has(cp) {
			out = append(out, hintTokens[cp])
		}
	}
	return out
}
