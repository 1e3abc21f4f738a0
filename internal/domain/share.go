package domain

type ShareKind int

const (
	ShareNone ShareKind = iota
	ShareKindContent
	ShareKindWhiteboard
)

func (k ShareKind) String() string {
	switch k {
	case ShareKindContent:
		return "content"
	case ShareKindWhiteboard:
		return "whiteboard"
	default:
		return "none"
	}
}

// ShareState says who presents what. Zero value means nobody shares.
type ShareState struct {
	Kind          ShareKind
	BeneficiaryID string
	ResourceURL   string
}

func (s ShareState) Active() bool { return s.Kind != ShareNone }

// Direction of a media track in an offer.
type Direction string

const (
	DirSendRecv Direction = "sendrecv"
	DirSendOnly Direction = "sendonly"
	DirRecvOnly Direction = "recvonly"
	DirInactive Direction = "inactive"
)

// MediaUpdate asks for a renegotiation. Nil fields keep the current
// direction; Replace renegotiates existing tracks as they are.
type MediaUpdate struct {
	Audio      *Direction `json:"audio,omitempty"`
	Video      *Direction `json:"video,omitempty"`
	Share      *Direction `json:"share,omitempty"`
	Replace    bool       `json:"replace,omitempty"`
	RestartICE bool       `json:"restartIce,omitempty"`
}

// Empty reports an update with no concrete track change and nothing to
// replace.
func (u MediaUpdate) Empty() bool {
	return u.Audio == nil && u.Video == nil && u.Share == nil && !u.Replace && !u.RestartICE
}

// Dir is a helper for building MediaUpdate literals.
func Dir(d Direction) *Direction { return &d }

// ROAP message types.
const (
	RoapOffer  = "OFFER"
	RoapAnswer = "ANSWER"
	RoapError  = "ERROR"
)

type RoapMessage struct {
	MessageType string   `json:"messageType"`
	Seq         uint64   `json:"seq"`
	SDPs        []string `json:"sdps,omitempty"`
	ErrorType   string   `json:"errorType,omitempty"`
}
