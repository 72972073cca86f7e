package types

import "encoding/json"

// Wire message type discriminators. Inbound and outbound sets overlap
// for the drawing events because the server echoes them to peers.
const (
	MessageTypeWelcome          = "welcome"
	MessageTypeError            = "error"
	MessageTypeRateLimitWarning = "rate_limit_warning"
	MessageTypeUserJoined       = "user_joined"
	MessageTypeUserLeft         = "user_left"
	MessageTypeUserKicked       = "user_kicked"
	MessageTypeUserBanned       = "user_banned"
	MessageTypeStrokeStart      = "stroke_start"
	MessageTypeStrokePoints     = "stroke_points"
	MessageTypeStrokeEnd        = "stroke_end"
	MessageTypeShapeCreate      = "shape_create"
	MessageTypeTextCreate       = "text_create"
	MessageTypeObjectDelete     = "object_delete"
	MessageTypeCursorUpdate     = "cursor_update"
	MessageTypeErasePath        = "erase_path"
	MessageTypeUndo             = "undo"
	MessageTypeRedo             = "redo"
	MessageTypeSessionEnded     = "session_ended"
	MessageTypeKicked           = "kicked"
	MessageTypeAdminCountdown   = "admin_disconnect_countdown"
	MessageTypeAdminReconnected = "admin_reconnected"
	MessageTypeAdminKick        = "admin_kick"
	MessageTypeAdminBan         = "admin_ban"
	MessageTypeAdminEndSession  = "admin_end_session"
)

// StrokeInfo is the stroke header carried by stroke_start messages.
type StrokeInfo struct {
	LayerID   string  `json:"layer_id"`
	BrushType string  `json:"brush_type"`
	Color     string  `json:"color"`
	Width     float64 `json:"width"`
}

// ShapeInfo is the shape body carried by shape_create messages.
type ShapeInfo struct {
	Kind        string  `json:"type"`
	StartX      float64 `json:"start_x"`
	StartY      float64 `json:"start_y"`
	EndX        float64 `json:"end_x"`
	EndY        float64 `json:"end_y"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"stroke_width"`
	LayerID     string  `json:"layer_id"`
}

// TextInfo is the text body carried by text_create messages.
type TextInfo struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Color      string  `json:"color"`
	LayerID    string  `json:"layer_id"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
}

// Inbound is the closed union of server-to-client messages. Unknown
// message types decode to nil and are ignored by the reducer.
type Inbound interface {
	isInbound()
}

type Welcome struct {
	BoardID    string        `json:"board_id"`
	UserID     string        `json:"user_id"`
	Token      string        `json:"token"`
	Nickname   string        `json:"nickname"`
	Role       Role          `json:"role"`
	BoardState BoardSnapshot `json:"board_state"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}

type RateLimitWarning struct {
	Message string `json:"message"`
}

type UserJoined struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     Role   `json:"role"`
}

type UserLeft struct {
	UserID string `json:"user_id"`
}

type UserKicked struct {
	UserID  string `json:"user_id"`
	AdminID string `json:"admin_id"`
}

type UserBanned struct {
	UserID  string `json:"user_id"`
	AdminID string `json:"admin_id"`
}

type StrokeStarted struct {
	StrokeID  string     `json:"stroke_id"`
	UserID    string     `json:"user_id"`
	Stroke    StrokeInfo `json:"stroke"`
	Timestamp float64    `json:"timestamp"`
}

type StrokePointsEvent struct {
	StrokeID  string  `json:"stroke_id"`
	UserID    string  `json:"user_id"`
	Points    []Point `json:"points"`
	Timestamp float64 `json:"timestamp"`
}

type StrokeEnded struct {
	StrokeID string `json:"stroke_id"`
	UserID   string `json:"user_id"`
}

type ShapeCreated struct {
	ShapeID   string    `json:"shape_id"`
	UserID    string    `json:"user_id"`
	Shape     ShapeInfo `json:"shape"`
	Timestamp float64   `json:"timestamp"`
}

type TextCreated struct {
	TextID    string   `json:"text_id"`
	UserID    string   `json:"user_id"`
	Text      TextInfo `json:"text"`
	Timestamp float64  `json:"timestamp"`
}

type ObjectDeleted struct {
	ObjectID string `json:"object_id"`
	// ObjectType may be empty, in which case every collection is checked.
	ObjectType string `json:"object_type"`
}

type CursorMoved struct {
	UserID string  `json:"user_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Tool   string  `json:"tool"`
}

type SessionEnded struct {
	Reason  string `json:"reason"`
	AdminID string `json:"admin_id"`
}

type Kicked struct {
	Reason  string `json:"reason"`
	AdminID string `json:"admin_id"`
}

type AdminCountdown struct {
	SecondsRemaining int `json:"seconds_remaining"`
}

type AdminReconnected struct{}

func (*Welcome) isInbound()           {}
func (*ErrorNotice) isInbound()       {}
func (*RateLimitWarning) isInbound()  {}
func (*UserJoined) isInbound()        {}
func (*UserLeft) isInbound()          {}
func (*UserKicked) isInbound()        {}
func (*UserBanned) isInbound()        {}
func (*StrokeStarted) isInbound()     {}
func (*StrokePointsEvent) isInbound() {}
func (*StrokeEnded) isInbound()       {}
func (*ShapeCreated) isInbound()      {}
func (*TextCreated) isInbound()       {}
func (*ObjectDeleted) isInbound()     {}
func (*CursorMoved) isInbound()       {}
func (*SessionEnded) isInbound()      {}
func (*Kicked) isInbound()            {}
func (*AdminCountdown) isInbound()    {}
func (*AdminReconnected) isInbound()  {}

// DecodeInbound parses a wire frame into its concrete inbound type.
// Unrecognized type discriminators return (nil, nil); malformed frames
// return an error so the transport can log and drop them.
func DecodeInbound(data []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrMalformedMessage
	}

	var msg Inbound
	switch envelope.Type {
	case MessageTypeWelcome:
		msg = &Welcome{}
	case MessageTypeError:
		msg = &ErrorNotice{}
	case MessageTypeRateLimitWarning:
		msg = &RateLimitWarning{}
	case MessageTypeUserJoined:
		msg = &UserJoined{}
	case MessageTypeUserLeft:
		msg = &UserLeft{}
	case MessageTypeUserKicked:
		msg = &UserKicked{}
	case MessageTypeUserBanned:
		msg = &UserBanned{}
	case MessageTypeStrokeStart:
		msg = &StrokeStarted{}
	case MessageTypeStrokePoints:
		msg = &StrokePointsEvent{}
	case MessageTypeStrokeEnd:
		msg = &StrokeEnded{}
	case MessageTypeShapeCreate:
		msg = &ShapeCreated{}
	case MessageTypeTextCreate:
		msg = &TextCreated{}
	case MessageTypeObjectDelete:
		msg = &ObjectDeleted{}
	case MessageTypeCursorUpdate:
		msg = &CursorMoved{}
	case MessageTypeSessionEnded:
		msg = &SessionEnded{}
	case MessageTypeKicked:
		msg = &Kicked{}
	case MessageTypeAdminCountdown:
		msg = &AdminCountdown{}
	case MessageTypeAdminReconnected:
		msg = &AdminReconnected{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, ErrMalformedMessage
	}
	return msg, nil
}

// Outbound messages. Every struct carries its own type discriminator
// so marshaled frames are self-describing.

type StrokeStartRequest struct {
	Type     string     `json:"type"`
	StrokeID string     `json:"stroke_id"`
	Stroke   StrokeInfo `json:"stroke"`
}

type StrokePointsRequest struct {
	Type     string  `json:"type"`
	StrokeID string  `json:"stroke_id"`
	Points   []Point `json:"points"`
}

type StrokeEndRequest struct {
	Type     string `json:"type"`
	StrokeID string `json:"stroke_id"`
}

type ShapeCreateRequest struct {
	Type  string    `json:"type"`
	Shape ShapeInfo `json:"shape"`
}

type TextCreateRequest struct {
	Type string   `json:"type"`
	Text TextInfo `json:"text"`
}

type ErasePathRequest struct {
	Type   string  `json:"type"`
	Points []Point `json:"points"`
	Width  float64 `json:"width"`
}

type CursorUpdateRequest struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Tool string  `json:"tool"`
}

type UndoRequest struct {
	Type       string     `json:"type"`
	ObjectID   string     `json:"object_id"`
	ObjectKind ObjectKind `json:"object_kind"`
}

type AdminKickRequest struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type AdminBanRequest struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type AdminEndSessionRequest struct {
	Type string `json:"type"`
}
