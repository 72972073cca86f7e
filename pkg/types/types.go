package types

// Role identifies a participant's privilege level. The server is the
// only writer of roles; the client never promotes itself.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Tool names match the wire protocol values.
const (
	ToolPen         = "pen"
	ToolMarker      = "marker"
	ToolHighlighter = "highlighter"
	ToolEraser      = "eraser"
	ToolRectangle   = "rectangle"
	ToolCircle      = "circle"
	ToolLine        = "line"
	ToolArrow       = "arrow"
	ToolText        = "text"
	ToolSelect      = "select"
)

// ObjectKind discriminates the three drawable collections.
type ObjectKind string

const (
	KindStroke ObjectKind = "stroke"
	KindShape  ObjectKind = "shape"
	KindText   ObjectKind = "text"
)

// Point is a single pointer sample. Timestamps are client clocks and
// are never used for ordering; arrival order is authoritative.
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Pressure  float64 `json:"pressure"`
	Timestamp float64 `json:"timestamp"`
}

// Stroke is a freehand path. Points are append-only until the stroke
// is finalized by a stroke_end event.
type Stroke struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"user_id"`
	LayerID   string  `json:"layer_id"`
	BrushKind string  `json:"brush_type"`
	Color     string  `json:"color"`
	Width     float64 `json:"width"`
	Points    []Point `json:"points"`
	CreatedAt float64 `json:"created_at"`
	Finalized bool    `json:"-"`
}

// Shape is atomic: created whole, never partially updated.
type Shape struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"user_id"`
	Kind        string  `json:"type"`
	StartX      float64 `json:"start_x"`
	StartY      float64 `json:"start_y"`
	EndX        float64 `json:"end_x"`
	EndY        float64 `json:"end_y"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"stroke_width"`
	LayerID     string  `json:"layer_id"`
	CreatedAt   float64 `json:"created_at"`
}

// TextObject is atomic, same lifecycle as Shape.
type TextObject struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"user_id"`
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Color      string  `json:"color"`
	LayerID    string  `json:"layer_id"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
	CreatedAt  float64 `json:"created_at"`
}

// Participant is a connected user as seen in the shared session.
type Participant struct {
	ID          string  `json:"id"`
	Nickname    string  `json:"nickname"`
	Role        Role    `json:"role"`
	CursorX     float64 `json:"cursor_x"`
	CursorY     float64 `json:"cursor_y"`
	ActiveTool  string  `json:"active_tool"`
	Color       string  `json:"color"`
	ConnectedAt float64 `json:"connected_at"`
}

// Layer metadata from the snapshot. There is no layer mutation
// protocol; the list is read-only after hydration.
type Layer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Hidden bool   `json:"hidden"`
	Order  int    `json:"order"`
}

// BoardSnapshot is the full board state carried by a welcome message.
type BoardSnapshot struct {
	BoardID             string        `json:"board_id"`
	Users               []Participant `json:"users"`
	Strokes             []Stroke      `json:"strokes"`
	Shapes              []Shape       `json:"shapes"`
	Texts               []TextObject  `json:"texts"`
	Layers              []Layer       `json:"layers"`
	ObjectCount         int           `json:"object_count"`
	MaxObjects          int           `json:"max_objects"`
	MaxUsers            int           `json:"max_users"`
	AdminOnline         bool          `json:"admin_online"`
	AdminDisconnectedAt *float64      `json:"admin_disconnected_at"`
	CreatedAt           float64       `json:"created_at"`
}

// Identity is the session identity assigned on welcome and persisted
// across reloads. At most one live identity per client.
type Identity struct {
	RoomID     string `json:"room_id"`
	UserID     string `json:"user_id"`
	Token      string `json:"token"`
	Nickname   string `json:"nickname"`
	IsAdmin    bool   `json:"is_admin"`
	IsCreating bool   `json:"is_creating"`
}

// Complete reports whether the identity is sufficient to rejoin.
func (id *Identity) Complete() bool {
	return id != nil && id.RoomID != "" && id.UserID != "" && id.Token != ""
}
