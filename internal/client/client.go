// Package client is the session lifecycle controller: it drives the
// state machine from no session through connecting to active, owns
// every identity transition, and supervises the connection, encoder,
// reducer and timers.
package client

import (
	"log"
	"sync"
	"time"

	"inkboard/internal/board"
	"inkboard/internal/config"
	"inkboard/internal/countdown"
	"inkboard/internal/ledger"
	"inkboard/internal/outbound"
	"inkboard/internal/websocket"
	"inkboard/pkg/interfaces"
	"inkboard/pkg/types"
)

// Fatal notice reasons emitted by the controller itself; the reducer
// adds its own (room_not_found, room_full, session_ended, kicked).
const (
	ReasonConnectTimeout = "connect_timeout"
	ReasonConnectionLost = "connection_lost"
)

type dialFunc func(mode websocket.Mode, roomID, token string, handler websocket.Handler, onClose websocket.CloseHandler) (interfaces.Connection, error)

// Client owns one session at a time. All exported methods are safe
// for concurrent use; inbound messages are applied in receipt order
// on the connection's read goroutine.
type Client struct {
	cfg    *config.Config
	store  interfaces.IdentityStore
	events interfaces.EventSink
	dial   dialFunc

	board     *board.State
	reducer   *board.Reducer
	ledger    *ledger.Ledger
	countdown *countdown.Timer

	mu           sync.Mutex
	state        interfaces.SessionState
	conn         interfaces.Connection
	encoder      *outbound.Encoder
	identity     *types.Identity
	connectTimer *time.Timer
	creating     bool
}

// New creates an idle client. events must not block; pass
// interfaces.NopEvents for headless use.
func New(cfg *config.Config, store interfaces.IdentityStore, events interfaces.EventSink) *Client {
	c := &Client{
		cfg:    cfg,
		store:  store,
		events: events,
		state:  interfaces.StateIdle,
		board:  board.NewState(),
		ledger: ledger.New(),
	}
	c.reducer = board.NewReducer(c.board, c, cfg.AdminAbsenceTimeout, cfg.ObjectWarnThreshold, cfg.MaxObjects)
	c.countdown = countdown.New(cfg.CountdownTick, events.CountdownTick)
	c.dial = func(mode websocket.Mode, roomID, token string, handler websocket.Handler, onClose websocket.CloseHandler) (interfaces.Connection, error) {
		return websocket.Dial(cfg.ServerURL, mode, roomID, token, cfg.WriteTimeout, cfg.PingInterval, handler, onClose)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() interfaces.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Board exposes the reconciled canvas state for rendering and export.
func (c *Client) Board() *board.State {
	return c.board
}

// Identity returns a copy of the live session identity, if any.
func (c *Client) Identity() *types.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	identity := *c.identity
	return &identity
}

// Restore adopts a persisted identity and reconnects to its room.
// Returns ErrNoStoredIdentity when the store holds nothing usable.
func (c *Client) Restore() error {
	c.mu.Lock()
	if c.state != interfaces.StateIdle {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	c.state = interfaces.StateRestoring
	c.mu.Unlock()
	c.events.StateChanged(interfaces.StateRestoring)

	identity, err := c.store.Load()
	if err != nil || !identity.Complete() {
		c.mu.Lock()
		c.state = interfaces.StateIdle
		c.mu.Unlock()
		c.events.StateChanged(interfaces.StateIdle)
		if err != nil {
			return err
		}
		return ErrNoStoredIdentity
	}

	// The is-creating flag is consumed exactly once: a reload after a
	// create must rejoin the room, never create a second one.
	if mgr, ok := c.store.(interface{ ConsumeCreatingFlag() (bool, error) }); ok {
		if _, err := mgr.ConsumeCreatingFlag(); err != nil {
			log.Printf("client: consume creating flag: %v", err)
		}
	}

	return c.connect(websocket.ModeJoin, identity.RoomID, identity.Token, false)
}

// CreateBoard opens a connection against the room-creation endpoint.
func (c *Client) CreateBoard() error {
	c.mu.Lock()
	if c.state != interfaces.StateIdle {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	c.mu.Unlock()
	return c.connect(websocket.ModeCreate, "", "", true)
}

// JoinBoard joins an existing room by its six-character code. token
// is optional and rejoins as a previous user.
func (c *Client) JoinBoard(code, token string) error {
	if !types.IsValidRoomCode(code) {
		return types.ErrInvalidRoomCode
	}
	c.mu.Lock()
	if c.state != interfaces.StateIdle {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	c.mu.Unlock()
	return c.connect(websocket.ModeJoin, code, token, false)
}

// connect transitions to Connecting and dials. The connect-timeout
// timer runs until the welcome arrives or fires a teardown.
func (c *Client) connect(mode websocket.Mode, roomID, token string, creating bool) error {
	c.mu.Lock()
	if c.state == interfaces.StateConnecting || c.state == interfaces.StateActive {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	c.state = interfaces.StateConnecting
	c.creating = creating
	c.mu.Unlock()
	c.events.StateChanged(interfaces.StateConnecting)

	conn, err := c.dial(mode, roomID, token, c.handleMessage, c.handleConnClose)
	if err != nil {
		c.mu.Lock()
		c.state = interfaces.StateIdle
		c.mu.Unlock()
		c.events.StateChanged(interfaces.StateIdle)
		return err
	}

	encoder := outbound.New(conn, c.ledger, c.cfg.FlushInterval, c.cfg.CursorInterval, c.cfg.MaxBacklogBytes)
	encoder.Start()

	c.mu.Lock()
	c.conn = conn
	c.encoder = encoder
	c.connectTimer = time.AfterFunc(c.cfg.ConnectTimeout, c.onConnectTimeout)
	c.mu.Unlock()

	return nil
}

// Leave tears the session down explicitly.
func (c *Client) Leave() {
	c.teardown()
}

// handleMessage is the single handler for decoded inbound messages.
func (c *Client) handleMessage(msg types.Inbound) {
	if welcome, ok := msg.(*types.Welcome); ok {
		c.handleWelcome(welcome)
		return
	}
	if c.isSelfStrokeEcho(msg) {
		return
	}
	c.reducer.Apply(msg)
}

// isSelfStrokeEcho reports whether msg is a stroke event authored by
// this client. The server excludes the sender from stroke broadcasts
// and the local copy was already applied optimistically at send time,
// so a self-authored stroke frame arriving on the wire is a stale
// duplicate; replaying its points would double them.
func (c *Client) isSelfStrokeEcho(msg types.Inbound) bool {
	var userID string
	switch m := msg.(type) {
	case *types.StrokeStarted:
		userID = m.UserID
	case *types.StrokePointsEvent:
		userID = m.UserID
	case *types.StrokeEnded:
		userID = m.UserID
	default:
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity != nil && userID == c.identity.UserID
}

func (c *Client) handleWelcome(welcome *types.Welcome) {
	c.mu.Lock()
	if c.state != interfaces.StateConnecting {
		// Duplicate or post-teardown welcome.
		c.mu.Unlock()
		return
	}
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
	identity := &types.Identity{
		RoomID:     welcome.BoardID,
		UserID:     welcome.UserID,
		Token:      welcome.Token,
		Nickname:   welcome.Nickname,
		IsAdmin:    welcome.Role == types.RoleAdmin,
		IsCreating: c.creating,
	}
	c.identity = identity
	c.state = interfaces.StateActive
	c.mu.Unlock()

	if err := c.store.Save(identity); err != nil {
		log.Printf("client: persist identity: %v", err)
	}

	c.reducer.Apply(welcome)
	c.events.StateChanged(interfaces.StateActive)
	log.Printf("client: session active: room=%s user=%s admin=%t", identity.RoomID, identity.UserID, identity.IsAdmin)
}

func (c *Client) onConnectTimeout() {
	c.mu.Lock()
	connecting := c.state == interfaces.StateConnecting
	c.mu.Unlock()
	if !connecting {
		return
	}
	c.events.FatalNotice(ReasonConnectTimeout, "Could not reach the board server")
	c.teardown()
}

// handleConnClose reports transport faults. Explicit closes land here
// too, after teardown has already gone idle, and are ignored.
func (c *Client) handleConnClose(err error) {
	c.mu.Lock()
	live := c.state == interfaces.StateConnecting || c.state == interfaces.StateActive
	c.mu.Unlock()
	if !live {
		return
	}
	if err != nil {
		c.events.FatalNotice(ReasonConnectionLost, "Connection to the board was lost")
	}
	c.teardown()
}

// teardown closes the connection and clears all canvas, session,
// ledger and timer state, including the persisted identity.
// Idempotent: calling it while idle is a no-op.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.state == interfaces.StateIdle {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	encoder := c.encoder
	c.conn = nil
	c.encoder = nil
	c.identity = nil
	c.creating = false
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
	c.state = interfaces.StateIdle
	c.mu.Unlock()

	if encoder != nil {
		encoder.Stop()
	}
	if conn != nil {
		conn.Close()
	}
	c.countdown.Clear()
	c.ledger.Reset()
	c.board.Reset()
	if err := c.store.Clear(); err != nil {
		log.Printf("client: clear identity: %v", err)
	}
	c.events.StateChanged(interfaces.StateIdle)
}

// Drawing intents. Each is a no-op unless the session is active.

// StrokeStart begins a stroke and returns its correlation id. The
// stroke is inserted locally right away; the server echo of the same
// id reduces to a no-op.
func (c *Client) StrokeStart(info types.StrokeInfo) (string, error) {
	encoder, selfID, err := c.activeEncoder()
	if err != nil {
		return "", err
	}
	id := encoder.StrokeStart(info)
	c.reducer.Apply(&types.StrokeStarted{
		StrokeID:  id,
		UserID:    selfID,
		Stroke:    info,
		Timestamp: nowSeconds(),
	})
	return id, nil
}

// StrokePoint buffers a pointer sample for batching and applies it
// locally.
func (c *Client) StrokePoint(strokeID string, p types.Point) error {
	encoder, selfID, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.StrokePoint(strokeID, p)
	c.reducer.Apply(&types.StrokePointsEvent{
		StrokeID: strokeID,
		UserID:   selfID,
		Points:   []types.Point{p},
	})
	return nil
}

// StrokeEnd finalizes a stroke.
func (c *Client) StrokeEnd(strokeID string) error {
	encoder, selfID, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.StrokeEnd(strokeID)
	c.reducer.Apply(&types.StrokeEnded{StrokeID: strokeID, UserID: selfID})
	return nil
}

// ShapeCreate sends a shape; it appears locally once the server
// confirms it with an id.
func (c *Client) ShapeCreate(info types.ShapeInfo) error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.ShapeCreate(info)
	return nil
}

// TextCreate sends a text object; same confirmation flow as shapes.
func (c *Client) TextCreate(info types.TextInfo) error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.TextCreate(info)
	return nil
}

// ErasePath sends an eraser path.
func (c *Client) ErasePath(points []types.Point, width float64) error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.ErasePath(points, width)
	return nil
}

// CursorUpdate reports the local cursor, throttled by the encoder.
func (c *Client) CursorUpdate(x, y float64, tool string) error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.CursorUpdate(x, y, tool)
	return nil
}

// Undo requests reversal of the most recent self-authored action.
func (c *Client) Undo() error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	return encoder.Undo()
}

// Redo replays the most recently undone action.
func (c *Client) Redo() error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	return encoder.Redo()
}

// KickUser, BanUser and EndSession forward moderation intents; the
// server enforces admin privilege.
func (c *Client) KickUser(userID string) error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.KickUser(userID)
	return nil
}

func (c *Client) BanUser(userID string) error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.BanUser(userID)
	return nil
}

func (c *Client) EndSession() error {
	encoder, _, err := c.activeEncoder()
	if err != nil {
		return err
	}
	encoder.EndSession()
	return nil
}

func (c *Client) activeEncoder() (*outbound.Encoder, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != interfaces.StateActive || c.encoder == nil {
		return nil, "", ErrNotActive
	}
	selfID := ""
	if c.identity != nil {
		selfID = c.identity.UserID
	}
	return c.encoder, selfID, nil
}

// board.Effects implementation. All calls arrive synchronously from
// the reducer.

func (c *Client) FatalNotice(reason, message string) {
	c.events.FatalNotice(reason, message)
	c.teardown()
}

func (c *Client) Warning(message string) {
	c.events.Warning(message)
}

func (c *Client) CountdownStarted(seconds int) {
	c.countdown.Set(seconds)
}

func (c *Client) CountdownCleared() {
	c.countdown.Clear()
	c.events.CountdownTick(-1)
}

func (c *Client) SelfCreation(id string, kind types.ObjectKind, payload []byte) {
	c.mu.Lock()
	encoder := c.encoder
	c.mu.Unlock()
	if encoder != nil {
		encoder.ConfirmCreation(id, kind, payload)
	}
}

func (c *Client) BoardUpdated() {
	c.events.BoardUpdated()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
