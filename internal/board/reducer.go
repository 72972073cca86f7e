package board

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"inkboard/pkg/types"
)

// Fatal notice reasons passed to Effects.FatalNotice.
const (
	ReasonRoomNotFound = "room_not_found"
	ReasonRoomFull     = "room_full"
	ReasonSessionEnded = "session_ended"
	ReasonKicked       = "kicked"
)

// Effects is what the reducer asks of its supervisor. All calls happen
// synchronously from Apply; implementations must not re-enter Apply.
type Effects interface {
	// FatalNotice reports a session-ending fault; the supervisor is
	// expected to tear the session down.
	FatalNotice(reason, message string)
	// Warning reports an advisory fault that does not end the session.
	Warning(message string)
	// CountdownStarted and CountdownCleared drive the admin-absence timer.
	CountdownStarted(seconds int)
	CountdownCleared()
	// SelfCreation reports a confirmed self-authored shape or text so
	// the undo ledger can record it. payload is the creation frame to
	// replay on redo.
	SelfCreation(id string, kind types.ObjectKind, payload []byte)
	// BoardUpdated signals that a canvas collection changed.
	BoardUpdated()
}

// Reducer is the single dispatch point for inbound messages. It never
// returns an error: every valid-but-stale message is absorbed as a
// no-op, which is what keeps replays and echoes harmless.
type Reducer struct {
	state          *State
	effects        Effects
	absenceTimeout time.Duration
	warnThreshold  int
	maxObjects     int

	now func() time.Time
}

// NewReducer creates a reducer over state. absenceTimeout is the
// server's admin-absence limit, used to derive a bridging countdown
// from the welcome snapshot until the first authoritative tick.
func NewReducer(state *State, effects Effects, absenceTimeout time.Duration, warnThreshold, maxObjects int) *Reducer {
	return &Reducer{
		state:          state,
		effects:        effects,
		absenceTimeout: absenceTimeout,
		warnThreshold:  warnThreshold,
		maxObjects:     maxObjects,
		now:            time.Now,
	}
}

// Apply dispatches one inbound message. Messages arrive in receipt
// order from the connection's read loop; the client also feeds its own
// optimistic stroke events through here, so all mutations go through
// the state lock.
func (r *Reducer) Apply(msg types.Inbound) {
	switch m := msg.(type) {
	case *types.Welcome:
		r.applyWelcome(m)
	case *types.ErrorNotice:
		r.applyError(m)
	case *types.RateLimitWarning:
		r.effects.Warning(m.Message)
	case *types.UserJoined:
		r.applyUserJoined(m)
	case *types.UserLeft:
		r.applyUserGone(m.UserID, true)
	case *types.UserKicked:
		r.applyUserGone(m.UserID, false)
	case *types.UserBanned:
		r.applyUserGone(m.UserID, false)
	case *types.StrokeStarted:
		r.applyStrokeStarted(m)
	case *types.StrokePointsEvent:
		r.applyStrokePoints(m)
	case *types.StrokeEnded:
		r.applyStrokeEnded(m)
	case *types.ShapeCreated:
		r.applyShapeCreated(m)
	case *types.TextCreated:
		r.applyTextCreated(m)
	case *types.ObjectDeleted:
		r.applyObjectDeleted(m)
	case *types.CursorMoved:
		r.applyCursorMoved(m)
	case *types.SessionEnded:
		r.effects.FatalNotice(ReasonSessionEnded, "The session was ended")
	case *types.Kicked:
		r.effects.FatalNotice(ReasonKicked, "You were removed from the board")
	case *types.AdminCountdown:
		// Server figure is authoritative once connected.
		r.effects.CountdownStarted(m.SecondsRemaining)
	case *types.AdminReconnected:
		r.effects.CountdownCleared()
	case nil:
		// Unrecognized type; ignore.
	default:
		log.Printf("reducer: unhandled message type %T", msg)
	}
}

func (r *Reducer) applyWelcome(m *types.Welcome) {
	s := r.state
	s.mu.Lock()
	s.reset()
	s.established = true
	s.selfID = m.UserID
	s.selfRole = m.Role

	for i := range m.BoardState.Users {
		u := m.BoardState.Users[i]
		s.participants[u.ID] = &u
	}
	for i := range m.BoardState.Strokes {
		st := m.BoardState.Strokes[i]
		if _, ok := s.strokes[st.ID]; ok {
			continue
		}
		s.strokes[st.ID] = &st
		s.strokeOrder = append(s.strokeOrder, st.ID)
	}
	for i := range m.BoardState.Shapes {
		sh := m.BoardState.Shapes[i]
		if _, ok := s.shapes[sh.ID]; ok {
			continue
		}
		s.shapes[sh.ID] = &sh
		s.shapeOrder = append(s.shapeOrder, sh.ID)
	}
	for i := range m.BoardState.Texts {
		tx := m.BoardState.Texts[i]
		if _, ok := s.texts[tx.ID]; ok {
			continue
		}
		s.texts[tx.ID] = &tx
		s.textOrder = append(s.textOrder, tx.ID)
	}
	s.layers = append([]types.Layer(nil), m.BoardState.Layers...)
	s.objectCount = m.BoardState.ObjectCount
	if s.objectCount < 0 {
		s.objectCount = 0
	}
	s.mu.Unlock()

	// A non-admin joining while the admin is absent derives a bridging
	// countdown from the absence start; the server's own ticks take
	// over once they arrive.
	if m.Role != types.RoleAdmin && !m.BoardState.AdminOnline && m.BoardState.AdminDisconnectedAt != nil {
		elapsed := r.now().Unix() - int64(*m.BoardState.AdminDisconnectedAt)
		remaining := int(r.absenceTimeout/time.Second) - int(elapsed)
		if remaining < 0 {
			remaining = 0
		}
		r.effects.CountdownStarted(remaining)
	}

	r.effects.BoardUpdated()
}

func (r *Reducer) applyError(m *types.ErrorNotice) {
	lower := strings.ToLower(m.Message)
	switch {
	case strings.Contains(lower, "not found"):
		r.effects.FatalNotice(ReasonRoomNotFound, m.Message)
	case strings.Contains(lower, "full"):
		r.effects.FatalNotice(ReasonRoomFull, m.Message)
	default:
		// Object-limit and anything else unrecognized is advisory.
		r.effects.Warning(m.Message)
	}
}

func (r *Reducer) applyUserJoined(m *types.UserJoined) {
	s := r.state
	s.mu.Lock()
	if _, ok := s.participants[m.UserID]; !ok {
		s.participants[m.UserID] = &types.Participant{
			ID:         m.UserID,
			Nickname:   m.Nickname,
			Role:       m.Role,
			ActiveTool: types.ToolPen,
		}
	}
	s.mu.Unlock()

	if m.Role == types.RoleAdmin {
		r.effects.CountdownCleared()
	}
	r.effects.BoardUpdated()
}

// applyUserGone removes a participant. Only a plain departure of the
// admin starts the absence countdown; kicks and bans never target the
// admin and must not touch the timer.
func (r *Reducer) applyUserGone(userID string, maybeAdmin bool) {
	s := r.state
	s.mu.Lock()
	p, ok := s.participants[userID]
	wasAdmin := ok && p.Role == types.RoleAdmin
	if ok {
		delete(s.participants, userID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if maybeAdmin && wasAdmin {
		r.effects.CountdownStarted(int(r.absenceTimeout / time.Second))
	}
	r.effects.BoardUpdated()
}

func (r *Reducer) applyStrokeStarted(m *types.StrokeStarted) {
	s := r.state
	s.mu.Lock()
	if _, ok := s.strokes[m.StrokeID]; ok {
		// Echo of a stroke we already hold (usually our own optimistic
		// insert). Idempotent no-op: collection and count unchanged.
		s.mu.Unlock()
		return
	}
	s.strokes[m.StrokeID] = &types.Stroke{
		ID:        m.StrokeID,
		OwnerID:   m.UserID,
		LayerID:   m.Stroke.LayerID,
		BrushKind: m.Stroke.BrushType,
		Color:     m.Stroke.Color,
		Width:     m.Stroke.Width,
		CreatedAt: m.Timestamp,
	}
	s.strokeOrder = append(s.strokeOrder, m.StrokeID)
	s.objectCount++
	warn := r.crossedWarnThresholdLocked()
	s.mu.Unlock()

	if warn {
		r.warnNearLimit()
	}
	r.effects.BoardUpdated()
}

func (r *Reducer) applyStrokePoints(m *types.StrokePointsEvent) {
	s := r.state
	s.mu.Lock()
	stroke, ok := s.strokes[m.StrokeID]
	if !ok || stroke.Finalized {
		// Points for an unknown or finalized stroke are stale, not an
		// error; never create a headless stroke.
		s.mu.Unlock()
		return
	}
	stroke.Points = append(stroke.Points, m.Points...)
	s.mu.Unlock()

	r.effects.BoardUpdated()
}

func (r *Reducer) applyStrokeEnded(m *types.StrokeEnded) {
	s := r.state
	s.mu.Lock()
	stroke, ok := s.strokes[m.StrokeID]
	if ok {
		stroke.Finalized = true
	}
	s.mu.Unlock()
}

func (r *Reducer) applyShapeCreated(m *types.ShapeCreated) {
	s := r.state
	s.mu.Lock()
	if _, ok := s.shapes[m.ShapeID]; ok {
		s.mu.Unlock()
		return
	}
	s.shapes[m.ShapeID] = &types.Shape{
		ID:          m.ShapeID,
		OwnerID:     m.UserID,
		Kind:        m.Shape.Kind,
		StartX:      m.Shape.StartX,
		StartY:      m.Shape.StartY,
		EndX:        m.Shape.EndX,
		EndY:        m.Shape.EndY,
		Color:       m.Shape.Color,
		StrokeWidth: m.Shape.StrokeWidth,
		LayerID:     m.Shape.LayerID,
		CreatedAt:   m.Timestamp,
	}
	s.shapeOrder = append(s.shapeOrder, m.ShapeID)
	s.objectCount++
	warn := r.crossedWarnThresholdLocked()
	self := m.UserID == s.selfID
	s.mu.Unlock()

	if warn {
		r.warnNearLimit()
	}
	if self {
		payload, err := json.Marshal(types.ShapeCreateRequest{
			Type:  types.MessageTypeShapeCreate,
			Shape: m.Shape,
		})
		if err == nil {
			r.effects.SelfCreation(m.ShapeID, types.KindShape, payload)
		}
	}
	r.effects.BoardUpdated()
}

func (r *Reducer) applyTextCreated(m *types.TextCreated) {
	s := r.state
	s.mu.Lock()
	if _, ok := s.texts[m.TextID]; ok {
		s.mu.Unlock()
		return
	}
	s.texts[m.TextID] = &types.TextObject{
		ID:         m.TextID,
		OwnerID:    m.UserID,
		Text:       m.Text.Text,
		X:          m.Text.X,
		Y:          m.Text.Y,
		Color:      m.Text.Color,
		LayerID:    m.Text.LayerID,
		FontSize:   m.Text.FontSize,
		FontFamily: m.Text.FontFamily,
		CreatedAt:  m.Timestamp,
	}
	s.textOrder = append(s.textOrder, m.TextID)
	s.objectCount++
	warn := r.crossedWarnThresholdLocked()
	self := m.UserID == s.selfID
	s.mu.Unlock()

	if warn {
		r.warnNearLimit()
	}
	if self {
		payload, err := json.Marshal(types.TextCreateRequest{
			Type: types.MessageTypeTextCreate,
			Text: m.Text,
		})
		if err == nil {
			r.effects.SelfCreation(m.TextID, types.KindText, payload)
		}
	}
	r.effects.BoardUpdated()
}

func (r *Reducer) applyObjectDeleted(m *types.ObjectDeleted) {
	s := r.state
	s.mu.Lock()
	removed := false
	checkStroke := m.ObjectType == "" || m.ObjectType == string(types.KindStroke)
	checkShape := m.ObjectType == "" || m.ObjectType == string(types.KindShape)
	checkText := m.ObjectType == "" || m.ObjectType == string(types.KindText)

	if checkStroke {
		if _, ok := s.strokes[m.ObjectID]; ok {
			delete(s.strokes, m.ObjectID)
			s.strokeOrder = removeID(s.strokeOrder, m.ObjectID)
			removed = true
		}
	}
	if !removed && checkShape {
		if _, ok := s.shapes[m.ObjectID]; ok {
			delete(s.shapes, m.ObjectID)
			s.shapeOrder = removeID(s.shapeOrder, m.ObjectID)
			removed = true
		}
	}
	if !removed && checkText {
		if _, ok := s.texts[m.ObjectID]; ok {
			delete(s.texts, m.ObjectID)
			s.textOrder = removeID(s.textOrder, m.ObjectID)
			removed = true
		}
	}
	if removed && s.objectCount > 0 {
		s.objectCount--
	}
	s.mu.Unlock()

	if removed {
		r.effects.BoardUpdated()
	}
}

func (r *Reducer) applyCursorMoved(m *types.CursorMoved) {
	s := r.state
	s.mu.Lock()
	p, ok := s.participants[m.UserID]
	if ok {
		p.CursorX = m.X
		p.CursorY = m.Y
		p.ActiveTool = m.Tool
	}
	s.mu.Unlock()

	if ok {
		r.effects.BoardUpdated()
	}
}

// crossedWarnThresholdLocked is called with state.mu held, right after
// an increment. The warning fires once per session.
func (r *Reducer) crossedWarnThresholdLocked() bool {
	if r.state.limitWarned || r.state.objectCount < r.warnThreshold {
		return false
	}
	r.state.limitWarned = true
	return true
}

func (r *Reducer) warnNearLimit() {
	r.effects.Warning(fmt.Sprintf("Board is nearly full: %d of %d objects", r.state.ObjectCount(), r.maxObjects))
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
