// Package outbound turns drawing intents into wire messages. It owns
// the three pacing policies of the protocol: stroke point batching,
// cursor throttling, and backlog-aware deferral.
package outbound

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkboard/internal/ledger"
	"inkboard/pkg/interfaces"
	"inkboard/pkg/types"
)

// Encoder batches and sends drawing traffic over one connection. A
// fresh Encoder is created per session and stopped on teardown. Sends
// attempted while the transport is down are silent no-ops; point
// batches are the exception in that they are retained and retried,
// never dropped.
type Encoder struct {
	conn   interfaces.Connection
	ledger *ledger.Ledger

	flushInterval  time.Duration
	cursorInterval time.Duration
	maxBacklog     int

	// flushMu serializes batch sends with stroke finalization: a flush
	// takes buffered points out of pending before sending them, and a
	// concurrent StrokeEnd must not slip its end marker in between.
	flushMu sync.Mutex

	mu           sync.Mutex
	pending      map[string][]types.Point
	pendingOrder []string
	inflight     map[string]json.RawMessage

	lastCursorAt  time.Time
	pendingCursor *types.CursorUpdateRequest
	cursorTimer   *time.Timer

	stopOnce sync.Once
	done     chan struct{}
}

// New creates an encoder over conn. Start must be called before
// pointer traffic is paced; Stop cancels all timers.
func New(conn interfaces.Connection, led *ledger.Ledger, flushInterval, cursorInterval time.Duration, maxBacklog int) *Encoder {
	return &Encoder{
		conn:           conn,
		ledger:         led,
		flushInterval:  flushInterval,
		cursorInterval: cursorInterval,
		maxBacklog:     maxBacklog,
		pending:        make(map[string][]types.Point),
		inflight:       make(map[string]json.RawMessage),
		done:           make(chan struct{}),
	}
}

// Start begins the batch flush loop and opens the cursor throttle
// window.
func (e *Encoder) Start() {
	e.mu.Lock()
	e.lastCursorAt = time.Now()
	e.mu.Unlock()

	go e.flushLoop()
}

// Stop cancels the flush and throttle timers so nothing fires against
// a dead transport. Idempotent.
func (e *Encoder) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.mu.Lock()
		if e.cursorTimer != nil {
			e.cursorTimer.Stop()
			e.cursorTimer = nil
		}
		e.pendingCursor = nil
		e.pending = make(map[string][]types.Point)
		e.pendingOrder = nil
		e.mu.Unlock()
	})
}

// StrokeStart announces a new stroke and returns its correlation id
// synchronously, before any server acknowledgement, so point batches
// and the end marker can reference it.
func (e *Encoder) StrokeStart(info types.StrokeInfo) string {
	id := fmt.Sprintf("stroke_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	req := types.StrokeStartRequest{
		Type:     types.MessageTypeStrokeStart,
		StrokeID: id,
		Stroke:   info,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return id
	}

	e.mu.Lock()
	e.inflight[id] = payload
	e.mu.Unlock()

	e.sendRaw(payload)
	return id
}

// StrokePoint buffers one pointer sample for the given stroke. Points
// accumulate per stroke id and go out on the flush interval.
func (e *Encoder) StrokePoint(strokeID string, p types.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[strokeID]; !ok {
		e.pendingOrder = append(e.pendingOrder, strokeID)
	}
	e.pending[strokeID] = append(e.pending[strokeID], p)
}

// StrokeEnd flushes any buffered points for the stroke and then sends
// the end marker, guaranteeing point-before-end ordering on the wire.
// It waits for an in-flight batch flush so points already taken out of
// the buffer go out first. The completed stroke is recorded in the
// undo ledger.
func (e *Encoder) StrokeEnd(strokeID string) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	points := e.pending[strokeID]
	delete(e.pending, strokeID)
	e.pendingOrder = removeID(e.pendingOrder, strokeID)
	payload := e.inflight[strokeID]
	delete(e.inflight, strokeID)
	e.mu.Unlock()

	if len(points) > 0 {
		e.send(types.StrokePointsRequest{
			Type:     types.MessageTypeStrokePoints,
			StrokeID: strokeID,
			Points:   points,
		})
	}
	e.send(types.StrokeEndRequest{
		Type:     types.MessageTypeStrokeEnd,
		StrokeID: strokeID,
	})

	if payload != nil {
		e.ledger.Push(strokeID, types.KindStroke, payload)
	}
}

// ShapeCreate sends an atomic shape creation.
func (e *Encoder) ShapeCreate(info types.ShapeInfo) {
	e.send(types.ShapeCreateRequest{Type: types.MessageTypeShapeCreate, Shape: info})
}

// TextCreate sends an atomic text creation.
func (e *Encoder) TextCreate(info types.TextInfo) {
	e.send(types.TextCreateRequest{Type: types.MessageTypeTextCreate, Text: info})
}

// ErasePath sends an eraser path for server-side intersection cutting.
func (e *Encoder) ErasePath(points []types.Point, width float64) {
	e.send(types.ErasePathRequest{Type: types.MessageTypeErasePath, Points: points, Width: width})
}

// CursorUpdate rate-limits cursor traffic to one message per window.
// An update inside the window overwrites any still-pending one; the
// most recent position wins. An update after the window elapses goes
// out immediately.
func (e *Encoder) CursorUpdate(x, y float64, tool string) {
	req := &types.CursorUpdateRequest{
		Type: types.MessageTypeCursorUpdate,
		X:    x,
		Y:    y,
		Tool: tool,
	}

	e.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(e.lastCursorAt)
	if elapsed >= e.cursorInterval && e.pendingCursor == nil {
		e.lastCursorAt = now
		e.mu.Unlock()
		e.send(*req)
		return
	}

	e.pendingCursor = req
	if e.cursorTimer == nil {
		wait := e.cursorInterval - elapsed
		if wait < 0 {
			wait = 0
		}
		e.cursorTimer = time.AfterFunc(wait, e.flushCursor)
	}
	e.mu.Unlock()
}

func (e *Encoder) flushCursor() {
	e.mu.Lock()
	req := e.pendingCursor
	e.pendingCursor = nil
	e.cursorTimer = nil
	if req != nil {
		e.lastCursorAt = time.Now()
	}
	e.mu.Unlock()

	if req == nil {
		return
	}
	select {
	case <-e.done:
		return
	default:
	}
	e.send(*req)
}

// Undo pops the most recent self-authored action and asks the server
// to revert it. Returns ErrNothingToUndo on an empty history.
func (e *Encoder) Undo() error {
	entry, ok := e.ledger.Undo()
	if !ok {
		return ErrNothingToUndo
	}
	e.send(types.UndoRequest{
		Type:       types.MessageTypeUndo,
		ObjectID:   entry.ID,
		ObjectKind: entry.Kind,
	})
	return nil
}

// Redo re-sends the original creation payload of the most recently
// undone action, unchanged. Returns ErrNothingToRedo on an empty
// redo stack.
func (e *Encoder) Redo() error {
	entry, ok := e.ledger.Redo()
	if !ok {
		return ErrNothingToRedo
	}
	e.sendRaw(entry.Payload)
	return nil
}

// ConfirmCreation records a server-confirmed self-authored shape or
// text in the undo ledger. Stroke ids are local, so strokes are
// recorded at StrokeEnd instead.
func (e *Encoder) ConfirmCreation(id string, kind types.ObjectKind, payload []byte) {
	e.ledger.Push(id, kind, payload)
}

// KickUser asks the server to remove a participant. Admin only; the
// server enforces the privilege.
func (e *Encoder) KickUser(userID string) {
	e.send(types.AdminKickRequest{Type: types.MessageTypeAdminKick, UserID: userID})
}

// BanUser kicks a participant and revokes their membership token.
func (e *Encoder) BanUser(userID string) {
	e.send(types.AdminBanRequest{Type: types.MessageTypeAdminBan, UserID: userID})
}

// EndSession asks the server to end the session for everyone.
func (e *Encoder) EndSession() {
	e.send(types.AdminEndSessionRequest{Type: types.MessageTypeAdminEndSession})
}

// PendingBatches returns the number of strokes with unflushed points.
func (e *Encoder) PendingBatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pendingOrder)
}

func (e *Encoder) flushLoop() {
	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flushBatches()
		case <-e.done:
			return
		}
	}
}

// flushBatches drains the pending point buffers in enqueue order.
// While the transport is closed or backlogged the buffers stay put:
// batches are delayed, never dropped, and the next tick retries.
func (e *Encoder) flushBatches() {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if len(e.pendingOrder) == 0 {
		e.mu.Unlock()
		return
	}
	if !e.conn.IsOpen() || e.conn.Backlog() > e.maxBacklog {
		e.mu.Unlock()
		return
	}

	order := e.pendingOrder
	pending := e.pending
	e.pendingOrder = nil
	e.pending = make(map[string][]types.Point)
	e.mu.Unlock()

	for i, strokeID := range order {
		err := e.conn.Send(types.StrokePointsRequest{
			Type:     types.MessageTypeStrokePoints,
			StrokeID: strokeID,
			Points:   pending[strokeID],
		})
		if err == nil {
			continue
		}

		// Requeue this batch and everything after it in front of any
		// points buffered since, preserving per-stroke order.
		e.mu.Lock()
		requeued := order[i:]
		for j := len(requeued) - 1; j >= 0; j-- {
			id := requeued[j]
			e.pending[id] = append(pending[id], e.pending[id]...)
			e.pendingOrder = prependID(e.pendingOrder, id)
		}
		e.mu.Unlock()
		return
	}
}

func (e *Encoder) send(v interface{}) {
	if err := e.conn.Send(v); err != nil {
		// Not sent; callers treat this as a silent no-op.
		log.Printf("outbound: message not sent: %v", err)
	}
}

func (e *Encoder) sendRaw(data []byte) {
	if err := e.conn.SendRaw(data); err != nil {
		log.Printf("outbound: message not sent: %v", err)
	}
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

func prependID(order []string, id string) []string {
	for _, v := range order {
		if v == id {
			return order
		}
	}
	return append([]string{id}, order...)
}
