package outbound

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkboard/internal/ledger"
	"inkboard/pkg/types"
)

var errClosed = errors.New("fake connection closed")

// fakeConn records frames in send order and can simulate a closed or
// backlogged transport. When hold is set, point frames block until it
// is closed; each stalled send signals blockedOnPoints first.
type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	times   []time.Time
	open    bool
	backlog int

	hold            chan struct{}
	blockedOnPoints chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{open: true}
}

func (f *fakeConn) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.SendRaw(data)
}

func (f *fakeConn) SendRaw(data []byte) error {
	if f.hold != nil && frameType(data) == types.MessageTypeStrokePoints {
		select {
		case f.blockedOnPoints <- struct{}{}:
		default:
		}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return errClosed
	}
	f.frames = append(f.frames, data)
	f.times = append(f.times, time.Now())
	return nil
}

func (f *fakeConn) Backlog() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backlog
}

func (f *fakeConn) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeConn) setBacklog(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backlog = n
}

func (f *fakeConn) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) sentOfType(msgType string) [][]byte {
	var out [][]byte
	for _, frame := range f.sent() {
		if frameType(frame) == msgType {
			out = append(out, frame)
		}
	}
	return out
}

func frameType(data []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(data, &envelope) != nil {
		return ""
	}
	return envelope.Type
}

func newTestEncoder(conn *fakeConn) (*Encoder, *ledger.Ledger) {
	led := ledger.New()
	e := New(conn, led, 5*time.Millisecond, 50*time.Millisecond, 256*1024)
	return e, led
}

func TestStrokeStartReturnsIDSynchronously(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)
	e.Start()
	defer e.Stop()

	id := e.StrokeStart(types.StrokeInfo{LayerID: "default", BrushType: types.ToolPen, Color: "#000000", Width: 5})
	require.NotEmpty(t, id)
	assert.Contains(t, id, "stroke_")

	frames := conn.sentOfType(types.MessageTypeStrokeStart)
	require.Len(t, frames, 1)

	var req types.StrokeStartRequest
	require.NoError(t, json.Unmarshal(frames[0], &req))
	assert.Equal(t, id, req.StrokeID)
	assert.Equal(t, types.ToolPen, req.Stroke.BrushType)
}

func TestPointsAreBatchedNotSentPerSample(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)
	e.Start()
	defer e.Stop()

	id := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	for i := 0; i < 10; i++ {
		e.StrokePoint(id, types.Point{X: float64(i)})
	}

	// All ten samples land in one flush-interval batch.
	time.Sleep(20 * time.Millisecond)

	frames := conn.sentOfType(types.MessageTypeStrokePoints)
	require.Len(t, frames, 1)

	var req types.StrokePointsRequest
	require.NoError(t, json.Unmarshal(frames[0], &req))
	assert.Len(t, req.Points, 10)
	for i, p := range req.Points {
		assert.Equal(t, float64(i), p.X)
	}
}

func TestBatchesDeferredWhileBacklogged(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)
	e.Start()
	defer e.Stop()

	id := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	conn.setBacklog(512 * 1024)
	e.StrokePoint(id, types.Point{X: 1})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, conn.sentOfType(types.MessageTypeStrokePoints), "batch must be delayed, not sent")
	assert.Equal(t, 1, e.PendingBatches(), "batch must be retained, not dropped")

	// Backlog drains; the retained batch goes out on the next tick.
	conn.setBacklog(0)
	time.Sleep(20 * time.Millisecond)

	frames := conn.sentOfType(types.MessageTypeStrokePoints)
	require.Len(t, frames, 1)
	assert.Zero(t, e.PendingBatches())
}

func TestStrokeEndFlushesPointsFirst(t *testing.T) {
	conn := newFakeConn()
	e, led := newTestEncoder(conn)
	// Not started: no ticker runs, so ordering comes from StrokeEnd itself.

	id := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	e.StrokePoint(id, types.Point{X: 1})
	e.StrokePoint(id, types.Point{X: 2})
	e.StrokeEnd(id)

	frames := conn.sent()
	require.Len(t, frames, 3, "start, points, end")

	var envelope struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(frames[1], &envelope))
	assert.Equal(t, types.MessageTypeStrokePoints, envelope.Type)
	require.NoError(t, json.Unmarshal(frames[2], &envelope))
	assert.Equal(t, types.MessageTypeStrokeEnd, envelope.Type)

	undoDepth, _ := led.Depths()
	assert.Equal(t, 1, undoDepth, "completed stroke recorded for undo")
}

func TestStrokeEndWaitsForInFlightFlush(t *testing.T) {
	conn := newFakeConn()
	conn.hold = make(chan struct{})
	conn.blockedOnPoints = make(chan struct{}, 1)
	e, _ := newTestEncoder(conn)
	e.Start()
	defer e.Stop()

	idA := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	idB := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	e.StrokePoint(idA, types.Point{X: 1})
	e.StrokePoint(idB, types.Point{X: 2})

	// The flusher is stalled mid-send with batches already taken out of
	// the buffer.
	<-conn.blockedOnPoints

	done := make(chan struct{})
	go func() {
		e.StrokeEnd(idB)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("stroke end completed while a point flush was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(conn.hold)
	<-done

	pointsIdx, endIdx := -1, -1
	for i, frame := range conn.sent() {
		var req struct {
			Type     string `json:"type"`
			StrokeID string `json:"stroke_id"`
		}
		require.NoError(t, json.Unmarshal(frame, &req))
		if req.StrokeID != idB {
			continue
		}
		switch req.Type {
		case types.MessageTypeStrokePoints:
			pointsIdx = i
		case types.MessageTypeStrokeEnd:
			endIdx = i
		}
	}
	require.NotEqual(t, -1, pointsIdx)
	require.NotEqual(t, -1, endIdx)
	assert.Less(t, pointsIdx, endIdx, "points must precede the end marker on the wire")
}

func TestCursorUpdatesCollapseToMostRecent(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)
	start := time.Now()
	e.Start()
	defer e.Stop()

	e.CursorUpdate(1, 1, types.ToolPen)
	time.Sleep(10 * time.Millisecond)
	e.CursorUpdate(2, 2, types.ToolPen)

	time.Sleep(80 * time.Millisecond)

	frames := conn.sentOfType(types.MessageTypeCursorUpdate)
	require.Len(t, frames, 1, "burst inside the window collapses to one message")

	var req types.CursorUpdateRequest
	require.NoError(t, json.Unmarshal(frames[0], &req))
	assert.Equal(t, 2.0, req.X, "most recent position wins")

	conn.mu.Lock()
	sentAt := conn.times[len(conn.times)-1]
	conn.mu.Unlock()
	assert.GreaterOrEqual(t, sentAt.Sub(start), 50*time.Millisecond, "held until the window elapses")
}

func TestCursorUpdateAfterWindowSentImmediately(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)
	e.Start()
	defer e.Stop()

	time.Sleep(60 * time.Millisecond)
	e.CursorUpdate(5, 5, types.ToolMarker)

	frames := conn.sentOfType(types.MessageTypeCursorUpdate)
	require.Len(t, frames, 1)
}

func TestUndoSendsRequestAndRedoReplaysPayload(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)

	id := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen, Color: "#112233"})
	e.StrokeEnd(id)

	startFrames := conn.sentOfType(types.MessageTypeStrokeStart)
	require.Len(t, startFrames, 1)
	original := startFrames[0]

	require.NoError(t, e.Undo())

	undoFrames := conn.sentOfType(types.MessageTypeUndo)
	require.Len(t, undoFrames, 1)
	var undoReq types.UndoRequest
	require.NoError(t, json.Unmarshal(undoFrames[0], &undoReq))
	assert.Equal(t, id, undoReq.ObjectID)
	assert.Equal(t, types.KindStroke, undoReq.ObjectKind)

	require.NoError(t, e.Redo())

	startFrames = conn.sentOfType(types.MessageTypeStrokeStart)
	require.Len(t, startFrames, 2)
	assert.Equal(t, string(original), string(startFrames[1]), "redo re-sends the creation payload unchanged")
}

func TestUndoRedoOnEmptyStacks(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)

	assert.ErrorIs(t, e.Undo(), ErrNothingToUndo)
	assert.ErrorIs(t, e.Redo(), ErrNothingToRedo)
	assert.Empty(t, conn.sent())
}

func TestConfirmCreationFeedsLedger(t *testing.T) {
	conn := newFakeConn()
	e, led := newTestEncoder(conn)

	payload := []byte(`{"type":"shape_create","shape":{"type":"rectangle"}}`)
	e.ConfirmCreation("shape_1", types.KindShape, payload)

	require.NoError(t, e.Undo())
	undoFrames := conn.sentOfType(types.MessageTypeUndo)
	require.Len(t, undoFrames, 1)

	var req types.UndoRequest
	require.NoError(t, json.Unmarshal(undoFrames[0], &req))
	assert.Equal(t, "shape_1", req.ObjectID)
	assert.Equal(t, types.KindShape, req.ObjectKind)

	_, redoDepth := led.Depths()
	assert.Equal(t, 1, redoDepth)
}

func TestSendsOnClosedTransportAreSilent(t *testing.T) {
	conn := newFakeConn()
	conn.Close()
	e, _ := newTestEncoder(conn)

	// None of these may panic or surface an error to the caller.
	id := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	e.StrokePoint(id, types.Point{X: 1})
	e.ShapeCreate(types.ShapeInfo{Kind: types.ToolCircle})
	e.TextCreate(types.TextInfo{Text: "x"})
	e.ErasePath([]types.Point{{X: 1}}, 20)
	e.CursorUpdate(1, 1, types.ToolPen)

	assert.Empty(t, conn.sent())
}

func TestStopCancelsTimers(t *testing.T) {
	conn := newFakeConn()
	e, _ := newTestEncoder(conn)
	e.Start()

	id := e.StrokeStart(types.StrokeInfo{BrushType: types.ToolPen})
	e.StrokePoint(id, types.Point{X: 1})
	e.CursorUpdate(1, 1, types.ToolPen)
	e.Stop()

	before := len(conn.sent())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, before, len(conn.sent()), "nothing may fire after Stop")

	// Stop is idempotent.
	e.Stop()
}
