// Package board owns the reconciled canvas state and the single
// reducer that applies every inbound session event to it.
package board

import (
	"sync"

	"inkboard/pkg/types"
)

// State holds the canvas collections and the participant list. The
// Reducer is the only writer; everything else reads through the
// copying accessors below.
type State struct {
	mu sync.RWMutex

	strokes     map[string]*types.Stroke
	strokeOrder []string
	shapes      map[string]*types.Shape
	shapeOrder  []string
	texts       map[string]*types.TextObject
	textOrder   []string

	participants map[string]*types.Participant
	layers       []types.Layer

	objectCount int
	selfID      string
	selfRole    types.Role
	established bool
	limitWarned bool
}

func NewState() *State {
	s := &State{}
	s.reset()
	return s
}

func (s *State) reset() {
	s.strokes = make(map[string]*types.Stroke)
	s.strokeOrder = nil
	s.shapes = make(map[string]*types.Shape)
	s.shapeOrder = nil
	s.texts = make(map[string]*types.TextObject)
	s.textOrder = nil
	s.participants = make(map[string]*types.Participant)
	s.layers = nil
	s.objectCount = 0
	s.selfID = ""
	s.selfRole = ""
	s.established = false
	s.limitWarned = false
}

// Reset clears everything. Called on session teardown.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Established reports whether a welcome has been applied.
func (s *State) Established() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.established
}

// SelfID returns the server-assigned id of this client's user.
func (s *State) SelfID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

// ObjectCount returns confirmed creations minus confirmed deletions.
func (s *State) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objectCount
}

// Strokes returns the strokes in creation order.
func (s *State) Strokes() []types.Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Stroke, 0, len(s.strokeOrder))
	for _, id := range s.strokeOrder {
		if stroke, ok := s.strokes[id]; ok {
			out = append(out, *stroke)
		}
	}
	return out
}

// Stroke returns a copy of one stroke by id.
func (s *State) Stroke(id string) (types.Stroke, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stroke, ok := s.strokes[id]
	if !ok {
		return types.Stroke{}, false
	}
	return *stroke, true
}

// Shapes returns the shapes in creation order.
func (s *State) Shapes() []types.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Shape, 0, len(s.shapeOrder))
	for _, id := range s.shapeOrder {
		if shape, ok := s.shapes[id]; ok {
			out = append(out, *shape)
		}
	}
	return out
}

// Texts returns the text objects in creation order.
func (s *State) Texts() []types.TextObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TextObject, 0, len(s.textOrder))
	for _, id := range s.textOrder {
		if text, ok := s.texts[id]; ok {
			out = append(out, *text)
		}
	}
	return out
}

// Participants returns the current participant list.
func (s *State) Participants() []types.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}

// Participant returns one participant by id.
func (s *State) Participant(id string) (types.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return types.Participant{}, false
	}
	return *p, true
}

// Layers returns the layer list from the snapshot.
func (s *State) Layers() []types.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Layer, len(s.layers))
	copy(out, s.layers)
	return out
}
