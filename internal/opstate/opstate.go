// Package opstate holds the single OperationState of the running process.
//
// Operations are not serialized: two handlers updating concurrently race and
// the last Update wins. The mutex only keeps readers from seeing a torn
// record.
package opstate

import (
	"context"
	"sync"

	"github.com/lotas/notebridge/internal/types"
)

// SummaryDeleter removes the persisted summary. Implemented by
// storage.Store.
type SummaryDeleter interface {
	DeleteSummary(ctx context.Context) error
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status        *types.Status
	Summary       *string
	URL           *string
	Title         *string
	Error         *string
	IsExtractOnly *bool
}

// Store owns the OperationState.
type Store struct {
	mu      sync.Mutex
	state   types.OperationState
	persist SummaryDeleter
	subs    map[int]chan types.OperationState
	nextSub int
}

// New returns a Store in the None state. persist may be nil.
func New(persist SummaryDeleter) *Store {
	return &Store{
		state:   types.OperationState{Status: types.StatusNone},
		persist: persist,
		subs:    make(map[int]chan types.OperationState),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() types.OperationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update shallow-merges p into the state and returns the result. Summary is
// kept only while Completed and Error only while Error.
func (s *Store) Update(p Patch) types.OperationState {
	s.mu.Lock()
	st := s.state
	if p.Status != nil {
		st.Status = *p.Status
	}
	if p.Summary != nil {
		st.Summary = *p.Summary
	}
	if p.URL != nil {
		st.URL = *p.URL
	}
	if p.Title != nil {
		st.Title = *p.Title
	}
	if p.Error != nil {
		st.Error = *p.Error
	}
	if p.IsExtractOnly != nil {
		st.IsExtractOnly = *p.IsExtractOnly
	}
	st = normalize(st)
	s.state = st
	s.publishLocked(st)
	s.mu.Unlock()
	return st
}

// Clear resets the state to None and deletes the persisted summary. The
// in-memory reset happens even if the delete fails.
func (s *Store) Clear(ctx context.Context) (types.OperationState, error) {
	s.mu.Lock()
	st := types.OperationState{Status: types.StatusNone}
	s.state = st
	s.publishLocked(st)
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.DeleteSummary(ctx); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Subscribe returns a channel receiving every new state and a cancel func.
// Slow subscribers miss intermediate states rather than blocking writers.
func (s *Store) Subscribe() (<-chan types.OperationState, func()) {
	ch := make(chan types.OperationState, 8)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publishLocked(st types.OperationState) {
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func normalize(st types.OperationState) types.OperationState {
	if st.Status == "" {
		st.Status = types.StatusNone
	}
	if st.Status != types.StatusCompleted {
		st.Summary = ""
	}
	if st.Status != types.StatusError {
		st.Error = ""
	}
	return st
}

// Helpers for building patches.

func Status(s types.Status) *types.Status { return &s }
func String(s string) *string            { return &s }
func Bool(b bool) *bool                  { return &b }

// Processing starts an operation for the given page.
func Processing(url, title string, extractOnly bool) Patch {
	return Patch{
		Status:        Status(types.StatusProcessing),
		URL:           String(url),
		Title:         String(title),
		IsExtractOnly: Bool(extractOnly),
	}
}

// Completed records a finished operation.
func Completed(summary, url, title string, extractOnly bool) Patch {
	return Patch{
		Status:        Status(types.StatusCompleted),
		Summary:       String(summary),
		URL:           String(url),
		Title:         String(title),
		IsExtractOnly: Bool(extractOnly),
	}
}

// Failed records a failed operation.
func Failed(msg, url, title string, extractOnly bool) Patch {
	return Patch{
		Status:        Status(types.StatusError),
		Error:         String(msg),
		URL:           String(url),
		Title:         String(title),
		IsExtractOnly: Bool(extractOnly),
	}
}
