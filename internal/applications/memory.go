package applications

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/pkg/pagination"
)

// memoryStore is an in-memory Store for tests and local development.
// All returned applications are deep copies.
type memoryStore struct {
	mu    sync.Mutex
	apps  map[uuid.UUID]*Application
	order map[uuid.UUID]int
	next  int
}

// NewMemoryStore creates an empty in-memory application store.
func NewMemoryStore() Store {
	return &memoryStore{
		apps:  make(map[uuid.UUID]*Application),
		order: make(map[uuid.UUID]int),
	}
}

func (s *memoryStore) Create(ctx context.Context, userID uuid.UUID) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	app := &Application{
		ID:           uuid.New(),
		UserID:       userID,
		Stage:        StageOCRProcessing,
		Status:       StatusInitiated,
		StageHistory: []Transition{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.apps[app.ID] = app
	s.order[app.ID] = s.next
	s.next++

	return cloneApplication(app), nil
}

func (s *memoryStore) Find(ctx context.Context, id uuid.UUID) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneApplication(app), nil
}

func (s *memoryStore) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[Application], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*Application
	for _, app := range s.apps {
		if app.UserID == userID {
			matched = append(matched, app)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return s.order[matched[i].ID] < s.order[matched[j].ID]
	})

	total := len(matched)
	offset := page.Offset()
	if offset > total {
		offset = total
	}
	end := offset + page.PageSize
	if end > total {
		end = total
	}

	items := make([]Application, 0, end-offset)
	for _, app := range matched[offset:end] {
		c := cloneApplication(app)
		c.StageHistory = []Transition{}
		items = append(items, *c)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (s *memoryStore) Transitions(ctx context.Context, id uuid.UUID) ([]Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneApplication(app).StageHistory, nil
}

func (s *memoryStore) AppendTransition(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}

	if app.Stage != cmd.ExpectedStage {
		return nil, ErrConflict
	}
	if cmd.Outcome != nil && app.Outcome != nil {
		return nil, ErrConflict
	}

	now := time.Now().UTC()

	entry := Transition{
		ID:            uuid.New(),
		ApplicationID: id,
		Stage:         cmd.Stage,
		Status:        cmd.EntryStatus,
		CreatedAt:     now,
	}
	if cmd.Detail != nil {
		raw, err := json.Marshal(cmd.Detail)
		if err != nil {
			return nil, err
		}
		entry.Detail = raw
	}

	app.StageHistory = append(app.StageHistory, entry)
	app.Stage = cmd.NextStage
	app.Status = cmd.Status
	if cmd.Outcome != nil {
		outcome := *cmd.Outcome
		app.Outcome = &outcome
	}
	if cmd.OutcomeReason != nil {
		reason := *cmd.OutcomeReason
		app.OutcomeReason = &reason
	}
	if cmd.Fields != nil {
		app.ExtractedFields = cloneMap(cmd.Fields)
	}
	app.UpdatedAt = now

	return cloneApplication(app), nil
}

func cloneApplication(app *Application) *Application {
	c := *app
	c.ExtractedFields = cloneMap(app.ExtractedFields)
	if app.Outcome != nil {
		outcome := *app.Outcome
		c.Outcome = &outcome
	}
	if app.OutcomeReason != nil {
		reason := *app.OutcomeReason
		c.OutcomeReason = &reason
	}
	c.StageHistory = make([]Transition, len(app.StageHistory))
	copy(c.StageHistory, app.StageHistory)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
