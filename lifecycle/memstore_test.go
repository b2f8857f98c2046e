package lifecycle_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/models"
)

// memStore is an in-memory Store with the same filter semantics and unique case
// number index as the mongo backed one.
type memStore struct {
	mu       sync.Mutex
	cases    map[primitive.ObjectID]models.Case
	countErr error
	findErr  error
	saveErr  error
	saves    int
}

func newMemStore(cases ...models.Case) *memStore {
	s := &memStore{cases: map[primitive.ObjectID]models.Case{}}
	for _, c := range cases {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		s.cases[c.ID] = c
	}
	return s
}

func (s *memStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	c, ok := s.cases[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c.Notes = append([]models.Note(nil), c.Notes...)
	return &c, nil
}

func (s *memStore) Save(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	for id, other := range s.cases {
		if id != c.ID && other.CaseNumber == c.CaseNumber {
			return apperrors.ErrDuplicateKey
		}
	}
	saved := *c
	saved.Notes = append([]models.Note(nil), c.Notes...)
	s.cases[c.ID] = saved
	return nil
}

func (s *memStore) CountCreatedBetween(_ context.Context, start, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, c := range s.cases {
		if !c.CreatedAt.Before(start) && c.CreatedAt.Before(end) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindMany(_ context.Context, f models.CaseFilter, _ models.CaseSort, w models.PageWindow) ([]models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := []models.Case{}
	for _, c := range s.cases {
		if matches(f, c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if w.Skip > 0 {
		if int(w.Skip) >= len(out) {
			return []models.Case{}, nil
		}
		out = out[w.Skip:]
	}
	if w.Limit > 0 && int(w.Limit) < len(out) {
		out = out[:w.Limit]
	}
	return out, nil
}

func (s *memStore) CountMatching(_ context.Context, f models.CaseFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return 0, s.findErr
	}
	var n int64
	for _, c := range s.cases {
		if matches(f, c) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) get(id primitive.ObjectID) models.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases[id]
}

func matches(f models.CaseFilter, c models.Case) bool {
	if f.ReportedBy != nil && c.ReportedBy != *f.ReportedBy {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.ExcludeStatus != "" && c.Status == f.ExcludeStatus {
		return false
	}
	if f.PublicOnly && !c.IsPublic {
		return false
	}
	if f.ActiveOnly && !c.IsActive {
		return false
	}
	if !f.CreatedSince.IsZero() && c.CreatedAt.Before(f.CreatedSince) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hit := false
		for _, field := range []string{c.MissingPerson.Name, c.CaseNumber, c.LastKnownLocation.City} {
			if strings.Contains(strings.ToLower(field), q) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// recorder captures observer events
type recorder struct {
	mu         sync.Mutex
	created    []models.Case
	changes    []lifecycle.StatusChange
	dismissals []lifecycle.Dismissal
	fallbacks  []error
}

func (r *recorder) CaseCreated(_ context.Context, c models.Case) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, c)
}

func (r *recorder) StatusChanged(_ context.Context, _ models.Case, change lifecycle.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recorder) CaseDismissed(_ context.Context, _ models.Case, d lifecycle.Dismissal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissals = append(r.dismissals, d)
}

func (r *recorder) CaseNumberFallback(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, err)
}
