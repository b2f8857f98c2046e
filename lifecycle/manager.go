// Package lifecycle owns the status of a case: who may change it, what each status
// does to the case's visibility, and the audit note every change leaves behind.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/models"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	// keeps (page-1)*limit well inside int64
	maxPage = math.MaxInt32

	// StatusAll disables the status filter of ListPublicCases
	StatusAll = "all"
)

// Manager implements the case lifecycle on top of a Store
type Manager struct {
	store    Store
	observer Observer
	now      func() time.Time
	loc      *time.Location
	suffix   func() string
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the zone whose calendar days number cases
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithObserver registers o for lifecycle events
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithRandom replaces the generator of fallback case number suffixes
func WithRandom(suffix func() string) Option {
	return func(m *Manager) { m.suffix = suffix }
}

// NewManager returns a Manager over store
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		observer: NopObserver{},
		now:      time.Now,
		loc:      time.Local,
		suffix:   randomSuffix,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateCase validates in and persists a new active, public case owned by owner
func (m *Manager) CreateCase(ctx context.Context, owner models.Requester, in models.CaseInput) (*models.Case, error) {
	c, err := buildCase(in)
	if err != nil {
		return nil, err
	}

	now := m.now()
	c.ID = primitive.NewObjectID()
	c.ReportedBy = owner.ID
	c.Notes = []models.Note{}
	c.Status = models.StatusActive
	c.IsPublic = true
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now
	c.CaseNumber = m.nextCaseNumber(ctx, now)

	err = m.store.Save(ctx, &c)
	if errors.Is(err, apperrors.ErrDuplicateKey) {
		zap.S().Warnw("case number taken, retrying with fallback",
			"caseNumber", c.CaseNumber)
		m.observer.CaseNumberFallback(ctx, err)
		c.CaseNumber = fallbackNumber(now, m.suffix())
		err = m.store.Save(ctx, &c)
	}
	if err != nil {
		return nil, apperrors.Internal("Server error while creating case", err)
	}

	m.observer.CaseCreated(ctx, c)
	return &c, nil
}

// UpdateStatus moves a case to status on behalf of r, appending a public note with
// notes or a generated description of the change.
func (m *Manager) UpdateStatus(ctx context.Context, caseID string, r models.Requester, status, notes string) (*StatusChange, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	c, err := m.load(ctx, caseID, "Server error while updating case status")
	if err != nil {
		return nil, err
	}
	if !canMutate(c, r) {
		return nil, apperrors.Forbidden("Access denied. Only the case reporter can update status.")
	}
	if err := checkLeave(c, next, r); err != nil {
		return nil, err
	}

	now := m.now()
	old := c.Status
	enter(c, next)

	notes = strings.TrimSpace(notes)
	if notes != "" || next != old {
		content := notes
		if content == "" {
			content = fmt.Sprintf("Status changed from %s to %s by %s", old, next, r.DisplayName())
		}
		c.Notes = append(c.Notes, models.Note{
			Content:  content,
			AddedBy:  r.ID,
			AddedAt:  now,
			IsPublic: true,
		})
	}
	c.UpdatedAt = now

	if err := m.store.Save(ctx, c); err != nil {
		return nil, apperrors.Internal("Server error while updating case status", err)
	}

	change := StatusChange{
		CaseID:     c.ID,
		CaseNumber: c.CaseNumber,
		OldStatus:  old,
		NewStatus:  next,
		UpdatedAt:  now,
	}
	m.observer.StatusChanged(ctx, *c, change)
	return &change, nil
}

// DismissCase withdraws a case from public view and leaves a private note. Dismissing
// an already dismissed case succeeds and adds another note.
func (m *Manager) DismissCase(ctx context.Context, caseID string, r models.Requester) (*Dismissal, error) {
	c, err := m.load(ctx, caseID, "Server error while dismissing case")
	if err != nil {
		return nil, err
	}
	if !canMutate(c, r) {
		return nil, apperrors.Forbidden("Access denied. Only the case reporter can dismiss this case.")
	}

	now := m.now()
	previous := c.Status
	enter(c, models.StatusDismissed)
	c.Notes = append(c.Notes, models.Note{
		Content:  fmt.Sprintf("Case dismissed by %s at %s", r.DisplayName(), models.Now(now)),
		AddedBy:  r.ID,
		AddedAt:  now,
		IsPublic: false,
	})
	c.UpdatedAt = now

	if err := m.store.Save(ctx, c); err != nil {
		return nil, apperrors.Internal("Server error while dismissing case", err)
	}

	d := Dismissal{
		CaseID:         c.ID,
		CaseNumber:     c.CaseNumber,
		PreviousStatus: previous,
		DismissedAt:    now,
	}
	m.observer.CaseDismissed(ctx, *c, d)
	return &d, nil
}

// GetCase returns a case for public display. Cases that are neither public nor active
// are refused.
func (m *Manager) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	c, err := m.load(ctx, caseID, "Server error while fetching case")
	if err != nil {
		return nil, err
	}
	if !c.IsPublic && !c.IsActive {
		return nil, apperrors.Forbidden("Case is not publicly accessible")
	}
	view := c.PublicView()
	return &view, nil
}

// ListOwnedCases returns the owner's active cases, newest first
func (m *Manager) ListOwnedCases(ctx context.Context, owner primitive.ObjectID) ([]models.Case, error) {
	cases, err := m.store.FindMany(ctx, models.CaseFilter{
		ReportedBy: &owner,
		ActiveOnly: true,
	}, models.NewestFirst, models.PageWindow{})
	if err != nil {
		return nil, apperrors.Internal("Server error while fetching your cases", err)
	}
	return cases, nil
}

// PublicQuery selects a page of public cases
type PublicQuery struct {
	Page   int
	Limit  int
	Status string
	Search string
}

func (q PublicQuery) normalize() PublicQuery {
	if q.Page < 1 {
		q.Page = defaultPage
	}
	if q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	q.Status = strings.TrimSpace(q.Status)
	if q.Status == "" {
		q.Status = string(models.StatusActive)
	}
	return q
}

// ListPublicCases returns one page of cases that are both public and active
func (m *Manager) ListPublicCases(ctx context.Context, q PublicQuery) (*models.CasePage, error) {
	q = q.normalize()
	filter := models.CaseFilter{
		PublicOnly: true,
		ActiveOnly: true,
		Search:     q.Search,
	}
	if q.Status != StatusAll {
		status, err := ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	window := models.PageWindow{
		Skip:  int64(q.Page-1) * int64(q.Limit),
		Limit: int64(q.Limit),
	}
	cases, err := m.store.FindMany(ctx, filter, models.NewestFirst, window)
	if err != nil {
		return nil, apperrors.Internal("Server error while fetching cases", err)
	}
	total, err := m.store.CountMatching(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("Server error while fetching cases", err)
	}

	page := make([]models.Case, 0, len(cases))
	for _, c := range cases {
		if c.IsPublic && c.IsActive {
			page = append(page, c.PublicView())
		}
	}
	return &models.CasePage{
		Cases: page,
		Pagination: models.Pagination{
			Page:  q.Page,
			Limit: q.Limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(q.Limit))),
		},
	}, nil
}

// Stats summarises the public case counts
func (m *Manager) Stats(ctx context.Context) (*models.CaseStats, error) {
	var s models.CaseStats
	since := m.now().Add(-24 * time.Hour)
	err := m.countAll(ctx, map[*int64]models.CaseFilter{
		&s.ActiveCases: {Status: models.StatusActive, PublicOnly: true, ActiveOnly: true},
		&s.FoundCases:  {Status: models.StatusFound, PublicOnly: true},
		&s.ClosedCases: {Status: models.StatusClosed, PublicOnly: true},
		&s.TotalCases:  {ExcludeStatus: models.StatusDismissed, PublicOnly: true, ActiveOnly: true},
		&s.RecentCases: {PublicOnly: true, ActiveOnly: true, CreatedSince: since},
	})
	if err != nil {
		return nil, apperrors.Internal("Server error while fetching statistics", err)
	}
	s.SuccessRate = successRate(s.FoundCases, s.TotalCases)
	return &s, nil
}

// OwnerStats summarises the cases reported by owner
func (m *Manager) OwnerStats(ctx context.Context, owner primitive.ObjectID) (*models.OwnerStats, error) {
	var s models.OwnerStats
	err := m.countAll(ctx, map[*int64]models.CaseFilter{
		&s.TotalCases:  {ReportedBy: &owner, ActiveOnly: true},
		&s.ActiveCases: {ReportedBy: &owner, Status: models.StatusActive, ActiveOnly: true},
		&s.FoundCases:  {ReportedBy: &owner, Status: models.StatusFound},
		&s.ClosedCases: {ReportedBy: &owner, Status: models.StatusClosed},
	})
	if err != nil {
		return nil, apperrors.Internal("Server error while fetching user statistics", err)
	}
	s.SuccessRate = successRate(s.FoundCases, s.TotalCases)
	return &s, nil
}

// countAll runs one CountMatching per filter concurrently, writing each result
// through its pointer.
func (m *Manager) countAll(ctx context.Context, counts map[*int64]models.CaseFilter) error {
	g, gctx := errgroup.WithContext(ctx)
	for dst, filter := range counts {
		dst, filter := dst, filter
		g.Go(func() error {
			n, err := m.store.CountMatching(gctx, filter)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	return g.Wait()
}

func successRate(found, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(found)/float64(total)*1000) / 10
}

// load parses caseID and fetches the case, classifying the failure.
func (m *Manager) load(ctx context.Context, caseID, serverMessage string) (*models.Case, error) {
	id, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return nil, apperrors.MalformedID("case")
	}
	c, err := m.store.FindByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("Case")
	}
	if err != nil {
		return nil, apperrors.Internal(serverMessage, err)
	}
	if c == nil {
		return nil, apperrors.NotFound("Case")
	}
	return c, nil
}
