package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/missingalert/missing-alert-api/databases/mocks"
	"github.com/missingalert/missing-alert-api/integrations"
	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/models"
)

type recordedEvent struct {
	name string
	data interface{}
}

type fakeFeed struct {
	events []recordedEvent
}

func (f *fakeFeed) Broadcast(event string, data interface{}) {
	f.events = append(f.events, recordedEvent{name: event, data: data})
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []integrations.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, e integrations.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	results map[string]int
	failed  int
}

func (r *fakeRecorder) EmailSent(template string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[template]++
	if err != nil {
		r.failed++
	}
}

func sampleCase() models.Case {
	return models.Case{
		ID:         primitive.NewObjectID(),
		CaseNumber: "MA-20250715-001",
		MissingPerson: models.MissingPerson{
			Name: "Ann Lee",
			Age:  14,
		},
		Description: "Last seen near the park",
		ContactInfo: models.ContactInfo{PrimaryContact: models.Contact{Name: "Bob Lee", Email: "bob@example.com"}},
		ReportedBy:  primitive.NewObjectID(),
		Status:      models.StatusActive,
		Notes: []models.Note{
			{Content: "private", IsPublic: false},
		},
		IsPublic:  true,
		IsActive:  true,
		CreatedAt: time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestCaseCreatedBroadcastsAndAlertsStaff(t *testing.T) {
	feed := &fakeFeed{}
	mailer := &fakeMailer{}
	recorder := &fakeRecorder{}
	users := &mocks.UserDatabase{}
	users.On("Find", mock.Anything, mock.Anything).Return([]models.User{
		{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
		{Name: "Mod", Email: "mod@example.com", Role: models.RoleModerator},
	}, nil)

	n := NewNotifier(feed, users, mailer, recorder, "https://missingalert.example/")
	c := sampleCase()
	n.CaseCreated(context.Background(), c)
	n.Wait()

	require.Len(t, feed.events, 1)
	assert.Equal(t, EventCaseCreated, feed.events[0].name)
	published := feed.events[0].data.(models.Case)
	assert.Empty(t, published.Notes)

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "admin@example.com", mailer.sent[0].ToAddress)
	assert.Equal(t, TemplateNewCaseAlert, mailer.sent[0].Template)
	assert.Contains(t, mailer.sent[0].HTML, "https://missingalert.example/cases/"+c.ID.Hex())
	assert.Equal(t, 2, recorder.results[TemplateNewCaseAlert])
	users.AssertExpectations(t)
}

func TestCaseCreatedStaffLookupFailureSendsNothing(t *testing.T) {
	mailer := &fakeMailer{}
	users := &mocks.UserDatabase{}
	users.On("Find", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	n := NewNotifier(&fakeFeed{}, users, mailer, &fakeRecorder{}, "")
	n.CaseCreated(context.Background(), sampleCase())
	n.Wait()

	assert.Empty(t, mailer.sent)
}

func TestStatusChangedToFoundEmailsOwnerAndContact(t *testing.T) {
	feed := &fakeFeed{}
	mailer := &fakeMailer{}
	recorder := &fakeRecorder{}
	c := sampleCase()
	c.Status = models.StatusFound
	users := &mocks.UserDatabase{}
	users.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{ID: c.ReportedBy, Name: "Jane", Email: "jane@example.com"}, nil)

	n := NewNotifier(feed, users, mailer, recorder, "")
	n.StatusChanged(context.Background(), c, lifecycle.StatusChange{
		CaseID: c.ID, CaseNumber: c.CaseNumber, OldStatus: models.StatusActive, NewStatus: models.StatusFound,
	})
	n.Wait()

	require.Len(t, feed.events, 1)
	assert.Equal(t, EventCaseStatusChanged, feed.events[0].name)

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "jane@example.com", mailer.sent[0].ToAddress)
	assert.Equal(t, "bob@example.com", mailer.sent[1].ToAddress)
	assert.Equal(t, "Good news: Ann Lee has been found", mailer.sent[1].Subject)
	assert.Equal(t, 2, recorder.results[TemplateCaseFound])
}

func TestStatusChangedSkipsContactMatchingOwner(t *testing.T) {
	mailer := &fakeMailer{}
	c := sampleCase()
	c.ContactInfo.PrimaryContact.Email = "JANE@example.com"
	users := &mocks.UserDatabase{}
	users.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{Name: "Jane", Email: "jane@example.com"}, nil)

	n := NewNotifier(&fakeFeed{}, users, mailer, &fakeRecorder{}, "")
	n.StatusChanged(context.Background(), c, lifecycle.StatusChange{OldStatus: models.StatusActive, NewStatus: models.StatusFound})
	n.Wait()

	assert.Len(t, mailer.sent, 1)
}

func TestStatusChangedWithoutFoundSendsNoEmail(t *testing.T) {
	mailer := &fakeMailer{}
	users := &mocks.UserDatabase{}
	n := NewNotifier(&fakeFeed{}, users, mailer, &fakeRecorder{}, "")

	n.StatusChanged(context.Background(), sampleCase(), lifecycle.StatusChange{OldStatus: models.StatusActive, NewStatus: models.StatusClosed})
	n.StatusChanged(context.Background(), sampleCase(), lifecycle.StatusChange{OldStatus: models.StatusFound, NewStatus: models.StatusFound})
	n.Wait()

	assert.Empty(t, mailer.sent)
	users.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
}

func TestHiddenCasesAreBroadcastWithoutContent(t *testing.T) {
	feed := &fakeFeed{}
	users := &mocks.UserDatabase{}
	users.On("Find", mock.Anything, mock.Anything).Return([]models.User{}, nil)
	n := NewNotifier(feed, users, &fakeMailer{}, &fakeRecorder{}, "")
	c := sampleCase()
	c.IsPublic = false
	c.IsActive = false
	c.Status = models.StatusDismissed

	n.StatusChanged(context.Background(), c, lifecycle.StatusChange{OldStatus: models.StatusActive, NewStatus: models.StatusDismissed})
	n.CaseDismissed(context.Background(), c, lifecycle.Dismissal{CaseID: c.ID})
	n.CaseCreated(context.Background(), c)
	n.Wait()

	require.Len(t, feed.events, 2)
	for _, e := range feed.events {
		assert.Equal(t, EventCaseHidden, e.name)
		assert.Equal(t, HiddenCase{CaseID: c.ID, CaseNumber: c.CaseNumber}, e.data)
	}
}

func TestWelcomeRecordsFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("sendgrid error: status 401")}
	recorder := &fakeRecorder{}
	n := NewNotifier(&fakeFeed{}, &mocks.UserDatabase{}, mailer, recorder, "")

	n.Welcome(models.User{Name: "Jane", Email: "jane@example.com"})
	n.Wait()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Welcome to Missing Alert", mailer.sent[0].Subject)
	assert.Equal(t, 1, recorder.failed)
}
