package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/integrations"
	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/models"
	templates "github.com/missingalert/missing-alert-api/templates/html"
)

const sendTimeout = 30 * time.Second

// Email template names, also used as metric labels
const (
	TemplateWelcome      = "welcome"
	TemplateNewCaseAlert = "new_case_alert"
	TemplateCaseFound    = "case_found"
	TemplateDailyDigest  = "daily_digest"
)

// Broadcaster publishes feed events
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// EmailRecorder counts email attempts
type EmailRecorder interface {
	EmailSent(template string, err error)
}

// HiddenCase is the payload of a case_hidden event. It deliberately carries no case
// content.
type HiddenCase struct {
	CaseID     primitive.ObjectID `json:"caseId"`
	CaseNumber string             `json:"caseNumber"`
}

// StatusChanged is the payload of a case_status_changed event
type StatusChanged struct {
	lifecycle.StatusChange
	Case models.Case `json:"case"`
}

// Notifier turns lifecycle events into feed broadcasts and emails. Emails go out on
// their own goroutines and never fail the request that triggered them.
type Notifier struct {
	feed     Broadcaster
	users    databases.UserDatabase
	mailer   integrations.Mailer
	recorder EmailRecorder
	baseURL  string
	wg       sync.WaitGroup
}

// NewNotifier returns a Notifier. baseURL is the public address of the web client
// and is used to build links in emails.
func NewNotifier(feed Broadcaster, users databases.UserDatabase, mailer integrations.Mailer, recorder EmailRecorder, baseURL string) *Notifier {
	return &Notifier{
		feed:     feed,
		users:    users,
		mailer:   mailer,
		recorder: recorder,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Wait blocks until every email in flight has been handed to the mailer
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// CaseCreated implements lifecycle.Observer
func (n *Notifier) CaseCreated(_ context.Context, c models.Case) {
	if c.IsPublic && c.IsActive {
		n.feed.Broadcast(EventCaseCreated, c.PublicView())
	}
	n.async(func(ctx context.Context) {
		staff, err := n.users.Find(ctx, bson.M{
			"role":     bson.M{"$in": []models.Role{models.RoleAdmin, models.RoleModerator}},
			"isActive": true,
		})
		if err != nil {
			zap.S().Errorw("failed to load staff for new case alert", "caseNumber", c.CaseNumber, "error", err)
			return
		}
		data := n.alertData(c)
		body := templates.RenderNewCaseAlert(data)
		for _, u := range staff {
			n.send(ctx, integrations.Email{
				Template:  TemplateNewCaseAlert,
				ToName:    u.Name,
				ToAddress: u.Email,
				Subject:   "New missing person case: " + c.CaseNumber,
				HTML:      body,
				Text:      "A new case " + c.CaseNumber + " has been reported for " + c.MissingPerson.Name + ". " + data.Link,
			})
		}
	})
}

// StatusChanged implements lifecycle.Observer
func (n *Notifier) StatusChanged(_ context.Context, c models.Case, change lifecycle.StatusChange) {
	if lifecycle.Hides(change.NewStatus) || !c.IsPublic {
		n.feed.Broadcast(EventCaseHidden, HiddenCase{CaseID: c.ID, CaseNumber: c.CaseNumber})
	} else {
		n.feed.Broadcast(EventCaseStatusChanged, StatusChanged{StatusChange: change, Case: c.PublicView()})
	}

	if change.NewStatus != models.StatusFound || change.OldStatus == models.StatusFound {
		return
	}
	n.async(func(ctx context.Context) {
		n.sendCaseFound(ctx, c)
	})
}

// CaseDismissed implements lifecycle.Observer
func (n *Notifier) CaseDismissed(_ context.Context, c models.Case, _ lifecycle.Dismissal) {
	n.feed.Broadcast(EventCaseHidden, HiddenCase{CaseID: c.ID, CaseNumber: c.CaseNumber})
}

// CaseNumberFallback implements lifecycle.Observer
func (n *Notifier) CaseNumberFallback(_ context.Context, err error) {
	zap.S().Warnw("case number sequence unavailable, used fallback number", "error", err)
}

// Welcome emails a newly registered user
func (n *Notifier) Welcome(u models.User) {
	n.async(func(ctx context.Context) {
		n.send(ctx, integrations.Email{
			Template:  TemplateWelcome,
			ToName:    u.Name,
			ToAddress: u.Email,
			Subject:   "Welcome to Missing Alert",
			HTML:      templates.RenderWelcomeEmail(u.Name, n.baseURL),
			Text:      "Welcome to Missing Alert, " + u.Name + ". Your account is ready.",
		})
	})
}

func (n *Notifier) sendCaseFound(ctx context.Context, c models.Case) {
	data := n.alertData(c)
	subject := "Good news: " + c.MissingPerson.Name + " has been found"
	text := c.MissingPerson.Name + " (case " + c.CaseNumber + ") has been marked as found. " + data.Link

	ownerEmail := ""
	owner, err := n.users.FindOne(ctx, bson.M{"_id": c.ReportedBy})
	if err != nil {
		zap.S().Warnw("failed to load case owner for found notification", "caseNumber", c.CaseNumber, "error", err)
	} else if owner.Email != "" {
		ownerEmail = owner.Email
		n.send(ctx, integrations.Email{
			Template:  TemplateCaseFound,
			ToName:    owner.Name,
			ToAddress: owner.Email,
			Subject:   subject,
			HTML:      templates.RenderCaseFound(owner.Name, data),
			Text:      text,
		})
	}

	contact := c.ContactInfo.PrimaryContact
	if contact.Email == "" || strings.EqualFold(contact.Email, ownerEmail) {
		return
	}
	n.send(ctx, integrations.Email{
		Template:  TemplateCaseFound,
		ToName:    contact.Name,
		ToAddress: contact.Email,
		Subject:   subject,
		HTML:      templates.RenderCaseFound(contact.Name, data),
		Text:      text,
	})
}

func (n *Notifier) alertData(c models.Case) templates.CaseAlertData {
	return templates.CaseAlertData{
		CaseNumber:  c.CaseNumber,
		PersonName:  c.MissingPerson.Name,
		Age:         c.MissingPerson.Age,
		City:        c.LastKnownLocation.City,
		State:       c.LastKnownLocation.State,
		Priority:    string(c.Priority),
		Description: c.Description,
		Link:        n.caseLink(c.ID),
	}
}

func (n *Notifier) caseLink(id primitive.ObjectID) string {
	if n.baseURL == "" {
		return ""
	}
	return n.baseURL + "/cases/" + id.Hex()
}

func (n *Notifier) send(ctx context.Context, e integrations.Email) {
	err := n.mailer.Send(ctx, e)
	n.recorder.EmailSent(e.Template, err)
	if err != nil {
		zap.S().Errorw("failed to send notification email", "template", e.Template, "error", err)
	}
}

// async runs fn detached from the request so a cancelled request does not abort the
// email.
func (n *Notifier) async(fn func(ctx context.Context)) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		fn(ctx)
	}()
}
