package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/integrations"
	"github.com/missingalert/missing-alert-api/models"
	"github.com/missingalert/missing-alert-api/notify"
	templates "github.com/missingalert/missing-alert-api/templates/html"
)

const (
	digestLock    = "daily_digest_job"
	digestLockTTL = 10 * time.Minute
	digestTimeout = 5 * time.Minute
)

// StatsSource reports the case figures summarised in the digest
type StatsSource interface {
	Stats(ctx context.Context) (*models.CaseStats, error)
}

// Scheduler runs the periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	schedule   string
	Stats      StatsSource
	UDB        databases.UserDatabase
	LockDB     databases.SchedulerLockDatabase
	Mailer     integrations.Mailer
	Recorder   notify.EmailRecorder
	BaseURL    string
	instanceID string
	now        func() time.Time
}

// NewScheduler creates a scheduler running the daily digest on the given cron
// schedule, interpreted in UTC
func NewScheduler(
	schedule string,
	stats StatsSource,
	uDB databases.UserDatabase,
	lockDB databases.SchedulerLockDatabase,
	mailer integrations.Mailer,
	recorder notify.EmailRecorder,
	baseURL string,
) *Scheduler {
	// DYNO identifies the replica on hosted platforms
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = "instance-" + uuid.NewString()
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		schedule:   schedule,
		Stats:      stats,
		UDB:        uDB,
		LockDB:     lockDB,
		Mailer:     mailer,
		Recorder:   recorder,
		BaseURL:    baseURL,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.dailyDigestJob); err != nil {
		return fmt.Errorf("register daily digest job %q: %w", s.schedule, err)
	}
	s.cron.Start()
	zap.S().Infow("scheduler started", "digestSchedule", s.schedule, "instance", s.instanceID)
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) dailyDigestJob() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()
	if _, err := s.RunDailyDigest(ctx); err != nil {
		zap.S().Errorw("daily digest failed", "error", err)
	}
}

// RunDailyDigest emails the case summary to every active administrator. It returns
// the number of emails sent, and does nothing when another instance holds the lease.
func (s *Scheduler) RunDailyDigest(ctx context.Context) (int, error) {
	acquired, err := s.LockDB.TryAcquireLock(ctx, digestLock, s.instanceID, digestLockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire digest lock: %w", err)
	}
	if !acquired {
		zap.S().Debug("daily digest already running on another instance, skipping")
		return 0, nil
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(ctx, digestLock, s.instanceID); err != nil {
			zap.S().Warnw("failed to release digest lock", "error", err)
		}
	}()

	zap.S().Infow("running daily digest job", "instance", s.instanceID)

	stats, err := s.Stats.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("load case stats: %w", err)
	}
	admins, err := s.UDB.Find(ctx, bson.M{"role": models.RoleAdmin, "isActive": true})
	if err != nil {
		return 0, fmt.Errorf("load admins: %w", err)
	}

	date := s.now().UTC().Format("2006-01-02")
	body := templates.RenderDailyDigest(templates.DigestData{
		Date:        date,
		NewCases:    stats.RecentCases,
		ActiveCases: stats.ActiveCases,
		FoundCases:  stats.FoundCases,
		TotalCases:  stats.TotalCases,
		SuccessRate: stats.SuccessRate,
		Link:        s.BaseURL,
	})
	text := fmt.Sprintf("Case summary for %s: %d new in the last 24h, %d active, %d found, %d total.",
		date, stats.RecentCases, stats.ActiveCases, stats.FoundCases, stats.TotalCases)

	sent := 0
	for _, admin := range admins {
		err := s.Mailer.Send(ctx, integrations.Email{
			Template:  notify.TemplateDailyDigest,
			ToName:    admin.Name,
			ToAddress: admin.Email,
			Subject:   "Missing Alert daily digest " + date,
			HTML:      body,
			Text:      text,
		})
		s.Recorder.EmailSent(notify.TemplateDailyDigest, err)
		if err != nil {
			zap.S().Errorw("failed to send daily digest", "to", admin.Email, "error", err)
			continue
		}
		sent++
	}
	zap.S().Infow("daily digest completed", "recipients", len(admins), "sent", sent)
	return sent, nil
}
