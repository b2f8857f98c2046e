package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/api"
	"github.com/missingalert/missing-alert-api/api/scheduler"
	tokens "github.com/missingalert/missing-alert-api/auth"
	"github.com/missingalert/missing-alert-api/config"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/integrations"
	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/metrics"
	"github.com/missingalert/missing-alert-api/models"
	"github.com/missingalert/missing-alert-api/notify"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	DB        databases.DatabaseHelper
	Config    config.Config
	Hub       *notify.Hub
	Notifier  *notify.Notifier
	Scheduler *scheduler.Scheduler

	// Images and Mailer default to the configured cloudinary and SendGrid clients
	Images integrations.ImageHost
	Mailer integrations.Mailer

	client   databases.ClientHelper
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// New creates a new mux router and all the routes
func (a *App) New(ctx context.Context) *mux.Router {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if a.Images == nil {
		a.Images = a.imageHost()
	}
	if a.Mailer == nil {
		a.Mailer = a.mailer()
	}

	udb := databases.NewUserDatabase(a.DB)
	issuer := tokens.NewTokenIssuer(a.Config.JWTSecret, a.Config.JWTExpire)

	// setup go-guardian for middleware
	m := &api.MiddlewareDB{DB: udb, Tokens: issuer}
	m.SetupGoGuardian(ctx, a.Config.JWTExpire)

	a.Hub = notify.NewHub(a.metrics.FeedClients)
	a.Notifier = notify.NewNotifier(a.Hub, udb, a.Mailer, a.metrics, a.Config.BaseURL)

	manager := lifecycle.NewManager(
		databases.NewCaseStore(databases.NewCaseDatabase(a.DB)),
		lifecycle.WithLocation(a.Config.CaseNumberLocation),
		lifecycle.WithObserver(lifecycle.Observers{a.metrics, a.Notifier}),
	)
	a.Scheduler = scheduler.NewScheduler(
		a.Config.DigestSchedule,
		manager,
		udb,
		databases.NewSchedulerLockDatabase(a.DB),
		a.Mailer,
		a.metrics,
		a.Config.BaseURL,
	)

	c := Case{Cases: manager}
	auth := Auth{DB: udb, Tokens: issuer, Welcomer: a.Notifier, Revoker: m}
	u := User{DB: udb, Stats: manager, Revoker: m}
	up := Upload{
		Images:       a.Images,
		DB:           udb,
		MaxFileSize:  a.Config.MaxFileSize,
		AllowedTypes: a.Config.AllowedFileTypes,
	}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(a.metrics))
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	// healthchex
	r.HandleFunc("/api/health", a.healthCheckHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler(a.registry)).Methods("GET")
	r.Handle("/ws/cases", a.Hub).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()

	// literal case routes must be registered before /cases/{id}
	apiRouter.HandleFunc("/cases/stats/summary", c.CaseStatsHandler).Methods("GET")
	apiRouter.Handle("/cases/my", m.Middleware(http.HandlerFunc(c.MyCasesHandler))).Methods("GET")
	apiRouter.HandleFunc("/cases", c.CasesHandler).Methods("GET")
	apiRouter.Handle("/cases", m.Middleware(http.HandlerFunc(c.CreateCaseHandler))).Methods("POST")
	apiRouter.Handle("/cases/{id}/status", m.Middleware(http.HandlerFunc(c.UpdateCaseStatusHandler))).Methods("PUT")
	apiRouter.Handle("/cases/{id}/dismiss", m.Middleware(http.HandlerFunc(c.DismissCaseHandler))).Methods("DELETE")
	apiRouter.HandleFunc("/cases/{id}", c.CaseByIDHandler).Methods("GET")

	apiRouter.HandleFunc("/auth/register", auth.RegisterHandler).Methods("POST")
	apiRouter.HandleFunc("/auth/login", auth.LoginHandler).Methods("POST")
	apiRouter.Handle("/auth/me", m.Middleware(http.HandlerFunc(auth.MeHandler))).Methods("GET")
	apiRouter.Handle("/auth/logout", m.Middleware(http.HandlerFunc(auth.LogoutHandler))).Methods("POST")

	apiRouter.Handle("/users/profile", m.Middleware(http.HandlerFunc(u.ProfileHandler))).Methods("GET")
	apiRouter.Handle("/users/profile", m.Middleware(http.HandlerFunc(u.UpdateProfileHandler))).Methods("PUT")
	apiRouter.Handle("/users/stats", m.Middleware(http.HandlerFunc(u.UserStatsHandler))).Methods("GET")
	apiRouter.Handle("/users/account", m.Middleware(http.HandlerFunc(u.DeleteAccountHandler))).Methods("DELETE")

	apiRouter.Handle("/upload/images", m.Middleware(http.HandlerFunc(up.UploadImagesHandler))).Methods("POST")
	apiRouter.Handle("/upload/images/{cloudinaryId:.+}", m.Middleware(http.HandlerFunc(up.DeleteImageHandler))).Methods("DELETE")
	apiRouter.Handle("/upload/avatar", m.Middleware(http.HandlerFunc(up.UploadAvatarHandler))).Methods("POST")
	apiRouter.Handle("/upload/stats", m.Middleware(api.RequireRole(http.HandlerFunc(up.UploadStatsHandler), models.RoleAdmin))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}
	a.client = client

	a.DB = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	zap.S().Info("missing-alert-api has connected to the database")

	ictx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := databases.EnsureIndexes(ictx, a.DB); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	// initialize api router
	a.initializeRoutes(ctx)
	return a.Scheduler.Start()
}

// Shutdown stops background work and disconnects from the database
func (a *App) Shutdown(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}

func (a *App) initializeRoutes(ctx context.Context) {
	a.Router = a.New(ctx)
}

func (a *App) imageHost() integrations.ImageHost {
	if !a.Config.ImageHostConfigured() {
		zap.S().Warn("cloudinary is not configured, image uploads are disabled")
		return integrations.DisabledImageHost{}
	}
	host, err := integrations.NewCloudinary(a.Config.CloudinaryCloudName, a.Config.CloudinaryAPIKey, a.Config.CloudinaryAPISecret)
	if err != nil {
		zap.S().Errorw("failed to configure cloudinary, image uploads are disabled", "error", err)
		return integrations.DisabledImageHost{}
	}
	return host
}

func (a *App) mailer() integrations.Mailer {
	if a.Config.SendGridAPIKey == "" {
		zap.S().Warn("SENDGRID_API_KEY is not set, emails will not be delivered")
		return integrations.NopMailer{}
	}
	return integrations.NewSendGrid(a.Config.SendGridAPIKey, a.Config.EmailFromName, a.Config.EmailFromAddress)
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{
		Success:     true,
		Message:     "Missing Alert System API is running",
		Timestamp:   models.Now(time.Now()),
		Environment: a.Config.Env,
		Version:     a.Config.Version,
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	zap.S().Debugw("route not found", "method", r.Method, "path", r.URL.Path)
	config.ErrorStatus("API endpoint not found", http.StatusNotFound, w, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
}
