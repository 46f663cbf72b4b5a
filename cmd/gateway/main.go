package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/innovorex/learnify-engine/internal/api/http"
	auth "github.com/innovorex/learnify-engine/internal/auth/middleware"
	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/config"
	"github.com/innovorex/learnify-engine/internal/db"
	"github.com/innovorex/learnify-engine/internal/events"
	"github.com/innovorex/learnify-engine/internal/exam"
	"github.com/innovorex/learnify-engine/internal/progression"
	"github.com/innovorex/learnify-engine/internal/rbac"
	"github.com/innovorex/learnify-engine/internal/scoring"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	eventLog := events.NewLog(dbh, cfg.SiteID)
	attemptStore := exam.NewSQLStore(dbh)
	progStore := progression.NewSQLStore(dbh)

	// --- Collaborator (content + scoring + certificates) ---
	var qsvc backend.QuestionService
	var issuer backend.CertificateIssuer
	if cfg.Mode == config.ModeOnline {
		remote := backend.NewRemoteService(cfg.PlatformBaseURL, cfg.PlatformToken, cfg.PlatformTimeout)
		qsvc, issuer = remote, remote
	} else {
		local := backend.NewLocalService(dbh, scoring.Score)
		qsvc, issuer = local, local
	}

	// --- Progression + sessions ---
	trigger := progression.NewCertificateTrigger(progStore, issuer, eventLog)
	prog := progression.NewService(progStore, trigger,
		progression.WithEvents(eventLog),
		progression.WithMaxAttempts(cfg.MaxExamAttempts))

	registry := exam.NewRegistry(qsvc, attemptStore,
		exam.WithEvents(eventLog),
		exam.WithModuleResultSink(func(ctx context.Context, enrollmentID, moduleID string, res backend.ScoreResult) {
			out, err := prog.OnModuleExamResult(ctx, enrollmentID, moduleID, res)
			if err != nil {
				log.Printf("module result enrollment=%s module=%s: %v", enrollmentID, moduleID, err)
				return
			}
			log.Printf("module result enrollment=%s %s", enrollmentID, out)
		}))

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, dbh, cfg.TokenTTL)
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPass); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))
	if cfg.EnableSignup {
		r.Post("/auth/signup", auth.SignupHandler(authSvc))
	}

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Authoring (offline content management)
		pr.With(rbac.Require("assessment:create")).
			Post("/assessments", api.CreateAssessmentHandler(dbh))
		pr.With(rbac.Require("course:create")).
			Post("/courses", api.CreateCourseHandler(dbh, progStore))

		// Timed exam sessions
		pr.With(rbac.Require("session:start")).
			Post("/assessments/{assessmentID}/sessions", api.StartAssessmentHandler(registry, qsvc, cfg.DefaultExamDuration))
		pr.With(rbac.Require("session:start")).
			Post("/enrollments/{enrollmentID}/modules/{moduleID}/exam-session", api.StartModuleExamHandler(registry, qsvc, prog, cfg.DefaultExamDuration))
		pr.With(rbac.Require("session:view")).
			Get("/sessions/{sessionID}", api.GetSessionHandler(registry))
		pr.With(rbac.Require("session:answer")).
			Put("/sessions/{sessionID}/answers/{questionID}", api.AnswerHandler(registry))
		pr.With(rbac.Require("session:submit")).
			Post("/sessions/{sessionID}/submit", api.SubmitHandler(registry))
		pr.With(rbac.Require("session:view")).
			Get("/sessions/{sessionID}/review", api.ReviewHandler(registry))
		pr.With(rbac.Require("session:view")).
			Delete("/sessions/{sessionID}", api.TeardownHandler(registry))

		// Course progression
		pr.With(rbac.Require("enrollment:create")).
			Post("/courses/{courseID}/enrollments", api.EnrollHandler(prog))
		pr.With(rbac.Require("progress:view")).
			Get("/enrollments/{enrollmentID}/progress", api.ProgressHandler(prog))
		pr.With(rbac.Require("progress:view")).
			Get("/enrollments/{enrollmentID}/modules/{moduleID}", api.ModuleContentHandler(prog))
		pr.With(rbac.Require("topic:complete")).
			Post("/enrollments/{enrollmentID}/topics/{topicID}/complete", api.CompleteTopicHandler(prog))
		pr.With(rbac.Require("certificate:view")).
			Get("/enrollments/{enrollmentID}/certificate", api.CertificateHandler(prog))

		// Attempt history
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(attemptStore))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/review", api.AttemptReviewHandler(attemptStore))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
