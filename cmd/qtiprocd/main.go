package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/open-assess/qtiproc/internal/api/http"
	"github.com/open-assess/qtiproc/internal/auth"
	"github.com/open-assess/qtiproc/internal/config"
	"github.com/open-assess/qtiproc/internal/db"
	"github.com/open-assess/qtiproc/internal/session"
	"github.com/open-assess/qtiproc/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	svc := session.NewService(session.NewSQLStore(dbh))

	authSvc := auth.NewAuthService(cfg.JWTSecret, cfg.AdminUser, cfg.AdminPassHash)

	telemetry.Init()

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(telemetry.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	// Protected API (JWT → role in context)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Author-only: item management and results
		pr.With(auth.RequireRole(auth.RoleAuthor)).
			Post("/items", api.ItemCreateHandler(svc))
		pr.With(auth.RequireRole(auth.RoleAuthor)).
			Get("/items", api.ItemListHandler(svc))
		pr.With(auth.RequireRole(auth.RoleAuthor)).
			Get("/items/{id}/results.xlsx", api.ResultsExportHandler(svc))

		// Candidate flow
		pr.Get("/items/{id}", api.ItemGetHandler(svc))
		pr.Post("/items/{id}/sessions", api.SessionCreateHandler(svc))
		pr.Get("/sessions/{id}", api.SessionGetHandler(svc))
		pr.Post("/sessions/{id}/attempt", api.AttemptHandler(svc))
		pr.Post("/sessions/{id}/reset", api.SessionResetHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	if cfg.MetricsAddr != "" {
		go func() {
			mr := chi.NewRouter()
			mr.Handle("/metrics", promhttp.Handler())
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mr); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	log.Printf("qtiprocd listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
