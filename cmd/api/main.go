package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tendersentry/bidwatch/internal/application"
	appanalysis "github.com/tendersentry/bidwatch/internal/application/analysis"
	"github.com/tendersentry/bidwatch/internal/config"
	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
	"github.com/tendersentry/bidwatch/internal/engine"
	openaiclient "github.com/tendersentry/bidwatch/internal/infra/ai/openai"
	mysqlp "github.com/tendersentry/bidwatch/internal/infra/db/mysql"
	postgresp "github.com/tendersentry/bidwatch/internal/infra/db/postgres"
	"github.com/tendersentry/bidwatch/internal/infra/httpserver"
	minioStore "github.com/tendersentry/bidwatch/internal/infra/storage"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Fatal("config load error")
	}

	ctx := context.Background()

	// connect DB sesuai driver
	var (
		db          *sql.DB
		documents   domain.DocumentRepository
		assessments domain.AssessmentRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.WithError(err).Fatal("postgres connect error")
		}
		documents = postgresp.NewDocumentRepository(db)
		assessments = postgresp.NewAssessmentRepository(db)
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.WithError(err).Fatal("mysql connect error")
		}
		documents = mysqlp.NewDocumentRepository(db)
		assessments = mysqlp.NewAssessmentRepository(db)
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}
	defer db.Close()

	// init minio (optional)
	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.WithError(err).Fatal("minio init error")
		}
		artifacts = store
	}

	// init narrator (optional)
	var narrator domain.Narrator
	if cfg.AI.APIKey != "" {
		narrator = openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	}

	svc := &appanalysis.Service{
		Documents:   documents,
		Assessments: assessments,
		Engine:      engine.New(cfg.Engine, log),
		Artifacts:   artifacts,
		Narrator:    narrator,
		Clock:       application.SystemClock{},
		Log:         log,
	}

	handler := httpserver.NewRouter(svc, log, cfg.Auth.Keys, db,
		cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
