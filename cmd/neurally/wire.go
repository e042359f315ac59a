package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/neurally/internal/application"
	appanalysis "github.com/bryanwahyu/neurally/internal/application/analysis"
	"github.com/bryanwahyu/neurally/internal/broker"
	"github.com/bryanwahyu/neurally/internal/config"
	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
	"github.com/bryanwahyu/neurally/internal/domain/catalog"
	"github.com/bryanwahyu/neurally/internal/infra/db/memory"
	"github.com/bryanwahyu/neurally/internal/infra/db/migrations"
	mysqlp "github.com/bryanwahyu/neurally/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/neurally/internal/infra/db/postgres"
	"github.com/bryanwahyu/neurally/internal/infra/executor/collaborator"
	"github.com/bryanwahyu/neurally/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/neurally/internal/infra/storage"
	"github.com/bryanwahyu/neurally/internal/middleware"
	"github.com/bryanwahyu/neurally/internal/shell"
)

type components struct {
	cfg    *config.Config
	app    config.AppContext
	log    *logrus.Logger
	db     *sql.DB
	runner *collaborator.Runner
	svc    *appanalysis.Service
}

func (c *components) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.App.Packaged {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, string, error) {
	switch cfg.Database.Driver {
	case "":
		return nil, "", nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, "", fmt.Errorf("mysql connect: %w", err)
		}
		return db, "mysql", nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, "", fmt.Errorf("postgres connect: %w", err)
		}
		return db, "postgres", nil
	}
	return nil, "", fmt.Errorf("unknown database driver %q (use mysql, postgres or leave empty)", cfg.Database.Driver)
}

func build(ctx context.Context, configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	app, err := config.NewAppContext(cfg)
	if err != nil {
		return nil, err
	}

	c := &components{cfg: cfg, app: app, log: log}

	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.db = db

	var repo domain.Repository = memory.NewAnalysisRepository()
	if db != nil {
		if err := migrations.Run(ctx, db, dialect); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if dialect == "mysql" {
			repo = mysqlp.NewAnalysisRepository(db)
		} else {
			repo = pgp.NewAnalysisRepository(db)
		}
	}

	c.runner = collaborator.NewRunner(app, cfg, log)
	c.svc = &appanalysis.Service{
		Runner: c.runner,
		Repo:   repo,
		Namer:  catalog.Default(),
		Clock:  application.SystemClock{},
		Log:    log,
	}

	if cfg.Archive.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Archive.Endpoint,
			cfg.Archive.Region,
			cfg.Archive.BucketName,
			cfg.Archive.AccessKey,
			cfg.Archive.SecretKey,
			cfg.Archive.UseSSL,
		)
		if err != nil {
			// archival is optional, the app still works without it
			log.WithError(err).Warn("archive disabled: minio init failed")
		} else {
			c.svc.Artifacts = store
		}
	}

	log.WithFields(logrus.Fields{
		"base_path": app.BasePath,
		"packaged":  app.Packaged,
		"platform":  app.Platform,
		"database":  dialect,
		"archive":   c.svc.Artifacts != nil,
	}).Debug("components ready")
	return c, nil
}

func runWindow(ctx context.Context, configPath string) error {
	c, err := build(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	dialogs := &shell.Dialogs{}
	b := broker.New(c.cfg.OutputDir(c.app), dialogs, c.svc, c.log)

	checkers := map[string]middleware.HealthChecker{
		"collaborator": &middleware.CollaboratorHealthChecker{Runner: c.runner},
	}
	if c.db != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: c.db}
	}
	handler := httpserver.NewRouter(b, c.svc, httpserver.Options{
		Packaged: c.app.Packaged,
		Log:      c.log,
		Checkers: checkers,
	})

	if err := c.runner.Check(); err != nil {
		// window still opens; the UI shows the error on first analysis
		c.log.WithError(err).Warn("collaborator pre-flight failed")
	}

	app := shell.NewApp(b, dialogs, c.svc, c.log)
	return shell.Run(shell.Window{
		Title:  c.cfg.Window.Title,
		Width:  c.cfg.Window.Width,
		Height: c.cfg.Window.Height,
	}, app, handler)
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("database.driver is not set; history is kept in memory")
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.WithField("dialect", dialect).Info("migrations applied")
	return nil
}
