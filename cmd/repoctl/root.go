package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leafsii/repokit/internal/config"
	"github.com/leafsii/repokit/internal/db"
	"github.com/leafsii/repokit/internal/db/entities"
	"github.com/leafsii/repokit/internal/log"
	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/repository"
)

func newRootCmd() *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:          "repoctl",
		Short:        "Inspect and exercise method-name repositories",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(newParseCmd(), newSchemaCmd(), newDemoCmd(), newServeCmd())
	return root
}

// session is an opened backend with a repository context over it.
type session struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	db     *db.Database
	rc     *repository.Context
}

func openSession(ctx context.Context, observer repository.Observer) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	dsn := ""
	switch cfg.Storage.Backend {
	case db.BackendPostgres:
		dsn = cfg.Storage.PostgresDSN
	case db.BackendSQLite:
		dsn = cfg.Storage.SQLitePath
	case db.BackendRedis:
		dsn = cfg.Storage.RedisURL
	}
	database, err := db.Open(ctx, db.Config{
		Type:      cfg.Storage.Backend,
		DSN:       dsn,
		KeyPrefix: cfg.Storage.KeyPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}

	rcCfg := repository.DefaultConfig()
	rcCfg.Logger = logger
	rcCfg.NamingStrategy = metadata.NamingByName(cfg.Repository.Naming)
	rcCfg.StrictRegistration = cfg.Repository.StrictRegistration
	rcCfg.Observer = observer
	rc := repository.NewContext(rcCfg, database.Accessors())
	entities.Register(rc)

	metas, err := entities.Metadata(rc)
	if err == nil {
		err = database.Migrate(ctx, metas...)
	}
	if err == nil {
		err = rc.Initialize()
	}
	if err != nil {
		rc.Close()
		database.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, db: database, rc: rc}, nil
}

func (s *session) Close() {
	s.rc.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Warnw("close storage", "error", err)
	}
	_ = s.logger.Sync()
}
