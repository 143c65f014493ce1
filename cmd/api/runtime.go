package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"buildea/api/internal/app"
	"buildea/api/internal/blob"
	"buildea/api/internal/config"
	"buildea/api/internal/email"
	"buildea/api/internal/export"
	"buildea/api/internal/logging"
	"buildea/api/internal/metrics"
	"buildea/api/internal/ratelimit"
	"buildea/api/internal/realtime"
	"buildea/api/internal/search"
	"buildea/api/internal/session"
	"buildea/api/internal/store"
)

// runtime owns every connection opened for one command.
type runtime struct {
	cfg     config.Config
	logger  *logging.Logger
	service *app.Service
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	_ = r.logger.Sync()
}

// buildRuntime loads configuration and connects the configured backends.
// migrate decides whether Postgres migrations run on connect.
func buildRuntime(ctx context.Context, path string, migrate bool) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	dataStore, err := openStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = dataStore.Close() })

	deps := app.Deps{
		Store:   dataStore,
		Metrics: metrics.New(),
		Limiter: ratelimit.New(cfg.RateLimitPerMinute),
		Hub:     realtime.NewHub(cfg.CORSOrigin, logger),
		Logger:  logger,
		Mailer: email.NewMailer(email.Settings{
			SMTP: email.Config{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.MailFrom,
				FromName: cfg.MailFromName,
			},
			SendgridAPIKey: cfg.SendgridAPIKey,
		}, logger),
	}
	rt.closers = append(rt.closers, deps.Hub.Close)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		deps.Sessions = redisStore
		rt.closers = append(rt.closers, func() { _ = redisStore.Close() })
		logger.Info(ctx, "refresh tokens stored in redis")
	}

	var engine search.Engine
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		engine = meili
		rt.closers = append(rt.closers, meili.Close)
	}
	deps.Search = search.NewService(engine, logger)

	var uploader export.Uploader
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		reports, err := blob.New(blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := reports.EnsureBucket(ctx); err != nil {
			logger.Warn(ctx, "report bucket unavailable, exports will be returned inline", zap.Error(err))
		} else {
			uploader = reports
		}
	}
	deps.Export = export.NewService(dataStore, uploader)

	rt.service = app.New(cfg, deps)
	return rt, nil
}

func openStore(ctx context.Context, cfg config.Config, migrate bool) (app.DataStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		migrationsDir := ""
		if migrate {
			migrationsDir = cfg.MigrationsDir
		}
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, migrationsDir)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return pg, nil
	case "mongo":
		// Indexes are ensured on every connect.
		mongoStore, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		return mongoStore, nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
