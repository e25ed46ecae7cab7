package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/config"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/database"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/blob"
	cacheinfra "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/cache"
	sqliterepo "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/uow"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
	"github.com/KIaudius/issues-insights-tracker/internal/realtime"
	"github.com/KIaudius/issues-insights-tracker/internal/scheduler"
	"github.com/KIaudius/issues-insights-tracker/internal/server"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/authn"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/issues"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/stats"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/users"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(sqliterepo.NewUserRepository, fx.As(new(ports.UserRepository))),
		fx.Annotate(sqliterepo.NewIssueRepository, fx.As(new(ports.IssueRepository))),
		fx.Annotate(sqliterepo.NewHistoryRepository, fx.As(new(ports.HistoryRepository))),
		fx.Annotate(sqliterepo.NewCommentRepository, fx.As(new(ports.CommentRepository))),
		fx.Annotate(sqliterepo.NewAttachmentRepository, fx.As(new(ports.AttachmentRepository))),
		fx.Annotate(sqliterepo.NewStatsRepository, fx.As(new(ports.StatsRepository))),
	),
	fx.Provide(
		fx.Annotate(sqliteuow.NewUnitOfWork, fx.As(new(ports.UnitOfWork))),
	),
	fx.Provide(provideCache),
	fx.Provide(provideBlobStore),
	fx.Provide(provideTokenManager),
	fx.Provide(provideHub),
	fx.Provide(provideIssueService),
	fx.Provide(users.NewService),
	fx.Provide(provideAuthnService),
	fx.Provide(stats.NewService),
	fx.Provide(provideServer),
)

// ServerModule adds the pieces only the serve command needs: the HTTP
// listener and the stats scheduler, both tied to the fx lifecycle.
var ServerModule = fx.Options(
	Module,
	fx.Invoke(runServer),
	fx.Invoke(runScheduler),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideCache() ports.Cache {
	return cacheinfra.NewLRUCache(time.Minute)
}

func provideBlobStore(cfg config.Config) (ports.BlobStore, error) {
	return blob.NewLocalStore(cfg.Storage.UploadDir)
}

func provideTokenManager(cfg config.Config) (*auth.TokenManager, error) {
	return auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideIssueService(
	issuesRepo ports.IssueRepository,
	historyRepo ports.HistoryRepository,
	commentsRepo ports.CommentRepository,
	attachmentsRepo ports.AttachmentRepository,
	usersRepo ports.UserRepository,
	uow ports.UnitOfWork,
	blobs ports.BlobStore,
	hub *realtime.Hub,
) *issues.Service {
	return issues.NewService(issuesRepo, historyRepo, commentsRepo, attachmentsRepo, usersRepo, uow, blobs, hub)
}

func provideAuthnService(usersRepo ports.UserRepository, tokens *auth.TokenManager, cfg config.Config) *authn.Service {
	return authn.NewService(usersRepo, tokens, cfg.Auth.OAuth)
}

func provideServer(
	cfg config.Config,
	tokens *auth.TokenManager,
	hub *realtime.Hub,
	authnSvc *authn.Service,
	issuesSvc *issues.Service,
	usersSvc *users.Service,
	statsSvc *stats.Service,
) *server.Server {
	return server.New(cfg, tokens, hub, authnSvc, issuesSvc, usersSvc, statsSvc)
}

func runServer(lc fx.Lifecycle, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Stop,
	})
}

func runScheduler(lc fx.Lifecycle, cfg config.Config, statsSvc *stats.Service) {
	sched := scheduler.New(statsSvc, cfg.Stats.Interval)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				sched.Run(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
