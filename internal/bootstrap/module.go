package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"datawatch/internal/bootstrap/config"
	"datawatch/internal/bootstrap/database"
	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/checks/storage"
	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
	"datawatch/internal/infrastructure/dispatch"
	sqliterepo "datawatch/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "datawatch/internal/infrastructure/persistence/sqlite/uow"
	"datawatch/internal/ports"
	"datawatch/internal/registry"
	"datawatch/internal/usecase/monitor"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideRegistry),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewResultRepository,
			fx.As(new(ports.ResultRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(monitor.NewRunner),
	fx.Provide(monitor.NewConfigResolver),
	fx.Provide(dispatch.NewSynchronousBackend),
	fx.Provide(provideDispatcher),
	fx.Provide(monitor.NewScheduler),
	fx.Provide(monitor.NewService),
	fx.Provide(AsCheck(storage.NewDatabaseSizeCheck)),
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

type registryParams struct {
	fx.In

	Ctx    context.Context
	Checks []check.Check `group:"checks"`
}

// provideRegistry builds the process-wide registry from the checks
// contributed to the "checks" value group. A registration conflict fails the
// whole application start.
func provideRegistry(p registryParams) (*registry.Registry, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.registry"))

	reg := registry.New()
	for _, c := range p.Checks {
		if err := reg.Register(ctx, c); err != nil {
			return nil, errs.Wrap(err, "register check")
		}
	}
	logging.Info(ctx, "checks registered", slog.Int("count", len(p.Checks)))
	return reg, nil
}

func provideDispatcher(
	lc fx.Lifecycle,
	ctx context.Context,
	cfg config.Config,
	sync *dispatch.SynchronousBackend,
) (ports.Dispatcher, error) {
	if cfg.Dispatch.Backend != config.BackendNATS {
		return sync, nil
	}

	conn, err := dispatch.Connect(ctx, cfg.Dispatch.NATS.URL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			conn.Close()
			return nil
		},
	})

	backend := dispatch.NewNATSBackend(
		conn,
		cfg.Dispatch.NATS.SubjectPrefix,
		cfg.Dispatch.NATS.DefaultQueue,
		sync,
	)
	// The fan-out of enqueue/refresh goes back through the queue so every
	// payload lands on its check's run queue.
	sync.SetDispatcher(backend)
	return backend, nil
}

// AsCheck wraps a check constructor so fx contributes it to the registry's
// value group.
func AsCheck(constructor any) any {
	return fx.Annotate(
		constructor,
		fx.As(new(check.Check)),
		fx.ResultTags(`group:"checks"`),
	)
}
