package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/repository"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// app holds everything a command needs once startup has run.
type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	sync    func() error
	tracer  *sdktrace.TracerProvider
	startup *startup.Startup
	repos   *repositoriesDependency
}

func newApp(ctx context.Context, configDir string) (*app, error) {
	bootstrap, _, err := logging.NewLogger("info", false, "fern")
	if err != nil {
		return nil, err
	}
	cfg, _, err := config.Load(configDir, bootstrap)
	if err != nil {
		return nil, err
	}

	logger, sync, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs, cfg.AppName)
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.NewProvider(ctx, cfg.Tracing())
	if err != nil {
		return nil, err
	}

	dbDep := database.NewDependency(cfg.Database(), logger)
	var redisDep *redis.Dependency
	if cfg.ChainLockMode == config.ChainLockRedis || cfg.RoleCacheEnabled {
		redisDep = redis.NewDependency(cfg.Redis(), logger)
	}
	repos := &repositoriesDependency{cfg: cfg, logger: logger, db: dbDep, redis: redisDep}

	s := startup.New(logger, cfg.StartupMaxAttempts)
	s.AddDependency(dbDep)
	if redisDep != nil {
		s.AddDependency(redisDep)
	}
	s.AddDependency(repos)

	a := &app{cfg: cfg, logger: logger, sync: sync, tracer: tracer, startup: s, repos: repos}
	if err := s.Start(ctx); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) close(ctx context.Context) error {
	err := a.startup.Stop(ctx)
	if a.tracer != nil {
		if shutdownErr := a.tracer.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}
	_ = a.sync()
	return err
}

// repositoriesDependency builds the repositories once their stores are up.
type repositoriesDependency struct {
	cfg    *config.Config
	logger ectologger.Logger
	db     *database.Dependency
	redis  *redis.Dependency

	roles     *repositories.RoleRepository
	users     *repositories.UserRepository
	templates *repositories.UserTemplateRepository
	groups    *repositories.GroupRepository
	roleCache *redis.RoleCache
}

func (d *repositoriesDependency) GetName() string {
	return "repositories"
}

func (d *repositoriesDependency) DependsOn() []string {
	deps := []string{d.db.GetName()}
	if d.redis != nil {
		deps = append(deps, d.redis.GetName())
	}
	return deps
}

func (d *repositoriesDependency) Start(_ context.Context) error {
	db := d.db.DB()

	locker, err := d.chainLocker()
	if err != nil {
		return err
	}
	var opts []repository.HistoricalOption
	if locker != nil {
		opts = append(opts, repository.WithChainLocker(locker))
	}

	if d.roles, err = repositories.NewRoleRepository(db, d.logger); err != nil {
		return err
	}
	if d.users, err = repositories.NewUserRepository(db, d.roles, d.logger); err != nil {
		return err
	}
	if d.templates, err = repositories.NewUserTemplateRepository(db, d.roles, d.logger); err != nil {
		return err
	}
	if d.groups, err = repositories.NewGroupRepository(db, d.logger, opts...); err != nil {
		return err
	}
	if d.cfg.RoleCacheEnabled && d.redis != nil {
		d.roleCache = redis.NewRoleCache(d.redis.Client(), d.cfg.RoleCacheTTL)
	}
	return nil
}

func (d *repositoriesDependency) Stop(_ context.Context) error {
	return nil
}

func (d *repositoriesDependency) chainLocker() (repository.ChainLocker, error) {
	switch d.cfg.ChainLockMode {
	case config.ChainLockNone:
		return nil, nil
	case config.ChainLockAdvisory:
		return database.NewAdvisoryLocker(d.logger), nil
	case config.ChainLockRedis:
		if d.redis == nil || d.redis.Client() == nil {
			return nil, fmt.Errorf("chain lock mode %q needs a redis connection", config.ChainLockRedis)
		}
		return redis.NewChainLocker(d.redis.Client(), d.cfg.AppName+":chain:",
			redis.WithLockTTL(d.cfg.ChainLockTTL),
			redis.WithLockTimeout(d.cfg.ChainLockTimeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown chain lock mode %q", d.cfg.ChainLockMode)
	}
}
