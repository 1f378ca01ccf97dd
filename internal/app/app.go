package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/bassista/go_dbproxy/internal/cache"
	"github.com/bassista/go_dbproxy/internal/config"
	"github.com/bassista/go_dbproxy/internal/logger"
	"github.com/bassista/go_dbproxy/internal/proxy"
	"github.com/bassista/go_dbproxy/internal/repository"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config *config.Config
	Repo   repository.Repository
	Cache  cache.AppStore

	BaseCtx context.Context
	Cancel  context.CancelFunc

	persistDone <-chan struct{}
}

func New(cfg *config.Config, repo repository.Repository, store cache.AppStore) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("repo is nil")
	}
	if store == nil {
		return nil, errors.New("cache store is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:  cfg,
		Repo:    repo,
		Cache:   store,
		BaseCtx: ctx,
		Cancel:  cancel,
	}, nil
}

// Bootstrap builds the proxy, repository and store described by cfg and
// loads the initial document. A missing data file starts an empty store.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	p, err := proxy.New(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("init proxy: %w", err)
	}

	repo, err := repository.NewJSONRepository(cfg.Data.FilePath, p)
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}

	// the store must own the proxy before the first load so the initial
	// fetch notification reaches it
	store := cache.NewStore(repository.DataDocument{}, p)

	doc, err := repo.Load(ctx)
	switch {
	case err == nil:
		if err := store.Replace(*doc); err != nil {
			return nil, fmt.Errorf("populate store: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		logger.WithComponent("app").Warnf("data file %s not found, starting with an empty store", cfg.Data.FilePath)
	default:
		return nil, fmt.Errorf("load data file: %w", err)
	}

	return New(cfg, repo, store)
}

func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.persistDone != nil {
		<-a.persistDone
	}
}

// StartWatchers starts the file watcher (when enabled) and the periodic
// persistence scheduler. Both stop when Shutdown is called.
func (a *App) StartWatchers() error {
	if a.Config.Data.Watch {
		if err := a.Repo.StartWatcher(a.BaseCtx, a.Cache); err != nil {
			return fmt.Errorf("start data file watcher: %w", err)
		}
	}

	a.persistDone = cache.StartPersistenceScheduler(a.BaseCtx, a.Cache, a.Repo, a.Config.Data.PersistInterval)
	return nil
}

// Persist flushes the store through the repository immediately.
func (a *App) Persist(ctx context.Context) (bool, error) {
	return cache.Flush(ctx, a.Cache, a.Repo)
}
