// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the regwatch service.
package app

import (
	"context"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	archivegcs "github.com/huntwise/regwatch/internal/archive/gcs"
	archivelocal "github.com/huntwise/regwatch/internal/archive/local"
	archivemem "github.com/huntwise/regwatch/internal/archive/memory"
	sysclock "github.com/huntwise/regwatch/internal/clock/system"
	"github.com/huntwise/regwatch/internal/config"
	"github.com/huntwise/regwatch/internal/dispatch"
	collyfetcher "github.com/huntwise/regwatch/internal/fetcher/colly"
	"github.com/huntwise/regwatch/internal/fetcher/headless"
	"github.com/huntwise/regwatch/internal/hash/sha256"
	"github.com/huntwise/regwatch/internal/headless/detector"
	"github.com/huntwise/regwatch/internal/pipeline"
	pubmem "github.com/huntwise/regwatch/internal/publisher/memory"
	pspub "github.com/huntwise/regwatch/internal/publisher/pubsub"
	"github.com/huntwise/regwatch/internal/regcal"
	"github.com/huntwise/regwatch/internal/regdata"
	storemem "github.com/huntwise/regwatch/internal/store/memory"
	storepg "github.com/huntwise/regwatch/internal/store/postgres"
)

// App holds every shared service the commands need: stores, fetchers, the
// crawl runner, and the source calendar. Initialized once at startup.
type App struct {
	Cfg      config.Config
	Logger   *zap.Logger
	Clock    regdata.Clock
	LKG      regdata.LKGStore
	Alerts   regdata.AlertLog
	Backoffs regdata.BackoffStore
	Archive  regdata.BlobStore
	Pub      regdata.Publisher
	Provider *regcal.Provider
	Runner   *pipeline.Runner

	closers []func()
}

// New builds the container from configuration. It fails fast when any
// critical backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Cfg:    cfg,
		Logger: logger,
		Clock:  sysclock.New(),
	}

	if err := a.initStores(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initArchive(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.Provider = regcal.New(cfg.Sources, a.Clock)
	a.Runner = a.buildRunner(cfg)
	return a, nil
}

// Close releases every backend handle the container opened.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) initStores(ctx context.Context, cfg config.Config) error {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := storepg.Connect(ctx, storepg.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return fmt.Errorf("connect store: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if a.LKG, err = storepg.NewLKGStore(pool, ""); err != nil {
			return err
		}
		if a.Alerts, err = storepg.NewAlertStore(pool, ""); err != nil {
			return err
		}
		if a.Backoffs, err = storepg.NewBackoffStore(pool, ""); err != nil {
			return err
		}
		a.Logger.Info("using postgres stores")
	default:
		a.LKG = storemem.NewLKGStore()
		a.Alerts = storemem.NewAlertLog()
		a.Backoffs = storemem.NewBackoffStore()
		a.Logger.Info("using in-memory stores; snapshots are lost on restart")
	}
	return nil
}

func (a *App) initArchive(ctx context.Context, cfg config.Config) error {
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.Archive, err = archivegcs.New(client, archivegcs.Config{
			Bucket: cfg.Archive.GCSBucket,
			Prefix: cfg.Archive.Prefix,
		})
		if err != nil {
			return err
		}
		a.Logger.Info("archiving raw pages to gcs", zap.String("bucket", cfg.Archive.GCSBucket))
	case "local":
		store, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			return err
		}
		a.Archive = store
		a.Logger.Info("archiving raw pages locally", zap.String("dir", cfg.Archive.LocalDir))
	default:
		a.Archive = archivemem.New()
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context, cfg config.Config) error {
	if !cfg.PubSub.Enabled {
		a.Pub = pubmem.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.Pub = pspub.New(client.Publisher(cfg.PubSub.TopicName))
	a.Logger.Info("publishing notifications to pubsub", zap.String("topic", cfg.PubSub.TopicName))
	return nil
}

func (a *App) buildRunner(cfg config.Config) *pipeline.Runner {
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
	})

	var headlessFetcher regdata.Fetcher = headless.NewNoop()
	if cfg.Headless.Enabled {
		browser, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			a.Logger.Warn("headless fetcher unavailable, js-rendered sources will fail", zap.Error(err))
		} else {
			headlessFetcher = browser
			a.closers = append(a.closers, browser.Close)
		}
	}

	pipe := pipeline.New(a.LKG, a.Alerts, a.Archive, sha256.New(), a.Clock, a.Logger, pipeline.Options{
		Floors:           cfg.FloorTable(),
		AnomalyThreshold: cfg.Anomaly.Threshold,
		Residency:        cfg.Residency(),
	})

	return pipeline.NewRunner(
		dispatch.NewGuard(),
		a.Backoffs,
		static,
		headlessFetcher,
		detector.NewHeuristic(0),
		a.Provider,
		pipe,
		a.Clock,
		a.Logger,
	)
}
