package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"otmarket/internal/engine"
	"otmarket/internal/infra"
	"otmarket/internal/infra/storage"
	"otmarket/internal/service"
	"otmarket/internal/world"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Metrics    *infra.Metrics
	World      *world.World
	Dispatcher *engine.Dispatcher
	Tasks      *storage.Tasks
	Sweeper    *engine.Sweeper
	Market     *service.MarketService
	Statistics *service.Statistics

	dispatcherDone sync.WaitGroup
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component. Nothing runs yet.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping market engine...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Database.Path))

	// 4. World: item catalog + offline player store on the same connection
	catalog, err := world.LoadCatalog(cfg.Market.ItemsFile)
	if err != nil {
		return fmt.Errorf("load item catalog: %w", err)
	}
	sqlDB, err := store.SQLDB()
	if err != nil {
		return err
	}
	players, err := world.NewPlayerStore(sqlDB)
	if err != nil {
		return err
	}
	b.World = world.New(catalog, players, cfg.Market.InboxCapacity)
	slog.Info("✅ World ready", slog.Int("item_types", catalog.Len()))

	// 5. Engine
	b.Metrics = infra.NewMetrics()
	b.Dispatcher = engine.NewDispatcher(cfg.Engine.InboxSize)
	b.Tasks = storage.NewTasks(cfg.Engine.StorageQueueSize, b.Dispatcher.Post)

	repo := storage.NewOfferRepository(store, cfg.OfferDuration())
	archive := engine.NewArchive(repo)
	settlement := engine.NewSettlement(archive, b.World, b.Metrics)
	b.Sweeper = engine.NewSweeper(repo, b.Tasks, b.Dispatcher, settlement, b.Metrics,
		cfg.OfferDuration(), cfg.CheckExpiredInterval())

	// 6. Services
	b.Market = service.NewMarketService(repo, b.Tasks, archive, b.Metrics, uint32(cfg.Market.MaxOffersPerPlayer))
	b.Statistics = service.NewStatistics(repo, b.Metrics)

	return nil
}

// Start launches the dispatcher and the storage worker, loads statistics and
// runs the first sweep.
func (b *Bootstrap) Start(ctx context.Context) {
	b.dispatcherDone.Add(1)
	go func() {
		defer b.dispatcherDone.Done()
		b.Dispatcher.Run(ctx)
	}()
	b.Tasks.Start(ctx)

	b.Tasks.AddTask(b.Statistics.Refresh, nil)
	b.Sweeper.Start(ctx)

	if b.Config.CheckExpiredInterval() <= 0 {
		slog.Warn("Periodic expiry sweep disabled", slog.Int("check_expired_each_min", b.Config.Market.CheckExpiredEachMin))
	}
	slog.Info("✅ Market engine started",
		slog.Duration("offer_duration", b.Config.OfferDuration()),
		slog.Duration("sweep_interval", b.Config.CheckExpiredInterval()))
}

// Shutdown waits for the dispatcher to leave its loop (ctx passed to Start
// must be cancelled first), drains storage work and persists live players.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	b.dispatcherDone.Wait()
	b.Tasks.Stop()

	var firstErr error
	if err := b.World.SaveAll(ctx); err != nil {
		firstErr = err
	}
	if err := b.Storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	slog.Info("Market engine stopped", slog.Any("metrics", b.Metrics.Snapshot()))
	return firstErr
}
