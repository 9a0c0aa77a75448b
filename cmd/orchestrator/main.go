// Command orchestrator runs the movie-acquisition automation core: it
// connects to Mongo and Redis, applies startup migrations, wires the
// repository layer into the search/decision/download/import pipeline,
// and serves a health/metrics endpoint until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/reelwatch/orchestrator/internal/acquisition"
	"github.com/reelwatch/orchestrator/internal/adapters/qbittorrent"
	"github.com/reelwatch/orchestrator/internal/adapters/tmdb"
	"github.com/reelwatch/orchestrator/internal/adapters/torznab"
	"github.com/reelwatch/orchestrator/internal/breaker"
	"github.com/reelwatch/orchestrator/internal/config"
	"github.com/reelwatch/orchestrator/internal/customformat"
	"github.com/reelwatch/orchestrator/internal/decision"
	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/download"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/httpapi"
	"github.com/reelwatch/orchestrator/internal/importpipeline"
	"github.com/reelwatch/orchestrator/internal/metrics"
	"github.com/reelwatch/orchestrator/internal/migrate"
	mongorepo "github.com/reelwatch/orchestrator/internal/repository/mongo"
	"github.com/reelwatch/orchestrator/internal/profile"
	"github.com/reelwatch/orchestrator/internal/queue"
	"github.com/reelwatch/orchestrator/internal/reputation"
	"github.com/reelwatch/orchestrator/internal/search"
)

// Exit codes: 0 on clean shutdown, 1 on configuration error, 2 on
// unrecoverable database error.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitDatabaseError = 2
)

const version = "0.1.0"

func main() {
	var (
		configPath     = flag.String("config", "", "path to a YAML config file")
		envFile        = flag.String("env-file", ".env", "path to an optional .env file")
		validateConfig = flag.Bool("validate-config", false, "load and validate configuration, then exit")
		migrateOnly    = flag.Bool("migrate-only", false, "apply startup migrations, then exit")
		showVersion    = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(exitOK)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfigError)
	}
	if *validateConfig {
		fmt.Println("configuration OK")
		os.Exit(exitOK)
	}

	log := newLogger(cfg.Logging)
	log.Info().Str("version", version).Msg("starting orchestrator")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Database.URL))
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("mongo connect failed")
		os.Exit(exitDatabaseError)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := mongoClient.Ping(pingCtx, readpref.Primary()); err != nil {
		cancel()
		log.Error().Err(err).Msg("mongo ping failed")
		os.Exit(exitDatabaseError)
	}
	cancel()

	runner := migrate.New(mongoClient.Database(cfg.Database.Name), migrate.Builtin(), log)
	if err := runner.Apply(ctx); err != nil {
		log.Error().Err(err).Msg("migrations failed")
		os.Exit(exitDatabaseError)
	}
	if *migrateOnly {
		log.Info().Msg("migrations applied")
		os.Exit(exitOK)
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})

	bus := eventbus.New()

	movies := mongorepo.NewMovieStore(mongoClient, cfg.Database.Name, migrate.CollectionMovies)
	queueRepo := mongorepo.NewQueueStore(mongoClient, cfg.Database.Name, migrate.CollectionQueue)
	downloads := mongorepo.NewDownloadStore(mongoClient, cfg.Database.Name, migrate.CollectionDownloads)
	history := mongorepo.NewHistoryStore(mongoClient, cfg.Database.Name, migrate.CollectionHistory)
	blocklist := mongorepo.NewBlocklistStore(mongoClient, cfg.Database.Name, migrate.CollectionBlocklist)
	releases := mongorepo.NewReleaseStore(mongoClient, cfg.Database.Name, migrate.CollectionReleases)
	formats := customformat.New(mongoClient, cfg.Database.Name, "custom_formats")
	profiles := profile.New(mongoClient, cfg.Database.Name, migrate.CollectionProfiles, formats)
	reputationStore := reputation.New(mongoClient, cfg.Database.Name, "reputation")

	tmdbBreaker := breaker.New("tmdb", breakerConfig(cfg), bus)
	downloadBreaker := breaker.New("download_client", breakerConfig(cfg), bus)

	metadataClient := tmdb.New(tmdb.Config{
		APIKey:   cfg.Metadata.TMDB.APIKey,
		BaseURL:  cfg.Metadata.TMDB.BaseURL,
		Redis:    redisClient,
		CacheTTL: cfg.Metadata.TMDB.CacheTTL(),
	})

	indexers := make(map[string]ports.IndexerAdapter, len(cfg.Indexers))
	indexerBreakers := make(map[string]*breaker.Breaker, len(cfg.Indexers))
	for _, idx := range cfg.Indexers {
		indexers[idx.Name] = torznab.New(torznab.Config{
			Name:     idx.Name,
			Endpoint: idx.Endpoint,
			APIKey:   idx.APIKey,
		})
		indexerBreakers[idx.Name] = breaker.New("indexer:"+idx.Name, breakerConfig(cfg), bus)
	}

	searchCoordinator := search.New(indexers, indexerBreakers, int64(cfg.Workers.Search), 15*time.Second)

	decisionEngine := decision.New(reputationStore, blocklist, decision.WithLogger(log.With().Str("component", "decision").Logger()))

	downloadClient, err := qbittorrent.New(cfg.Download.BaseURL, cfg.Download.Username, cfg.Download.Password, cfg.Download.Timeout())
	if err != nil {
		log.Error().Err(err).Msg("qbittorrent client init failed")
		os.Exit(exitConfigError)
	}

	concurrency := queue.Concurrency{
		domain.JobSearch:   cfg.Workers.Search,
		domain.JobEvaluate: cfg.Workers.Evaluate,
		domain.JobDownload: cfg.Workers.DownloadPoll,
		domain.JobImport:   cfg.Workers.Import,
		domain.JobRefresh:  cfg.Workers.Refresh,
	}
	proc := queue.New(queueRepo, concurrency, queue.WithLogger(log.With().Str("component", "queue").Logger()))

	supervisor := download.New(downloadClient, downloads, blocklist, bus, proc,
		download.WithCategory(cfg.Download.Category),
		download.WithBlocklistWindow(cfg.Blocklist.TTL()),
		download.WithBreaker(downloadBreaker),
		download.WithLogger(log.With().Str("component", "download").Logger()),
	)
	supervisor.RegisterHandlers()

	acq := acquisition.New(movies, profiles, releases, searchCoordinator, decisionEngine, supervisor, bus, proc,
		acquisition.WithRefreshCadence(cfg.Refresh.SearchInterval()),
		acquisition.WithMetadataRefresh(metadataClient, tmdbBreaker),
		acquisition.WithLogger(log.With().Str("component", "acquisition").Logger()),
	)
	acq.RegisterHandlers()

	pipeline := importpipeline.New(movies, downloads, history, bus, cfg.Import.LibraryRoot,
		importpipeline.WithTemplate(cfg.Naming.Movie),
		importpipeline.WithSampleMaxBytes(cfg.Import.SampleMaxBytes),
		importpipeline.WithLogger(log.With().Str("component", "import").Logger()),
		importpipeline.WithTxRunner(mongorepo.NewTxRunner(mongoClient)),
	)
	proc.RegisterHandler(domain.JobImport, pipeline.HandleJob)

	scheduler, err := queue.NewScheduler(proc, log.With().Str("component", "scheduler").Logger())
	if err != nil {
		log.Error().Err(err).Msg("scheduler init failed")
		os.Exit(exitConfigError)
	}

	// Refresh jobs self-chain (handleRefresh re-enqueues its own
	// successor), so the scheduler isn't needed to drive that cadence.
	// Its role here is a reconciliation safety net: periodically reseed
	// any monitored movie whose chain was dropped by a crash between a
	// job's completion and its re-enqueue.
	reconcile := func(reconcileCtx context.Context) {
		monitored, err := movies.ListMonitored(reconcileCtx)
		if err != nil {
			log.Warn().Err(err).Msg("reconciliation: failed to list monitored movies")
			return
		}
		for _, m := range monitored {
			if err := acq.ScheduleRefresh(reconcileCtx, m.ID); err != nil {
				log.Warn().Err(err).Str("movie_id", m.ID).Msg("reconciliation: failed to seed refresh job")
			}
		}
	}
	if err := scheduler.AddPeriodicTask("monitored_refresh_reconciliation", cfg.Refresh.ReconcileInterval(), reconcile); err != nil {
		log.Error().Err(err).Msg("scheduler task registration failed")
		os.Exit(exitConfigError)
	}

	httpServer := httpapi.New(mongoClient, reg, log.With().Str("component", "httpapi").Logger())

	errCh := make(chan error, 1)
	go func() { errCh <- proc.Run(ctx) }()
	scheduler.Start()
	reconcile(ctx)
	go func() {
		if err := httpServer.Start(cfg.Server.Address()); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("component failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := scheduler.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http api shutdown")
	}
}

func breakerConfig(cfg *config.Config) breaker.Config {
	c := breaker.DefaultConfig()
	c.FailureThreshold = cfg.Breaker.FailureThreshold
	c.Cooldown = cfg.Breaker.Cooldown()
	c.SuccessThreshold = cfg.Breaker.SuccessThreshold
	return c
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
