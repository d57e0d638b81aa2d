package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-site/internal/api/handlers"
	"auction-site/internal/config"
	"auction-site/internal/currency"
	"auction-site/internal/domain"
	"auction-site/internal/infrastructure/leader"
	"auction-site/internal/infrastructure/mysql"
	"auction-site/internal/infrastructure/redis"
	"auction-site/internal/infrastructure/websocket"
	"auction-site/internal/metrics"
	"auction-site/internal/services"
	"auction-site/pkg/logger"
	"auction-site/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	leaderRetryInterval = 5 * time.Second
	leaderPollInterval  = 10 * time.Second
	shutdownTimeout     = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the closing scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	base, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer logger.Sync(base)
	log := base.With("instance_id", cfg.Instance.ID)
	log.Info("Starting auction site", "config", cfg.GetConfigString())

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(startCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	db, err := utils.InitializeMysql(startCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()
	log.Info("Connected to MySQL")

	// Repositories
	itemRepo := mysql.NewMySQLItemRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	userRepo := mysql.NewMySQLUserRepository(db)
	notificationRepo := mysql.NewMySQLNotificationRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Redis based components
	eventPublisher := redis.NewEventPublisher(rdb, cfg.Redis.Channel)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, cfg.Redis.Channel, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)

	connManager := websocket.NewConnectionManager(log)

	clock := domain.SystemClock{}
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	wsNotifier := websocket.NewWebSocketNotifier(connManager, m)
	converter := currency.NewConverter(cfg.Currency.RatesFile, cfg.Currency.Reference)

	pricing := services.NewPricingService(bidRepo, log)
	notifications := services.NewNotificationService(notificationRepo, wsNotifier, clock, m, log)
	engine := services.NewClosingEngine(itemRepo, userRepo, pricing, notifications, eventPublisher, clock, m, log)

	scheduler := services.NewClosingScheduler(
		services.NewCronJobRunner(log),
		engine,
		itemRepo,
		schedulerRepo,
		leaderElection,
		clock,
		services.SchedulerConfig{
			CloseDelay:    cfg.Scheduler.CloseDelay,
			SweepSchedule: cfg.Scheduler.SweepSchedule,
			InstanceID:    cfg.Instance.ID,
		},
		m,
		log,
	)

	manager := services.NewAuctionManager(itemRepo, userRepo, scheduler, eventPublisher, clock,
		services.ManagerConfig{
			DefaultDuration: cfg.Auction.DefaultDuration,
			PageSize:        cfg.Auction.PageSize,
		}, log)
	bidService := services.NewBidService(itemRepo, bidRepo, userRepo, pricing, eventPublisher, clock, m, log)
	listener := services.NewEventListener(connManager, wsNotifier, log)

	e := newServer(cfg, handlers.Services{
		Items:         manager,
		Users:         manager,
		Bids:          bidService,
		Pricing:       pricing,
		Notifications: notifications,
		Currency:      converter,
	}, handlers.NewWebSocketHandlers(manager, bidService, connManager, clock, log), prometheus.DefaultGatherer, log)

	// Background services
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	restored, err := scheduler.Restore(startCtx)
	if err != nil {
		log.Error("Failed to restore closing jobs", "error", err)
	}
	log.Info("Closing jobs restored", "count", restored)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		if err := listener.Start(runCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	go campaignForLeadership(runCtx, leaderElection, cfg.Instance.ID, log)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info("Shutting down auction site", "signal", sig.String())
	case err := <-serverErr:
		log.Error("Server failed", "error", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	stop()
	scheduler.Stop()
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction site stopped")
	return nil
}

// campaignForLeadership keeps trying to take the leader lock. The election
// renews the lock itself once it is held.
func campaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string, log logger.Logger) {
	for {
		wait := leaderPollInterval
		became, err := election.BecomeLeader(ctx, instanceID)
		switch {
		case err != nil:
			log.Error("Failed to attempt leadership", "error", err)
			wait = leaderRetryInterval
		case became:
			log.Info("Became closing sweep leader")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
