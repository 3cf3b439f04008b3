package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cryptopump-bot/config"
	"cryptopump-bot/internal/api"
	"cryptopump-bot/internal/database"
	"cryptopump-bot/internal/engine"
	"cryptopump-bot/internal/events"
	"cryptopump-bot/internal/indicators"
	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/market"
	"cryptopump-bot/internal/ml"
	"cryptopump-bot/internal/notification"
	"cryptopump-bot/internal/risk"
	"cryptopump-bot/internal/strategy"
	"cryptopump-bot/internal/trading"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.Logging.Level,
		Output:      cfg.Logging.Output,
		JSONFormat:  cfg.Logging.JSONFormat,
		IncludeFile: cfg.Logging.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// The trading pipeline logs through zerolog; everything else uses the
	// component logger above.
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	eventBus := events.NewEventBus()

	var notifyManager *notification.Manager
	if cfg.Notification.Enabled {
		notifyManager = notification.NewManager()
		if cfg.Notification.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.Notification.Telegram.BotToken,
				ChatID:   cfg.Notification.Telegram.ChatID,
				Enabled:  true,
			}))
			logger.Info("Telegram notifications enabled")
		}
		if cfg.Notification.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.Notification.Discord.WebhookURL,
				Enabled:    true,
			}))
			logger.Info("Discord notifications enabled")
		}
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	repo := database.NewRepository(db)

	var balanceStore trading.BalanceStore
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		balanceStore = database.NewRedisBalanceStore(client)
		logger.Info("Redis balance snapshots enabled", "addr", cfg.Redis.Address)
	}

	var gateway market.Gateway
	if cfg.Binance.MockMode {
		gateway = market.NewMockGateway(cfg.Trading.InitialBalance)
		logger.Warn("Running against the simulated gateway, no real orders will be placed")
	} else {
		if cfg.Binance.APIKey == "" || cfg.Binance.SecretKey == "" {
			log.Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY are required unless MOCK_MODE=true")
		}
		gateway = market.NewBinanceClient(cfg.Binance.APIKey, cfg.Binance.SecretKey, cfg.Binance.BaseURL, cfg.Binance.MinQuoteVolume)
	}

	tracker := trading.NewBalanceTracker(ctx, trading.TrackerConfig{
		InitialBalance:        cfg.Trading.InitialBalance,
		DailyTargetPercentage: cfg.Trading.DailyTargetPercentage,
		MaxDailyLoss:          cfg.Trading.MaxDailyLoss,
		MaxConcurrentTrades:   cfg.Trading.MaxConcurrentTrades,
	}, balanceStore, repo, zlog)

	gate := risk.NewGate(risk.GateConfig{
		MaxConcurrentTrades: cfg.Trading.MaxConcurrentTrades,
	}, repo, tracker)

	sizer := risk.NewPositionSizer(risk.SizerConfig{
		CapitalPercentage: cfg.Trading.CapitalPercentage,
	})

	analyzer := indicators.NewAnalyzer(indicators.Config{
		EMAFast:         cfg.Indicators.EMAFast,
		EMASlow:         cfg.Indicators.EMASlow,
		RSIPeriod:       cfg.Indicators.RSIPeriod,
		MACDFast:        cfg.Indicators.MACDFast,
		MACDSlow:        cfg.Indicators.MACDSlow,
		MACDSignal:      cfg.Indicators.MACDSignal,
		BollingerPeriod: cfg.Indicators.BollingerPeriod,
		BollingerStd:    cfg.Indicators.BollingerStd,
		ATRPeriod:       cfg.Indicators.ATRPeriod,
	})
	predictor := ml.NewPredictor(ml.DefaultConfig())

	detector := strategy.NewPumpDetector(strategy.PumpConfig{
		ThresholdPercent: cfg.Pump.ThresholdPercent,
		TimeWindow:       cfg.Pump.TimeWindow,
		VolumeMultiplier: cfg.Pump.VolumeMultiplier,
	}, repo)

	scorer := strategy.NewTopMoverScorer(strategy.MoverConfig{
		ThresholdPercent: cfg.TopMovers.ThresholdPercent,
		TimeWindow:       cfg.TopMovers.TimeWindow,
		MinFinalScore:    cfg.TopMovers.MinFinalScore,
		MaxVolatility:    cfg.TopMovers.MaxVolatility,
		MinVolumeRatio:   cfg.TopMovers.MinVolumeRatio,
	}, analyzer, predictor, gateway, repo)

	var tradeNotifier trading.TradeNotifier
	if notifyManager != nil {
		tradeNotifier = notifyManager
	}
	lifecycle := trading.NewLifecycle(repo, gateway, tradeNotifier, tracker, zlog)

	eng := engine.New(engine.Config{
		PumpScanInterval:    cfg.Engine.PumpScanInterval,
		MoverScanInterval:   cfg.Engine.MoverScanInterval,
		MonitorInterval:     cfg.Engine.MonitorInterval,
		MaxSymbols:          cfg.Engine.MaxSymbols,
		PumpScanConcurrency: cfg.Engine.PumpScanConcurrency,
		StopLossPercent:     cfg.Trading.StopLossPercent,
		TakeProfitPercent:   cfg.Trading.TakeProfitPercent,
	}, gateway, detector, scorer, gate, sizer, lifecycle, tracker, notifyManager, eventBus)
	eng.SetSummaryStore(repo)

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.Server.Port,
		ProductionMode: cfg.Server.ProductionMode,
		AllowOrigins:   strings.Split(cfg.Server.AllowedOrigins, ","),
	}, repo, tracker, eventBus)

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("API server stopped", "error", err)
			stop()
		}
	}()

	eng.Start()
	eventBus.Publish(events.Event{
		Type: events.EventBotStarted,
		Data: map[string]interface{}{"mock_mode": cfg.Binance.MockMode},
	})
	logger.Info("Trading engine started",
		"mock_mode", cfg.Binance.MockMode,
		"pump_interval", cfg.Engine.PumpScanInterval.String(),
		"mover_interval", cfg.Engine.MoverScanInterval.String())

	<-ctx.Done()
	logger.Info("Shutting down")

	eng.Stop()
	eventBus.Publish(events.Event{
		Type: events.EventBotStopped,
		Data: map[string]interface{}{},
	})
	logger.Info("Shutdown complete")
}
