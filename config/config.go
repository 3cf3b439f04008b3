package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, assembled from environment
// variables (optionally seeded from a .env file).
type Config struct {
	Binance      BinanceConfig      `json:"binance"`
	Pump         PumpConfig         `json:"pump"`
	TopMovers    TopMoversConfig    `json:"top_movers"`
	Trading      TradingConfig      `json:"trading"`
	Indicators   IndicatorConfig    `json:"indicators"`
	Engine       EngineConfig       `json:"engine"`
	Database     DatabaseConfig     `json:"database"`
	Redis        RedisConfig        `json:"redis"`
	Server       ServerConfig       `json:"server"`
	Notification NotificationConfig `json:"notification"`
	Logging      LoggingConfig      `json:"logging"`
}

type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	// MockMode swaps the live exchange for the simulated gateway.
	MockMode       bool    `json:"mock_mode"`
	MinQuoteVolume float64 `json:"min_quote_volume"`
}

type PumpConfig struct {
	ThresholdPercent float64       `json:"threshold_percent"`
	TimeWindow       time.Duration `json:"time_window"`
	VolumeMultiplier float64       `json:"volume_multiplier"`
}

type TopMoversConfig struct {
	ThresholdPercent float64       `json:"threshold_percent"`
	TimeWindow       time.Duration `json:"time_window"`
	MinFinalScore    float64       `json:"min_final_score"`
	MaxVolatility    float64       `json:"max_volatility"`
	MinVolumeRatio   float64       `json:"min_volume_ratio"`
}

type TradingConfig struct {
	CapitalPercentage     float64 `json:"capital_percentage"`
	MaxConcurrentTrades   int     `json:"max_concurrent_trades"`
	MaxDailyLoss          float64 `json:"max_daily_loss"`
	StopLossPercent       float64 `json:"stop_loss_percent"`
	TakeProfitPercent     float64 `json:"take_profit_percent"`
	InitialBalance        float64 `json:"initial_balance"`
	DailyTargetPercentage float64 `json:"daily_target_percentage"`
}

type IndicatorConfig struct {
	EMAFast         int     `json:"ema_fast"`
	EMASlow         int     `json:"ema_slow"`
	RSIPeriod       int     `json:"rsi_period"`
	MACDFast        int     `json:"macd_fast"`
	MACDSlow        int     `json:"macd_slow"`
	MACDSignal      int     `json:"macd_signal"`
	BollingerPeriod int     `json:"bollinger_period"`
	BollingerStd    float64 `json:"bollinger_std"`
	ATRPeriod       int     `json:"atr_period"`
}

type EngineConfig struct {
	PumpScanInterval    time.Duration `json:"pump_scan_interval"`
	MoverScanInterval   time.Duration `json:"mover_scan_interval"`
	MonitorInterval     time.Duration `json:"monitor_interval"`
	MaxSymbols          int           `json:"max_symbols"`
	PumpScanConcurrency int           `json:"pump_scan_concurrency"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
	AllowedOrigins string `json:"allowed_origins"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; explicit environment
// variables always win.
func Load() (*Config, error) {
	// Missing .env is the normal case in containerized deploys.
	_ = godotenv.Load()

	cfg := &Config{
		Binance: BinanceConfig{
			APIKey:         getEnvOrDefault("BINANCE_API_KEY", ""),
			SecretKey:      getEnvOrDefault("BINANCE_SECRET_KEY", ""),
			BaseURL:        getEnvOrDefault("BINANCE_BASE_URL", "https://api.binance.com"),
			MockMode:       getEnvOrDefault("MOCK_MODE", "false") == "true",
			MinQuoteVolume: getEnvFloatOrDefault("MIN_QUOTE_VOLUME", 1000000),
		},
		Pump: PumpConfig{
			ThresholdPercent: getEnvFloatOrDefault("PUMP_THRESHOLD_PERCENT", 3.0),
			TimeWindow:       getEnvSecondsOrDefault("PUMP_TIME_WINDOW", 300*time.Second),
			VolumeMultiplier: getEnvFloatOrDefault("PUMP_VOLUME_MULTIPLIER", 2.0),
		},
		TopMovers: TopMoversConfig{
			ThresholdPercent: getEnvFloatOrDefault("TOP_MOVERS_THRESHOLD", 5.0),
			TimeWindow:       getEnvSecondsOrDefault("TOP_MOVERS_TIME_WINDOW", 1800*time.Second),
			MinFinalScore:    getEnvFloatOrDefault("TOP_MOVERS_MIN_FINAL_SCORE", 75),
			MaxVolatility:    getEnvFloatOrDefault("TOP_MOVERS_MAX_VOLATILITY", 0.3),
			MinVolumeRatio:   getEnvFloatOrDefault("TOP_MOVERS_MIN_VOLUME_RATIO", 1.5),
		},
		Trading: TradingConfig{
			CapitalPercentage:     getEnvFloatOrDefault("CAPITAL_PERCENTAGE", 0.1),
			MaxConcurrentTrades:   getEnvIntOrDefault("MAX_CONCURRENT_TRADES", 3),
			MaxDailyLoss:          getEnvFloatOrDefault("MAX_DAILY_LOSS", 0.05),
			StopLossPercent:       getEnvFloatOrDefault("STOP_LOSS_PERCENT", 2.0),
			TakeProfitPercent:     getEnvFloatOrDefault("TAKE_PROFIT_PERCENT", 6.0),
			InitialBalance:        getEnvFloatOrDefault("INITIAL_BALANCE", 1000),
			DailyTargetPercentage: getEnvFloatOrDefault("DAILY_TARGET_PERCENTAGE", 0.03),
		},
		Indicators: IndicatorConfig{
			EMAFast:         getEnvIntOrDefault("EMA_FAST", 9),
			EMASlow:         getEnvIntOrDefault("EMA_SLOW", 21),
			RSIPeriod:       getEnvIntOrDefault("RSI_PERIOD", 14),
			MACDFast:        getEnvIntOrDefault("MACD_FAST", 12),
			MACDSlow:        getEnvIntOrDefault("MACD_SLOW", 26),
			MACDSignal:      getEnvIntOrDefault("MACD_SIGNAL", 9),
			BollingerPeriod: getEnvIntOrDefault("BOLLINGER_PERIOD", 20),
			BollingerStd:    getEnvFloatOrDefault("BOLLINGER_STD", 2.0),
			ATRPeriod:       getEnvIntOrDefault("ATR_PERIOD", 14),
		},
		Engine: EngineConfig{
			PumpScanInterval:    getEnvSecondsOrDefault("PUMP_SCAN_INTERVAL", 30*time.Second),
			MoverScanInterval:   getEnvSecondsOrDefault("MOVER_SCAN_INTERVAL", 300*time.Second),
			MonitorInterval:     getEnvSecondsOrDefault("MONITOR_INTERVAL", 60*time.Second),
			MaxSymbols:          getEnvIntOrDefault("MAX_SYMBOLS", 100),
			PumpScanConcurrency: getEnvIntOrDefault("PUMP_SCAN_CONCURRENCY", 8),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "cryptopump"),
			Password: getEnvOrDefault("DB_PASSWORD", "cryptopump"),
			Database: getEnvOrDefault("DB_NAME", "cryptopump"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvOrDefault("REDIS_ENABLED", "true") == "true",
			Address:  getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnvIntOrDefault("WEB_PORT", 8080),
			ProductionMode: getEnvOrDefault("GIN_MODE", "release") == "release",
			AllowedOrigins: getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*"),
		},
		Notification: NotificationConfig{
			Enabled: getEnvOrDefault("NOTIFICATIONS_ENABLED", "false") == "true",
			Telegram: TelegramConfig{
				Enabled:  getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true",
				BotToken: getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
				ChatID:   getEnvOrDefault("TELEGRAM_CHAT_ID", ""),
			},
			Discord: DiscordConfig{
				Enabled:    getEnvOrDefault("DISCORD_ENABLED", "false") == "true",
				WebhookURL: getEnvOrDefault("DISCORD_WEBHOOK_URL", ""),
			},
		},
		Logging: LoggingConfig{
			Level:       getEnvOrDefault("LOG_LEVEL", "INFO"),
			Output:      getEnvOrDefault("LOG_OUTPUT", "stdout"),
			JSONFormat:  getEnvOrDefault("LOG_JSON", "true") == "true",
			IncludeFile: getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true",
		},
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvSecondsOrDefault parses a bare number of seconds.
func getEnvSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
