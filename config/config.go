package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Environment string        `yaml:"environment"` // paper | live
	Bankroll    float64       `yaml:"initial_bankroll"`
	Model       string        `yaml:"model"`
	Tier1       TierConfig    `yaml:"tier1"`
	Tier2       TierConfig    `yaml:"tier2"`
	Risk        RiskConfig    `yaml:"risk"`
	API         APIConfig     `yaml:"api"`
	Storage     StorageConfig `yaml:"storage"`
	Sources     SourcesConfig `yaml:"sources"`
	Health      HealthConfig  `yaml:"health"`
	Log         LogConfig     `yaml:"log"`

	// Secretos: solo desde el entorno, nunca desde YAML.
	LLMAPIKey    string `yaml:"-"`
	SocialAPIKey string `yaml:"-"`
}

// TierConfig controla el comportamiento de un tier de escaneo.
type TierConfig struct {
	ScanIntervalMinutes int     `yaml:"scan_interval_minutes"`
	MinEdge             float64 `yaml:"min_edge"`
	DailyCap            int     `yaml:"daily_cap"`
	FeeRate             float64 `yaml:"fee_rate"`
	MinHoursToRes       float64 `yaml:"min_hours_to_resolution"`
	MaxHoursToRes       float64 `yaml:"max_hours_to_resolution"`
	MinLiquidity        float64 `yaml:"min_liquidity"`
}

// RiskConfig son los límites de monk mode y sizing.
type RiskConfig struct {
	DailyLossLimitPct      float64 `yaml:"daily_loss_limit_pct"`
	WeeklyLossLimitPct     float64 `yaml:"weekly_loss_limit_pct"`
	ConsecutiveAdverse     int     `yaml:"consecutive_adverse"`
	CooldownHours          float64 `yaml:"cooldown_hours"`
	DailyAPIBudgetUSD      float64 `yaml:"daily_api_budget_usd"`
	MaxPositionPct         float64 `yaml:"max_position_pct"`
	MaxTotalExposurePct    float64 `yaml:"max_total_exposure_pct"`
	MaxClusterExposurePct  float64 `yaml:"max_cluster_exposure_pct"`
	KellyFraction          float64 `yaml:"kelly_fraction"`
	DailySummaryHourUTC    int     `yaml:"daily_summary_hour_utc"`
}

// APIConfig contiene los base URLs de las APIs externas.
type APIConfig struct {
	MarketBase string `yaml:"market_base"`
	BooksBase  string `yaml:"books_base"`
	SocialBase string `yaml:"social_base"`
	LLMBase    string `yaml:"llm_base"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// SourcesConfig apunta a los registros YAML de fuentes y feeds.
type SourcesConfig struct {
	KnownSourcesPath string `yaml:"known_sources"`
	RSSFeedsPath     string `yaml:"rss_feeds"`
}

// HealthConfig controla el endpoint de salud.
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las variables de entorno sobreescriben el YAML; los API keys
// obligatorios (LLM_API_KEY, SOCIAL_API_KEY) solo se leen del entorno.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Tier1Interval devuelve el intervalo de escaneo tier-1 como Duration.
func (c *Config) Tier1Interval() time.Duration {
	return time.Duration(c.Tier1.ScanIntervalMinutes) * time.Minute
}

// Tier2Interval devuelve el intervalo de escaneo tier-2 como Duration.
func (c *Config) Tier2Interval() time.Duration {
	return time.Duration(c.Tier2.ScanIntervalMinutes) * time.Minute
}

// SafeSnapshot devuelve la configuración como mapa plano con los secretos
// redactados. Es lo que se persiste en cada ExperimentRun.
func (c *Config) SafeSnapshot() map[string]string {
	snap := map[string]string{
		"environment":              c.Environment,
		"initial_bankroll":         strconv.FormatFloat(c.Bankroll, 'f', -1, 64),
		"model":                    c.Model,
		"tier1_interval_minutes":   strconv.Itoa(c.Tier1.ScanIntervalMinutes),
		"tier1_min_edge":           strconv.FormatFloat(c.Tier1.MinEdge, 'f', -1, 64),
		"tier1_daily_cap":          strconv.Itoa(c.Tier1.DailyCap),
		"tier2_daily_cap":          strconv.Itoa(c.Tier2.DailyCap),
		"kelly_fraction":           strconv.FormatFloat(c.Risk.KellyFraction, 'f', -1, 64),
		"max_position_pct":         strconv.FormatFloat(c.Risk.MaxPositionPct, 'f', -1, 64),
		"max_cluster_exposure_pct": strconv.FormatFloat(c.Risk.MaxClusterExposurePct, 'f', -1, 64),
		"daily_api_budget_usd":     strconv.FormatFloat(c.Risk.DailyAPIBudgetUSD, 'f', -1, 64),
	}
	if c.LLMAPIKey != "" {
		snap["llm_api_key"] = "***"
	}
	if c.SocialAPIKey != "" {
		snap["social_api_key"] = "***"
	}
	return snap
}

func applyEnvOverrides(cfg *Config) {
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.SocialAPIKey = os.Getenv("SOCIAL_API_KEY")

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("INITIAL_BANKROLL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Bankroll = f
		}
	}
	if v := os.Getenv("DAILY_API_BUDGET_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Risk.DailyAPIBudgetUSD = f
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "paper"
	}
	if cfg.Bankroll <= 0 {
		cfg.Bankroll = 2000
	}
	if cfg.Model == "" {
		cfg.Model = "grok-4-1-fast-reasoning"
	}

	if cfg.Tier1.ScanIntervalMinutes <= 0 {
		cfg.Tier1.ScanIntervalMinutes = 15
	}
	if cfg.Tier1.MinEdge <= 0 {
		cfg.Tier1.MinEdge = 0.04
	}
	if cfg.Tier1.DailyCap <= 0 {
		cfg.Tier1.DailyCap = 5
	}
	if cfg.Tier1.FeeRate <= 0 {
		cfg.Tier1.FeeRate = 0.02
	}
	if cfg.Tier1.MinHoursToRes <= 0 {
		cfg.Tier1.MinHoursToRes = 0.25
	}
	if cfg.Tier1.MaxHoursToRes <= 0 {
		cfg.Tier1.MaxHoursToRes = 168
	}
	if cfg.Tier1.MinLiquidity <= 0 {
		cfg.Tier1.MinLiquidity = 5000
	}

	if cfg.Tier2.ScanIntervalMinutes <= 0 {
		cfg.Tier2.ScanIntervalMinutes = 3
	}
	if cfg.Tier2.MinEdge <= 0 {
		cfg.Tier2.MinEdge = 0.05
	}
	if cfg.Tier2.DailyCap <= 0 {
		cfg.Tier2.DailyCap = 3
	}
	if cfg.Tier2.FeeRate <= 0 {
		cfg.Tier2.FeeRate = 0.04
	}

	if cfg.Risk.DailyLossLimitPct <= 0 {
		cfg.Risk.DailyLossLimitPct = 0.05
	}
	if cfg.Risk.WeeklyLossLimitPct <= 0 {
		cfg.Risk.WeeklyLossLimitPct = 0.10
	}
	if cfg.Risk.ConsecutiveAdverse <= 0 {
		cfg.Risk.ConsecutiveAdverse = 3
	}
	if cfg.Risk.CooldownHours <= 0 {
		cfg.Risk.CooldownHours = 2.0
	}
	if cfg.Risk.DailyAPIBudgetUSD <= 0 {
		cfg.Risk.DailyAPIBudgetUSD = 8.0
	}
	if cfg.Risk.MaxPositionPct <= 0 {
		cfg.Risk.MaxPositionPct = 0.08
	}
	if cfg.Risk.MaxTotalExposurePct <= 0 {
		cfg.Risk.MaxTotalExposurePct = 0.30
	}
	if cfg.Risk.MaxClusterExposurePct <= 0 {
		cfg.Risk.MaxClusterExposurePct = 0.12
	}
	if cfg.Risk.KellyFraction <= 0 {
		cfg.Risk.KellyFraction = 0.25
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "predictor.db"
	}
	if cfg.Sources.KnownSourcesPath == "" {
		cfg.Sources.KnownSourcesPath = "config/known_sources.yaml"
	}
	if cfg.Sources.RSSFeedsPath == "" {
		cfg.Sources.RSSFeedsPath = "config/rss_feeds.yaml"
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Environment != "paper" && c.Environment != "live" {
		return fmt.Errorf("environment must be paper or live, got %q", c.Environment)
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.SocialAPIKey == "" {
		return fmt.Errorf("SOCIAL_API_KEY is required")
	}
	return nil
}
