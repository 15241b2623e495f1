package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/spf13/viper"
)

// Backend names accepted for the record and document stores.
const (
	BackendSQLite    = "sqlite"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
)

// Config is the fully resolved application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Google   GoogleConfig   `mapstructure:"google"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Store    StoreConfig    `mapstructure:"store"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Query    QueryConfig    `mapstructure:"query"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GoogleConfig holds the project and service account shared by the Google clients.
type GoogleConfig struct {
	Project         string `mapstructure:"project"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// DatabaseConfig locates the local SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MongoConfig locates the expense record collection in MongoDB.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// StoreConfig picks the backends for records and documents.
type StoreConfig struct {
	Records   string        `mapstructure:"records"`
	Documents string        `mapstructure:"documents"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the oracle client.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Location    string        `mapstructure:"location"`
	BaseURL     string        `mapstructure:"base_url"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RateLimit   int           `mapstructure:"rate_limit"`
}

// PipelineConfig tunes the purchase probability pipeline.
type PipelineConfig struct {
	FanoutPolicy   string  `mapstructure:"fanout_policy"`
	DecisionMode   string  `mapstructure:"decision_mode"`
	PersonalWeight float64 `mapstructure:"personal_weight"`
	PublicWeight   float64 `mapstructure:"public_weight"`
	Threshold      float64 `mapstructure:"threshold"`
	MaxToolRounds  int     `mapstructure:"max_tool_rounds"`
	Collection     string  `mapstructure:"collection"`
}

// QueryConfig configures the voice/text query pipeline.
type QueryConfig struct {
	History      string `mapstructure:"history"`
	AudioInput   string `mapstructure:"audio_input"`
	AudioOutput  string `mapstructure:"audio_output"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// WalletConfig configures receipt pass issuance.
type WalletConfig struct {
	IssuerID    string `mapstructure:"issuer_id"`
	ClassSuffix string `mapstructure:"class_suffix"`
	Enabled     bool   `mapstructure:"enabled"`
}

// InvoiceConfig configures the invoice server.
type InvoiceConfig struct {
	Dir       string  `mapstructure:"dir"`
	Addr      string  `mapstructure:"addr"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", "$HOME/.local/share/tachyon/tachyon.db")

	v.SetDefault("mongo.database", "bill-mgmt")
	v.SetDefault("mongo.collection", "item_metadata")

	v.SetDefault("store.records", BackendSQLite)
	v.SetDefault("store.documents", BackendSQLite)
	v.SetDefault("store.timeout", 10*time.Second)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-pro")
	v.SetDefault("llm.location", "us-central1")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.rate_limit", 60)

	v.SetDefault("pipeline.fanout_policy", "best_effort")
	v.SetDefault("pipeline.decision_mode", "oracle")
	v.SetDefault("pipeline.personal_weight", 0.6)
	v.SetDefault("pipeline.public_weight", 0.4)
	v.SetDefault("pipeline.threshold", 50.0)
	v.SetDefault("pipeline.max_tool_rounds", 5)
	v.SetDefault("pipeline.collection", "item_metadata")

	v.SetDefault("query.history", "sample")
	v.SetDefault("query.audio_input", "input.wav")
	v.SetDefault("query.audio_output", "response.wav")
	v.SetDefault("query.history_limit", 50)

	v.SetDefault("wallet.class_suffix", "receipt_class_v1")

	v.SetDefault("invoice.dir", "$HOME/.local/share/tachyon/invoices")
	v.SetDefault("invoice.addr", ":8080")
	v.SetDefault("invoice.latitude", 37.7749)
	v.SetDefault("invoice.longitude", -122.4194)
}

// BindEnv wires TACHYON_* variables plus the legacy names the deployment
// scripts already export.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TACHYON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("mongo.uri", "TACHYON_MONGO_URI", "MONGO_URI")
	_ = v.BindEnv("google.project", "TACHYON_GOOGLE_PROJECT", "GCP_PROJECT_ID", "GCP_PROJECT")
	_ = v.BindEnv("google.credentials_file", "TACHYON_GOOGLE_CREDENTIALS_FILE", "GCP_T5_SVC_ACC_KEY", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("llm.api_key", "TACHYON_LLM_API_KEY", "GEMINI_API_KEY")
}

// Load resolves a Config from v, expanding paths and validating the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Invoice.Dir = ExpandPath(cfg.Invoice.Dir)
	cfg.Google.CredentialsFile = ExpandPath(cfg.Google.CredentialsFile)
	cfg.Query.AudioInput = ExpandPath(cfg.Query.AudioInput)
	cfg.Query.AudioOutput = ExpandPath(cfg.Query.AudioOutput)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that do not depend on which command runs.
func (c *Config) Validate() error {
	switch c.Store.Records {
	case BackendSQLite, BackendMongo:
	default:
		return fmt.Errorf("%w: store.records must be sqlite or mongo, got %q", common.ErrInvalidConfig, c.Store.Records)
	}

	switch c.Store.Documents {
	case BackendSQLite, BackendMongo, BackendFirestore:
	default:
		return fmt.Errorf("%w: store.documents must be sqlite, mongo or firestore, got %q", common.ErrInvalidConfig, c.Store.Documents)
	}

	switch c.Pipeline.FanoutPolicy {
	case "best_effort", "fail_fast":
	default:
		return fmt.Errorf("%w: pipeline.fanout_policy %q", common.ErrInvalidConfig, c.Pipeline.FanoutPolicy)
	}

	switch c.Pipeline.DecisionMode {
	case "oracle", "weighted":
	default:
		return fmt.Errorf("%w: pipeline.decision_mode %q", common.ErrInvalidConfig, c.Pipeline.DecisionMode)
	}

	if c.Pipeline.PersonalWeight < 0 || c.Pipeline.PublicWeight < 0 {
		return fmt.Errorf("%w: pipeline weights must not be negative", common.ErrInvalidConfig)
	}
	if c.Pipeline.PersonalWeight+c.Pipeline.PublicWeight == 0 {
		return fmt.Errorf("%w: at least one pipeline weight must be positive", common.ErrInvalidConfig)
	}
	if c.Pipeline.Threshold < 0 || c.Pipeline.Threshold > 100 {
		return fmt.Errorf("%w: pipeline.threshold must be within 0-100", common.ErrInvalidConfig)
	}

	switch c.Query.History {
	case "sample", "store":
	default:
		return fmt.Errorf("%w: query.history must be sample or store, got %q", common.ErrInvalidConfig, c.Query.History)
	}

	return nil
}

// RequireMongo reports the first missing MongoDB setting.
func (c *Config) RequireMongo() error {
	if c.Mongo.URI == "" {
		return common.MissingConfig("mongo.uri (or MONGO_URI)")
	}
	return nil
}

// RequireGoogleProject reports a missing Google Cloud project id.
func (c *Config) RequireGoogleProject() error {
	if c.Google.Project == "" {
		return common.MissingConfig("google.project (or GCP_PROJECT_ID)")
	}
	return nil
}

// RequireWallet reports the first missing wallet setting.
func (c *Config) RequireWallet() error {
	if c.Wallet.IssuerID == "" {
		return common.MissingConfig("wallet.issuer_id")
	}
	if c.Google.CredentialsFile == "" {
		return common.MissingConfig("google.credentials_file (or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return nil
}
