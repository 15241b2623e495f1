package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, BackendSQLite, cfg.Store.Records)
	assert.Equal(t, 10*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "bill-mgmt", cfg.Mongo.Database)
	assert.Equal(t, "item_metadata", cfg.Mongo.Collection)
	assert.Equal(t, "best_effort", cfg.Pipeline.FanoutPolicy)
	assert.Equal(t, "oracle", cfg.Pipeline.DecisionMode)
	assert.InDelta(t, 37.7749, cfg.Invoice.Latitude, 1e-9)
	assert.InDelta(t, -122.4194, cfg.Invoice.Longitude, 1e-9)
	assert.True(t, filepath.IsAbs(cfg.Database.Path))
	assert.NotContains(t, cfg.Database.Path, "$HOME")
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("GCP_PROJECT_ID", "tachyon-5")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "tachyon-5", cfg.Google.Project)
	assert.NoError(t, cfg.RequireMongo())
	assert.NoError(t, cfg.RequireGoogleProject())
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TACHYON_PIPELINE_DECISION_MODE", "weighted")
	t.Setenv("TACHYON_STORE_TIMEOUT", "3s")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "weighted", cfg.Pipeline.DecisionMode)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "mongo records", mutate: func(c *Config) { c.Store.Records = BackendMongo }},
		{name: "firestore records", mutate: func(c *Config) { c.Store.Records = BackendFirestore }, wantErr: true},
		{name: "firestore documents", mutate: func(c *Config) { c.Store.Documents = BackendFirestore }},
		{name: "unknown documents", mutate: func(c *Config) { c.Store.Documents = "redis" }, wantErr: true},
		{name: "fail fast", mutate: func(c *Config) { c.Pipeline.FanoutPolicy = "fail_fast" }},
		{name: "unknown policy", mutate: func(c *Config) { c.Pipeline.FanoutPolicy = "maybe" }, wantErr: true},
		{name: "unknown decision mode", mutate: func(c *Config) { c.Pipeline.DecisionMode = "vote" }, wantErr: true},
		{name: "negative weight", mutate: func(c *Config) { c.Pipeline.PublicWeight = -1 }, wantErr: true},
		{name: "zero weights", mutate: func(c *Config) {
			c.Pipeline.PublicWeight = 0
			c.Pipeline.PersonalWeight = 0
		}, wantErr: true},
		{name: "threshold too high", mutate: func(c *Config) { c.Pipeline.Threshold = 101 }, wantErr: true},
		{name: "store history", mutate: func(c *Config) { c.Query.History = "store" }},
		{name: "unknown history", mutate: func(c *Config) { c.Query.History = "random" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			var cfg Config
			require.NoError(t, v.Unmarshal(&cfg))

			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequireWallet(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.RequireWallet(), common.ErrMissingConfig)

	cfg.Wallet.IssuerID = "3388000000022"
	assert.ErrorIs(t, cfg.RequireWallet(), common.ErrMissingConfig)

	cfg.Google.CredentialsFile = "/tmp/key.json"
	assert.NoError(t, cfg.RequireWallet())
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TACHYON_DATA", "/srv/tachyon")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "db.sqlite"), ExpandPath("~/db.sqlite"))
	assert.Equal(t, "/srv/tachyon/invoices", ExpandPath("$TACHYON_DATA/invoices"))
}
