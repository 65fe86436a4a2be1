package testutil

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/libris/internal/config"
)

// ConfigState holds the state of the config package variables.
type ConfigState struct {
	DBFile          string
	BaseURL         string
	UserAgent       string
	RateLimit       float64
	Browser         bool
	BrowserTimeout  time.Duration
	CoversDir       string
	CoversMaxWidth  int
	MetricsTextfile string
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		DBFile:          config.DBFile,
		BaseURL:         config.BaseURL,
		UserAgent:       config.UserAgent,
		RateLimit:       config.RateLimit,
		Browser:         config.Browser,
		BrowserTimeout:  config.BrowserTimeout,
		CoversDir:       config.CoversDir,
		CoversMaxWidth:  config.CoversMaxWidth,
		MetricsTextfile: config.MetricsTextfile,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.DBFile = state.DBFile
	config.BaseURL = state.BaseURL
	config.UserAgent = state.UserAgent
	config.RateLimit = state.RateLimit
	config.Browser = state.Browser
	config.BrowserTimeout = state.BrowserTimeout
	config.CoversDir = state.CoversDir
	config.CoversMaxWidth = state.CoversMaxWidth
	config.MetricsTextfile = state.MetricsTextfile
}

// ResetConfig saves the current config state and schedules restoration
// when the test completes. It also resets viper.
func ResetConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()

	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetTestConfig points the library database and cover directory into env,
// aims the catalog at baseURL and disables rate limiting.
func SetTestConfig(t *testing.T, env *TestEnv, baseURL string) {
	t.Helper()

	ResetConfig(t)
	config.SetDefaults()
	config.InitConfig()

	config.DBFile = env.Path("libris.db")
	config.CoversDir = env.Path("covers")
	config.BaseURL = baseURL
	config.RateLimit = 0
}
