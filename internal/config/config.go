// Package config mirrors the viper configuration into typed globals.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyDBFile          = "library.dbfile"
	KeyBaseURL         = "catalog.baseurl"
	KeyUserAgent       = "catalog.useragent"
	KeyRateLimit       = "catalog.ratelimit"
	KeyBrowser         = "catalog.browser"
	KeyBrowserTimeout  = "catalog.browsertimeout"
	KeyCoversDir       = "covers.dir"
	KeyCoversMaxWidth  = "covers.maxwidth"
	KeyMetricsTextfile = "metrics.textfile"
)

// Global configuration variables
var (
	// DBFile is the library database path
	DBFile string
	// BaseURL is the catalog site root
	BaseURL string
	// UserAgent is sent on every catalog request
	UserAgent string
	// RateLimit is the catalog request budget in requests per second; 0 disables it
	RateLimit float64
	// Browser fetches catalog pages through headless Chrome
	Browser bool
	// BrowserTimeout bounds one headless page load
	BrowserTimeout time.Duration
	// CoversDir is where downloaded covers go
	CoversDir string
	// CoversMaxWidth caps cover width in pixels; 0 keeps the original size
	CoversMaxWidth int
	// MetricsTextfile, when set, receives a Prometheus text dump after each command
	MetricsTextfile string
)

// SetDefaults registers default values for every key.
func SetDefaults() {
	viper.SetDefault(KeyDBFile, "./libris.db")
	viper.SetDefault(KeyBaseURL, "https://www.goodreads.com")
	viper.SetDefault(KeyUserAgent, "")
	viper.SetDefault(KeyRateLimit, 1.0)
	viper.SetDefault(KeyBrowser, false)
	viper.SetDefault(KeyBrowserTimeout, "30s")
	viper.SetDefault(KeyCoversDir, "./covers")
	viper.SetDefault(KeyCoversMaxWidth, 600)
	viper.SetDefault(KeyMetricsTextfile, "")
}

// InitConfig initializes the global configuration
func InitConfig() {
	DBFile = viper.GetString(KeyDBFile)
	BaseURL = viper.GetString(KeyBaseURL)
	UserAgent = viper.GetString(KeyUserAgent)
	RateLimit = viper.GetFloat64(KeyRateLimit)
	Browser = viper.GetBool(KeyBrowser)
	BrowserTimeout = viper.GetDuration(KeyBrowserTimeout)
	CoversDir = viper.GetString(KeyCoversDir)
	CoversMaxWidth = viper.GetInt(KeyCoversMaxWidth)
	MetricsTextfile = viper.GetString(KeyMetricsTextfile)
}
