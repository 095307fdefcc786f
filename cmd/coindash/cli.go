/*
Copyright 2026 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/gravitational/coindash/lib/cache"
	"github.com/gravitational/coindash/lib/logger"
	"github.com/gravitational/coindash/lib/rest"
)

// APIConfig is the [api] section
type APIConfig struct {
	// APIBaseURL is the API root every resource is relative to
	APIBaseURL string `help:"API base URL" name:"api-base-url" default:"https://api.coingecko.com/api/v3" env:"COINDASH_API_BASE_URL"`

	// APITimeout is the timeout of a single request
	APITimeout time.Duration `help:"API request timeout" name:"api-timeout" default:"30s" env:"COINDASH_API_TIMEOUT"`

	// APICAFile is a path to an extra CA bundle
	APICAFile string `help:"API TLS CA file" name:"api-ca-file" type:"existingfile" env:"COINDASH_API_CA_FILE"`

	// APIRateLimit is the number of requests allowed per APIRateInterval, 0 disables limiting
	APIRateLimit uint64 `help:"Requests allowed per rate interval, 0 disables limiting" name:"api-rate-limit" default:"0" env:"COINDASH_API_RATE_LIMIT"`

	// APIRateInterval is the rate limit window
	APIRateInterval time.Duration `help:"Rate limit interval" name:"api-rate-interval" default:"1m" env:"COINDASH_API_RATE_INTERVAL"`
}

// StorageConfig is the [storage] section
type StorageConfig struct {
	// StorageDir is where credentials and cache entries are kept
	StorageDir string `help:"Storage directory, defaults to the user config directory" name:"storage-dir" env:"COINDASH_STORAGE_DIR"`
}

// CacheConfig is the [cache] section
type CacheConfig struct {
	// CacheTTL is how long cached dashboard data is served without a refetch
	CacheTTL time.Duration `help:"Dashboard cache TTL" name:"cache-ttl" default:"5m" env:"COINDASH_CACHE_TTL"`
}

// LogConfig is the [log] section
type LogConfig struct {
	// LogSeverity is the minimum severity of logged messages
	LogSeverity string `help:"Log severity" name:"log-severity" default:"info" enum:"trace,debug,info,warn,warning,err,error" env:"COINDASH_LOG_SEVERITY"`

	// LogOutput is stderr, stdout, discard or a file path
	LogOutput string `help:"Log output" name:"log-output" default:"stderr" env:"COINDASH_LOG_OUTPUT"`
}

// CLI represents command structure
type CLI struct {
	// Config is the path to configuration file
	Config kong.ConfigFlag `help:"Path to TOML configuration file" optional:"true" type:"existingfile" env:"COINDASH_CONFIG"`

	// Debug is a debug logging mode flag
	Debug bool `help:"Debug logging" short:"d"`

	APIConfig
	StorageConfig
	CacheConfig
	LogConfig

	// Version is the version print command
	Version VersionCmd `cmd:"true" help:"Print version"`

	// Login is the login command
	Login LoginCmd `cmd:"true" help:"Log in and store the session"`

	// Logout is the logout command
	Logout LogoutCmd `cmd:"true" help:"Forget the stored session"`

	// Status is the session status command
	Status StatusCmd `cmd:"true" help:"Show the session status"`

	// Coins is the coins listing command
	Coins CoinsCmd `cmd:"true" help:"List known coins"`

	// Markets is the markets listing command
	Markets MarketsCmd `cmd:"true" help:"List coin markets page by page"`

	// Coin is the coin details command
	Coin CoinCmd `cmd:"true" help:"Show coin details"`

	// Chart is the price series command
	Chart ChartCmd `cmd:"true" help:"Show the price series of a coin"`

	// Price is the simple price command
	Price PriceCmd `cmd:"true" help:"Show current coin prices"`

	// Dashboard is the dashboard command
	Dashboard DashboardCmd `cmd:"true" help:"Show the dashboard of a coin"`

	// Cache is the cache maintenance command group
	Cache CacheCmd `cmd:"true" help:"Manage the dashboard cache"`

	// Stream is the server-sent events command
	Stream StreamCmd `cmd:"true" help:"Print server-sent events of a resource"`
}

// CheckAndSetDefaults validates global flags and sets defaults
func (c *CLI) CheckAndSetDefaults() error {
	if c.StorageDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return trace.Wrap(err, "can not detect storage directory, set --storage-dir")
		}
		c.StorageDir = filepath.Join(dir, appName)
	}
	if c.CacheTTL <= 0 {
		return trace.BadParameter("cache TTL must be positive")
	}
	if c.Debug {
		c.LogSeverity = "debug"
	}
	return nil
}

// RESTConfig returns the resource client configuration
func (c *CLI) RESTConfig() rest.Config {
	return rest.Config{
		BaseURL:   c.APIBaseURL,
		Timeout:   c.APITimeout,
		CAFile:    c.APICAFile,
		UserAgent: appName + "/" + Version,
	}
}

// RateLimitConfig returns the rate limiter configuration
func (c *CLI) RateLimitConfig() rest.RateLimitConfig {
	return rest.RateLimitConfig{
		Tokens:   c.APIRateLimit,
		Interval: c.APIRateInterval,
	}
}

// CacheConf returns the cache configuration
func (c *CLI) CacheConf() cache.Config {
	return cache.Config{
		Dir: filepath.Join(c.StorageDir, cacheDir),
		TTL: c.CacheTTL,
	}
}

// LoggerConfig returns the logger configuration
func (c *CLI) LoggerConfig() logger.Config {
	return logger.Config{
		Output:   c.LogOutput,
		Severity: c.LogSeverity,
	}
}

// CredentialsDir is where the credential pair is kept
func (c *CLI) CredentialsDir() string {
	return filepath.Join(c.StorageDir, credentialsDir)
}
