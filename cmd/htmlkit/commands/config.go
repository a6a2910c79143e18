package commands

import (
	"fmt"
	"log/slog"
	"time"

	"htmlkit/lib/browser"
	"htmlkit/lib/configutil"
	"htmlkit/lib/pagecache"
)

type ClientConfig struct {
	// nil keeps the default, which is to run scripts
	JavaScript       *bool  `json:"javascript"`
	Timeout          string `json:"timeout"`
	UserAgent        string `json:"user_agent"`
	BypassCloudflare bool   `json:"bypass_cloudflare"`
	ChromeControlUrl string `json:"chrome_control_url"`
	DumpDir          string `json:"dump_dir"`
}

type CacheConfig struct {
	Dir string `json:"dir"`
	Ttl string `json:"ttl"`
}

type Config struct {
	Client ClientConfig `json:"client"`
	Cache  CacheConfig  `json:"cache"`
}

func defaultConfig() Config {
	return Config{
		Client: ClientConfig{
			Timeout: "60s",
			DumpDir: ".dev/resty",
		},
		Cache: CacheConfig{
			Ttl: pagecache.DefaultTTL.String(),
		},
	}
}

// LoadConfig reads path (and its .local override) over the defaults, a
// missing file leaves the defaults as they are.
func LoadConfig(path string) (Config, error) {
	return configutil.ReadWithDefaults(path, defaultConfig())
}

func (c Config) ClientOptions(verbose, noJs bool) (browser.ClientOptions, error) {
	opts := browser.DefaultClientOptions()
	if c.Client.JavaScript != nil {
		opts.EnableJavaScript = *c.Client.JavaScript
	}
	if noJs {
		opts.EnableJavaScript = false
	}

	if c.Client.Timeout != "" {
		timeout, err := time.ParseDuration(c.Client.Timeout)
		if err != nil {
			return browser.ClientOptions{}, fmt.Errorf("client.timeout: %w", err)
		}
		opts.Timeout = timeout
	}
	if c.Client.UserAgent != "" {
		opts.UserAgent = c.Client.UserAgent
	}
	opts.BypassCloudflare = c.Client.BypassCloudflare
	opts.ChromeControlURL = c.Client.ChromeControlUrl
	if verbose {
		opts.DumpDir = c.Client.DumpDir
	}

	opts.OnScriptError = func(err error) {
		slog.Debug("script error", "err", err)
	}
	opts.OnIncorrectness = func(message, origin string) {
		slog.Debug("incorrectness", "message", message, "origin", origin)
	}
	return opts, nil
}

func (c Config) CacheOptions() (pagecache.Options, error) {
	opts := pagecache.Options{Dir: c.Cache.Dir}
	if c.Cache.Ttl != "" {
		ttl, err := time.ParseDuration(c.Cache.Ttl)
		if err != nil {
			return pagecache.Options{}, fmt.Errorf("cache.ttl: %w", err)
		}
		opts.TTL = ttl
	}
	return opts, nil
}
