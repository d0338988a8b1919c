package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variables read by Config.
const (
	EnvTimeout   = "VIMMAGAZINE_TIMEOUT"
	EnvRetries   = "VIMMAGAZINE_RETRIES"
	EnvIssues    = "VIMMAGAZINE_ISSUES"
	EnvReleases  = "VIMMAGAZINE_RELEASES"
	EnvVerbose   = "VIMMAGAZINE_VERBOSE"
	EnvGitHub    = "GITHUB_TOKEN"
	EnvGitHubAlt = "GH_TOKEN"
)

// Config exposes settings taken from the environment, including a .env file
// in the working directory when present.
type Config struct{ v *viper.Viper }

func New() *Config {
	_ = godotenv.Load()
	vv := viper.New()
	vv.AutomaticEnv()
	return &Config{v: vv}
}

func (c *Config) GetGitHubToken() string {
	if t := c.v.GetString(EnvGitHub); t != "" {
		return t
	}
	return c.v.GetString(EnvGitHubAlt)
}

// GetTimeout returns the HTTP timeout, or zero when unset or malformed.
func (c *Config) GetTimeout() time.Duration {
	if v := c.v.GetString(EnvTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}

// GetRetries returns the retry count and whether it was set.
func (c *Config) GetRetries() (int, bool) {
	if !c.v.IsSet(EnvRetries) {
		return 0, false
	}
	return c.v.GetInt(EnvRetries), true
}

func (c *Config) GetIssueRepo() string { return strings.TrimSpace(c.v.GetString(EnvIssues)) }

func (c *Config) GetVerbose() bool { return c.v.GetBool(EnvVerbose) }

// GetReleases returns the comma-separated release lines, e.g. "7.4,8.0".
func (c *Config) GetReleases() []string {
	var out []string
	for _, r := range strings.Split(c.v.GetString(EnvReleases), ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (c *Config) Set(key string, value any) { c.v.Set(key, value) }
