// Package config loads and validates exporter configuration.
//
// Sources, highest priority first: environment variables, a YAML config file
// (CONFIG_FILE, falling back to ./config.yaml when present), built-in
// defaults. Invalid values fail startup with a descriptive error; nothing
// falls back silently.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
	"github.com/spf13/viper"
)

// DefaultAPIURL is the Railway GraphQL endpoint.
const DefaultAPIURL = "https://backboard.railway.app/graphql/v2"

// Icon delivery modes. Fixed at startup; switching requires restart.
const (
	IconModeBase64 = "base64"
	IconModeLink   = "link"
)

// Gzip holds response compression settings.
type Gzip struct {
	Enabled bool `mapstructure:"enabled"`
	MinSize int  `mapstructure:"min_size"`
	Level   int  `mapstructure:"level"`
}

// IconCache holds icon cache settings.
type IconCache struct {
	Enabled  bool   `mapstructure:"enabled"`
	MaxCount int    `mapstructure:"max_count"`
	Mode     string `mapstructure:"mode"`
	MaxAge   int    `mapstructure:"max_age"`
	BaseURL  string `mapstructure:"base_url"`
}

// Config is the validated runtime configuration.
type Config struct {
	APIToken       string              `mapstructure:"railway_api_token"`
	ProjectID      string              `mapstructure:"railway_project_id"`
	Plan           string              `mapstructure:"railway_plan"`
	APIURL         string              `mapstructure:"railway_api_url"`
	ScrapeInterval int                 `mapstructure:"scrape_interval"`
	Port           int                 `mapstructure:"port"`
	CORSEnabled    bool                `mapstructure:"cors_enabled"`
	WebsocketEn    bool                `mapstructure:"websocket_enabled"`
	Gzip           Gzip                `mapstructure:"gzip"`
	IconCache      IconCache           `mapstructure:"icon_cache"`
	ServiceGroups  map[string][]string `mapstructure:"service_groups"`

	Pricing pricing.Overrides `mapstructure:"-"`
}

// GroupNames returns the configured group names, sorted for stable output.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.ServiceGroups))
	for name := range c.ServiceGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var envBindings = map[string]string{
	"railway_api_token":    "RAILWAY_API_TOKEN",
	"railway_project_id":   "RAILWAY_PROJECT_ID",
	"railway_plan":         "RAILWAY_PLAN",
	"railway_api_url":      "RAILWAY_API_URL",
	"scrape_interval":      "SCRAPE_INTERVAL",
	"port":                 "PORT",
	"cors_enabled":         "CORS_ENABLED",
	"websocket_enabled":    "WEBSOCKET_ENABLED",
	"gzip.enabled":         "GZIP_ENABLED",
	"gzip.min_size":        "GZIP_MIN_SIZE",
	"gzip.level":           "GZIP_LEVEL",
	"icon_cache.enabled":   "ICON_CACHE_ENABLED",
	"icon_cache.max_count": "ICON_CACHE_MAX_COUNT",
	"icon_cache.mode":      "ICON_CACHE_MODE",
	"icon_cache.max_age":   "ICON_CACHE_MAX_AGE",
	"icon_cache.base_url":  "ICON_CACHE_BASE_URL",
	"pricing.cpu":          "CUSTOM_CPU_PRICE",
	"pricing.memory":       "CUSTOM_MEMORY_PRICE",
	"pricing.disk":         "CUSTOM_DISK_PRICE",
	"pricing.network":      "CUSTOM_NETWORK_PRICE",
}

// Load reads configuration from the environment and optional YAML file and
// validates it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path := configFilePath(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Pricing = priceOverrides(v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("railway_plan", pricing.PlanHobby)
	v.SetDefault("railway_api_url", DefaultAPIURL)
	v.SetDefault("scrape_interval", 300)
	v.SetDefault("port", 9333)
	v.SetDefault("cors_enabled", true)
	v.SetDefault("websocket_enabled", true)
	v.SetDefault("gzip.enabled", true)
	v.SetDefault("gzip.min_size", 256)
	v.SetDefault("gzip.level", 1)
	v.SetDefault("icon_cache.enabled", true)
	v.SetDefault("icon_cache.max_count", 100)
	v.SetDefault("icon_cache.mode", IconModeBase64)
	v.SetDefault("icon_cache.max_age", 86400)
	v.SetDefault("icon_cache.base_url", "")
	v.SetDefault("service_groups", map[string][]string{})
}

func configFilePath() string {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func priceOverrides(v *viper.Viper) pricing.Overrides {
	var o pricing.Overrides
	for key, dst := range map[string]**float64{
		"pricing.cpu":     &o.CPU,
		"pricing.memory":  &o.Memory,
		"pricing.disk":    &o.Disk,
		"pricing.network": &o.Network,
	} {
		if v.IsSet(key) {
			price := v.GetFloat64(key)
			*dst = &price
		}
	}
	return o
}

func (c *Config) validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("missing required config: RAILWAY_API_TOKEN")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("missing required config: RAILWAY_PROJECT_ID")
	}
	plan := strings.ToLower(c.Plan)
	if plan != pricing.PlanHobby && plan != pricing.PlanPro {
		return fmt.Errorf("invalid plan %q: must be %q or %q", c.Plan, pricing.PlanHobby, pricing.PlanPro)
	}
	c.Plan = plan
	if c.ScrapeInterval < 60 || c.ScrapeInterval > 3600 {
		return fmt.Errorf("SCRAPE_INTERVAL must be between 60 and 3600 seconds, got %d", c.ScrapeInterval)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Gzip.Level < 1 || c.Gzip.Level > 9 {
		return fmt.Errorf("GZIP_LEVEL must be between 1 and 9, got %d", c.Gzip.Level)
	}
	if c.Gzip.MinSize < 0 {
		return fmt.Errorf("GZIP_MIN_SIZE must not be negative, got %d", c.Gzip.MinSize)
	}
	if c.IconCache.Mode != IconModeBase64 && c.IconCache.Mode != IconModeLink {
		return fmt.Errorf("invalid icon cache mode %q: must be %q or %q",
			c.IconCache.Mode, IconModeBase64, IconModeLink)
	}
	if c.IconCache.Enabled && c.IconCache.MaxCount < 1 {
		return fmt.Errorf("ICON_CACHE_MAX_COUNT must be at least 1, got %d", c.IconCache.MaxCount)
	}
	if c.IconCache.MaxAge < 0 {
		return fmt.Errorf("ICON_CACHE_MAX_AGE must not be negative, got %d", c.IconCache.MaxAge)
	}
	for name, price := range map[string]*float64{
		"CUSTOM_CPU_PRICE":     c.Pricing.CPU,
		"CUSTOM_MEMORY_PRICE":  c.Pricing.Memory,
		"CUSTOM_DISK_PRICE":    c.Pricing.Disk,
		"CUSTOM_NETWORK_PRICE": c.Pricing.Network,
	} {
		if price != nil && *price < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, *price)
		}
	}
	return nil
}
