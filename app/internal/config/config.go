package config

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	IsDev   bool `yaml:"is_dev" env:"IS_DEV" env-default:"false"`
	IsDebug bool `yaml:"is_debug" env:"IS_DEBUG" env-default:"false"`

	HTTP struct {
		Port        int      `yaml:"port" env:"PORT" env-default:"8080"`
		CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`
	} `yaml:"http"`
	Repository struct {
		Type      string `yaml:"type" env:"REPOSITORY_TYPE" env-default:"memory"`
		SQLiteDSN string `yaml:"sqlite_dsn" env:"SQLITE_DSN" env-default:"sessions.db"`
	} `yaml:"repository"`
	Registry struct {
		DBType string `yaml:"db_type" env:"REGISTRY_DB_TYPE" env-default:"sqlite"`
		DSN    string `yaml:"dsn" env:"REGISTRY_DSN" env-default:"providers.db"`
	} `yaml:"registry"`
	Queue struct {
		RateLimitPerMin  int   `yaml:"rate_limit_per_min" env:"RATE_LIMIT_PER_MIN" env-default:"60"`
		MaxResponseBytes int64 `yaml:"max_response_bytes" env:"MAX_RESPONSE_BYTES" env-default:"50000"`
	} `yaml:"queue"`
	Providers struct {
		CallTimeout   time.Duration `yaml:"call_timeout" env:"PROVIDER_CALL_TIMEOUT" env-default:"30s"`
		MemberTimeout time.Duration `yaml:"member_timeout" env:"COUNCIL_MEMBER_TIMEOUT" env-default:"60s"`

		// Keys are applied to the registry at startup and never written by Save.
		OpenAIAPIKey      string `yaml:"-" env:"OPENAI_API_KEY"`
		AnthropicAPIKey   string `yaml:"-" env:"ANTHROPIC_API_KEY"`
		GeminiAPIKey      string `yaml:"-" env:"GEMINI_API_KEY"`
		PerplexityAPIKey  string `yaml:"-" env:"PERPLEXITY_API_KEY"`
		HuggingFaceAPIKey string `yaml:"-" env:"HUGGINGFACE_API_KEY"`
	} `yaml:"providers"`
	RateLimit struct {
		Limit      int           `yaml:"limit" env:"CALLER_RATE_LIMIT" env-default:"20"`
		Window     time.Duration `yaml:"window" env:"CALLER_RATE_WINDOW" env-default:"60s"`
		MaxCallers int           `yaml:"max_callers" env:"CALLER_RATE_MAX_CALLERS" env-default:"10000"`
	} `yaml:"rate_limit"`
	Breaker struct {
		Threshold int           `yaml:"threshold" env:"BREAKER_THRESHOLD" env-default:"5"`
		Cooldown  time.Duration `yaml:"cooldown" env:"BREAKER_COOLDOWN" env-default:"60s"`
	} `yaml:"breaker"`
	Cache struct {
		Size int           `yaml:"size" env:"CACHE_SIZE" env-default:"1024"`
		TTL  time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
	} `yaml:"cache"`
	Reaper struct {
		Interval time.Duration `yaml:"interval" env:"REAPER_INTERVAL" env-default:"1m"`
		MaxAge   time.Duration `yaml:"max_age" env:"REAPER_MAX_AGE" env-default:"10m"`
	} `yaml:"reaper"`

	Admins []string `yaml:"admins" env:"ADMINS" env-separator:","`
	// AdminToken is the bearer token admin routes require. Empty disables them.
	AdminToken string                 `yaml:"-" env:"ADMIN_TOKEN"`
	Council    entities.CouncilConfig `yaml:"council"`
}

// APIKeys maps provider names to the keys supplied through the environment.
func (c *Config) APIKeys() map[string]string {
	keys := map[string]string{}
	for name, key := range map[string]string{
		"openai":      c.Providers.OpenAIAPIKey,
		"anthropic":   c.Providers.AnthropicAPIKey,
		"gemini":      c.Providers.GeminiAPIKey,
		"perplexity":  c.Providers.PerplexityAPIKey,
		"huggingface": c.Providers.HuggingFaceAPIKey,
	} {
		if key != "" {
			keys[name] = key
		}
	}
	return keys
}

// IsAdmin reports whether principal may manage providers.
func (c *Config) IsAdmin(principal string) bool {
	return principal != "" && slices.Contains(c.Admins, principal)
}

// Load reads path when given, otherwise the environment alone. Environment
// variables override values from the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.Council.Members) == 0 {
		cfg.Council = entities.DefaultCouncilConfig()
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Singleton: Config should only ever be created once.
var instance *Config

// Once is an object that will perform exactly one action.
var once sync.Once

// GetConfig returns pointer to Config read from CONFIG_PATH, if set, and the environment.
func GetConfig() *Config {
	once.Do(func() {
		klog.Info("collecting config...")

		cfg, err := Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			helpText := "Environment variables error:"
			help, herr := cleanenv.GetDescription(&Config{}, &helpText)
			if herr != nil {
				klog.Fatal(herr)
			}
			klog.Info(help)
			klog.Fatal(err)
		}
		instance = cfg
	})
	return instance
}
