package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Auth         AuthConfig         `yaml:"auth"`
	LDAP         LDAPConfig         `yaml:"ldap"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Redis        RedisConfig        `yaml:"redis"`
	Recaptcha    RecaptchaConfig    `yaml:"recaptcha"`
	Notification NotificationConfig `yaml:"notification"`
	SLA          SLAConfig          `yaml:"sla"`
	Translation  TranslationConfig  `yaml:"translation"`
	Log          LogConfig          `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// Requests per second allowed per client IP on intake and auth routes.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// AuthConfig covers the public client key and the seeded administrator.
type AuthConfig struct {
	// APIKey is the public key browser clients send in the apikey header.
	// Empty disables the check.
	APIKey        string `yaml:"api_key"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	AllowSignup   bool   `yaml:"allow_signup"`
	// AnonManage lets API-key callers resolve complaints, as the
	// dashboard client does. Admin messages always need an admin token.
	AnonManage bool `yaml:"anon_manage"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
	// Members of this group DN get the admin role; empty means none do.
	AdminGroup string `yaml:"admin_group"`
}

// OpenAIConfig is the fallback classifier backend used when no LLM
// configuration is stored in the database.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type ClassifierConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

// RedisConfig for the optional async task queue and translation cache
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RecaptchaConfig struct {
	Secret    string  `yaml:"secret"`
	VerifyURL string  `yaml:"verify_url"`
	MinScore  float64 `yaml:"min_score"`
}

type NotificationConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	// Lowest priority that triggers a notification: Low, Medium or High.
	MinPriority string `yaml:"min_priority"`
	DashboardURL string `yaml:"dashboard_url"`
}

type SLAConfig struct {
	Country    string `yaml:"country"` // US, GB, CN, ...
	HighDays   int    `yaml:"high_days"`
	MediumDays int    `yaml:"medium_days"`
	LowDays    int    `yaml:"low_days"`
}

type TranslationConfig struct {
	Endpoint        string `yaml:"endpoint"`
	SourceLang      string `yaml:"source_lang"`
	CacheTTLHours   int    `yaml:"cache_ttl_hours"`
	CacheMaxEntries int    `yaml:"cache_max_entries"` // in-memory cache only
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type LogConfig struct {
	Level         string `yaml:"level"`
	RetentionDays int    `yaml:"retention_days"`
}

var GlobalConfig *Config

// Load reads .env (if present), then the YAML file on top of the defaults,
// then applies environment overrides.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      "8080",
			Mode:      "debug",
			RateLimit: 2,
			RateBurst: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "complaints.db",
		},
		JWT: JWTConfig{
			Secret:     "complaints-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Auth: AuthConfig{
			AdminEmail:  "admin@example.com",
			AllowSignup: true,
			AnonManage:  true,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Classifier: ClassifierConfig{
			TimeoutSeconds: 60,
			MaxTokens:      1024,
			Temperature:    0.2,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Recaptcha: RecaptchaConfig{
			VerifyURL: "https://www.google.com/recaptcha/api/siteverify",
			MinScore:  0.5,
		},
		Notification: NotificationConfig{
			MinPriority: "High",
		},
		SLA: SLAConfig{
			Country:    "US",
			HighDays:   1,
			MediumDays: 3,
			LowDays:    5,
		},
		Translation: TranslationConfig{
			Endpoint:        "https://api.mymemory.translated.net/get",
			SourceLang:      "en",
			CacheTTLHours:   24,
			CacheMaxEntries: 10000,
			TimeoutSeconds:  10,
		},
		Log: LogConfig{
			Level:         "info",
			RetentionDays: 30,
		},
	}
}

func (c *Config) overrideFromEnv() {
	strs := map[string]*string{
		"SERVER_HOST":       &c.Server.Host,
		"SERVER_PORT":       &c.Server.Port,
		"SERVER_MODE":       &c.Server.Mode,
		"DB_DRIVER":         &c.Database.Driver,
		"DB_DSN":            &c.Database.DSN,
		"JWT_SECRET":        &c.JWT.Secret,
		"API_KEY":           &c.Auth.APIKey,
		"ADMIN_EMAIL":       &c.Auth.AdminEmail,
		"ADMIN_PASSWORD":    &c.Auth.AdminPassword,
		"OPENAI_BASE_URL":   &c.OpenAI.BaseURL,
		"OPENAI_API_KEY":    &c.OpenAI.APIKey,
		"OPENAI_MODEL":      &c.OpenAI.Model,
		"RECAPTCHA_SECRET":  &c.Recaptcha.Secret,
		"SLACK_WEBHOOK_URL": &c.Notification.SlackWebhookURL,
		"SLA_COUNTRY":       &c.SLA.Country,
		"LOG_LEVEL":         &c.Log.Level,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if timeout := os.Getenv("CLASSIFIER_TIMEOUT_SECONDS"); timeout != "" {
		if n, err := strconv.Atoi(timeout); err == nil && n > 0 {
			c.Classifier.TimeoutSeconds = n
		}
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := c.applyRedisURL(redisURL); err == nil {
			c.Redis.Enabled = true
		}
	}
}

// applyRedisURL copies address, password and db from a redis:// or
// rediss:// URL. The config is left untouched when the URL does not parse.
func (c *Config) applyRedisURL(redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	c.Redis.Addr = opts.Addr
	c.Redis.Password = opts.Password
	c.Redis.DB = opts.DB
	return nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
