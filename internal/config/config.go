package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Cron   CronConfig   `mapstructure:"cron"`
	API    APIConfig    `mapstructure:"api"`
	Ingest IngestConfig `mapstructure:"ingest"`
	Admin  AdminConfig  `mapstructure:"admin"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	PositionalBinds bool          `mapstructure:"positional_binds"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Ingest  string `mapstructure:"ingest"`
}

// APIConfig describes the upstream SAM.gov opportunities search endpoint.
// The key maps to the SAM_API_KEY environment variable.
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Key         string        `mapstructure:"key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTries    int           `mapstructure:"max_tries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

type IngestConfig struct {
	Scope        string        `mapstructure:"scope"`
	LookbackDays int           `mapstructure:"lookback_days"`
	PageSize     int           `mapstructure:"page_size"`
	MaxRecords   int           `mapstructure:"max_records"`
	PagePause    time.Duration `mapstructure:"page_pause"`
	ZipPause     time.Duration `mapstructure:"zip_pause"`
	Zips         []string      `mapstructure:"zips"`
	NAICS        string        `mapstructure:"naics"`
	SetAside     string        `mapstructure:"set_aside"`
	Cleanup      bool          `mapstructure:"cleanup"`
	KeepRaw      bool          `mapstructure:"keep_raw"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.positional_binds", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "45s")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.ingest", "@every 6h")
	v.SetDefault("api.base_url", "https://api.sam.gov/opportunities/v2/search")
	v.SetDefault("api.timeout", "60s")
	v.SetDefault("api.max_tries", 8)
	v.SetDefault("api.backoff_base", "2s")
	v.SetDefault("api.backoff_max", "60s")
	v.SetDefault("ingest.scope", "last_posted_from")
	v.SetDefault("ingest.lookback_days", 2)
	v.SetDefault("ingest.page_size", 10)
	v.SetDefault("ingest.max_records", 300)
	v.SetDefault("ingest.page_pause", "8s")
	v.SetDefault("ingest.zip_pause", "2s")
	v.SetDefault("ingest.zips", []string{})
	v.SetDefault("ingest.naics", "")
	v.SetDefault("ingest.set_aside", "")
	v.SetDefault("ingest.cleanup", false)
	v.SetDefault("ingest.keep_raw", false)
	v.SetDefault("admin.token", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
