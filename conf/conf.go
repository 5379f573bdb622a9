package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/metrics"
	"github.com/looplj/auditflow/internal/notify"
	"github.com/looplj/auditflow/internal/pkg/xcache"
	"github.com/looplj/auditflow/internal/pkg/xredis"
	"github.com/looplj/auditflow/internal/server"
	"github.com/looplj/auditflow/internal/server/biz"
	"github.com/looplj/auditflow/internal/server/db"
)

// EnvPrefix prefixes every environment override, e.g. AUDITFLOW_SERVER_PORT.
const EnvPrefix = "AUDITFLOW"

type Config struct {
	fx.Out `conf:"-" yaml:"-" json:"-"`

	APIServer server.Config  `conf:"server" yaml:"server" json:"server"`
	DB        db.Config      `conf:"db" yaml:"db" json:"db"`
	Log       log.Config     `conf:"log" yaml:"log" json:"log"`
	Cache     xcache.Config  `conf:"cache" yaml:"cache" json:"cache"`
	Redis     xredis.Config  `conf:"redis" yaml:"redis" json:"redis"`
	Notify    notify.Config  `conf:"notify" yaml:"notify" json:"notify"`
	Metrics   metrics.Config `conf:"metrics" yaml:"metrics" json:"metrics"`
	Auth      biz.AuthConfig `conf:"auth" yaml:"auth" json:"auth"`
}

// Load reads config.yml from ".", "./conf" or "/etc/auditflow", or the file named by
// AUDITFLOW_CONFIG, then applies environment overrides. A missing file is not an error.
func Load() (Config, error) {
	return load(os.Getenv(EnvPrefix + "_CONFIG"))
}

func load(file string) (Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./conf")
		v.AddConfigPath("/etc/auditflow")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key, environment variables only override known keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.name", "auditflow")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.trace.trace_header", "AF-Trace-Id")
	v.SetDefault("server.trace.request_header", "AF-Request-Id")
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Authorization", "Content-Type", "AF-Trace-Id"})
	v.SetDefault("server.cors.exposed_headers", []string{"AF-Request-Id"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 12*time.Hour)

	v.SetDefault("db.dialect", "sqlite")
	v.SetDefault("db.dsn", "file:auditflow.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	v.SetDefault("db.debug", false)
	v.SetDefault("db.max_open_conns", 0)

	v.SetDefault("log.name", "auditflow")
	v.SetDefault("log.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output", "stdio")
	v.SetDefault("log.file.path", "logs/auditflow.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 10)
	v.SetDefault("log.file.local_time", false)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.memory.expiration", 5*time.Minute)
	v.SetDefault("cache.memory.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.redis_expiration", 30*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls", false)
	v.SetDefault("redis.tls_insecure_skip_verify", false)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("notify.sinks", []string{"log"})
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.stream", "auditflow:notifications")
	v.SetDefault("notify.max_len", 10000)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.exporter.type", "stdout")
	v.SetDefault("metrics.exporter.endpoint", "")
	v.SetDefault("metrics.exporter.insecure", false)
	v.SetDefault("metrics.exporter.interval", time.Minute)
	v.SetDefault("metrics.exporter.pretty", false)

	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.issuer", "auditflow")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
}
