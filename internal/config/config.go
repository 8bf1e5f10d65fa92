package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	AppName       string
	Environment   string
	LogLevel      string
	HTTPAddr      string
	SnowflakeNode int64

	DB        DBConfig
	Redis     RedisConfig
	Vault     VaultConfig
	Webhook   WebhookConfig
	OTel      OTelConfig
	Bootstrap BootstrapConfig
}

type DBConfig struct {
	Driver          string
	DSN             string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type VaultConfig struct {
	Provider     string
	AESKey       string
	PreviousKeys []string
}

type WebhookConfig struct {
	SignatureTolerance time.Duration
	LockTTL            time.Duration
	// RetentionDays bounds how long processed event ids are kept for
	// replay detection. Zero disables the purge.
	RetentionDays     int
	RetentionInterval time.Duration
}

type OTelConfig struct {
	Endpoint string
	// Protocol is "http/protobuf" or "grpc".
	Protocol string
	Insecure bool
}

type BootstrapConfig struct {
	OrgName  string
	AdminKey string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Load reads .env (when present), environment variables and an optional
// config file named by CONFIG_FILE.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := newViper()
	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch invokes onChange with the reloaded config whenever the config file
// changes. It is a no-op when no config file is in use.
func Watch(onChange func(Config)) bool {
	v := newViper()
	path := strings.TrimSpace(v.GetString("config_file"))
	if path == "" {
		return false
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(fromViper(v))
	})
	v.WatchConfig()
	return true
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_name", "billingcore")
	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("snowflake_node", 1)

	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_dsn", "host=localhost user=postgres password=postgres dbname=billingcore port=5432 sslmode=disable")
	v.SetDefault("db_auto_migrate", false)
	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", "30m")

	v.SetDefault("redis_db", 0)

	v.SetDefault("vault_provider", "aes")

	v.SetDefault("webhook_tolerance", "5m")
	v.SetDefault("webhook_lock_ttl", "30s")
	v.SetDefault("webhook_retention_days", 30)
	v.SetDefault("webhook_retention_interval", "1h")

	v.SetDefault("otel_exporter_otlp_insecure", true)
	v.SetDefault("otel_exporter_otlp_protocol", "http/protobuf")

	v.SetDefault("bootstrap_org_name", "Main")
	return v
}

func fromViper(v *viper.Viper) Config {
	return Config{
		AppName:       v.GetString("app_name"),
		Environment:   strings.ToLower(v.GetString("app_env")),
		LogLevel:      v.GetString("log_level"),
		HTTPAddr:      v.GetString("http_addr"),
		SnowflakeNode: v.GetInt64("snowflake_node"),
		DB: DBConfig{
			Driver:          strings.ToLower(v.GetString("db_driver")),
			DSN:             v.GetString("db_dsn"),
			AutoMigrate:     v.GetBool("db_auto_migrate"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Vault: VaultConfig{
			Provider:     v.GetString("vault_provider"),
			AESKey:       v.GetString("vault_aes_key"),
			PreviousKeys: splitList(v.GetString("vault_previous_keys")),
		},
		Webhook: WebhookConfig{
			SignatureTolerance: v.GetDuration("webhook_tolerance"),
			LockTTL:            v.GetDuration("webhook_lock_ttl"),
			RetentionDays:      v.GetInt("webhook_retention_days"),
			RetentionInterval:  v.GetDuration("webhook_retention_interval"),
		},
		OTel: OTelConfig{
			Endpoint: v.GetString("otel_exporter_otlp_endpoint"),
			Protocol: strings.ToLower(strings.TrimSpace(v.GetString("otel_exporter_otlp_protocol"))),
			Insecure: v.GetBool("otel_exporter_otlp_insecure"),
		},
		Bootstrap: BootstrapConfig{
			OrgName:  v.GetString("bootstrap_org_name"),
			AdminKey: v.GetString("bootstrap_admin_key"),
		},
	}
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return errors.New("SNOWFLAKE_NODE must be between 0 and 1023")
	}
	if c.OTel.Protocol != "http/protobuf" && c.OTel.Protocol != "grpc" {
		return fmt.Errorf("unsupported otel_exporter_otlp_protocol %q", c.OTel.Protocol)
	}
	if c.Webhook.RetentionDays < 0 {
		return errors.New("WEBHOOK_RETENTION_DAYS must not be negative")
	}
	if c.IsProduction() && strings.TrimSpace(c.Vault.AESKey) == "" {
		return errors.New("VAULT_AES_KEY is required in production")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
