package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ConfigOption struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// ServerOptions configure the catalog HTTP endpoint.
var ServerOptions = []ConfigOption{
	{Key: keyServerAddress, Flag: flag(keyServerAddress), Default: ":8000", Description: "Catalog server listen address"},
	{Key: keyServerAllowedOrigins, Flag: flag(keyServerAllowedOrigins), Default: []string{}, Description: "Allowed CORS origins (empty allows all)"},
}

// SchemaOptions configure cluster access and the aggregation cycle.
var SchemaOptions = []ConfigOption{
	{Key: keyKubeConfig, Flag: flag(keyKubeConfig), Default: "", Description: "Kubeconfig path (defaults to ~/.kube/config)"},
	{Key: keyKubeContext, Flag: flag(keyKubeContext), Default: "", Description: "Kubeconfig context (defaults to current-context)"},
	{Key: keySchemaRefreshInterval, Flag: flag(keySchemaRefreshInterval), Default: time.Hour, Description: "Interval between schema refresh cycles"},
	{Key: keySchemaFetchConcurrency, Flag: flag(keySchemaFetchConcurrency), Default: 8, Description: "Concurrent schema fragment fetches"},
	{Key: keySchemaRequestTimeout, Flag: flag(keySchemaRequestTimeout), Default: 30 * time.Second, Description: "Per-request timeout against the API server"},
	{Key: keySchemaRetryAttempts, Flag: flag(keySchemaRetryAttempts), Default: 3, Description: "Attempts per discovery/schema request (transient failures only)"},
}

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, o := range ServerOptions {
		v.SetDefault(o.Key, o.Default)
	}

	for _, o := range SchemaOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/k8schema/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("K8SCHEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags defines the flags for options on fs (unless already
// defined) and binds each key to its flag. Keys are bound last-wins,
// so a command re-binds its own flag set on execution to make sure
// its flags take precedence over a sibling command's.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []ConfigOption) error {
	for _, o := range options {
		if fs.Lookup(o.Flag) == nil {
			switch v := o.Default.(type) {
			case string:
				fs.String(o.Flag, v, o.Description)
			case int:
				fs.Int(o.Flag, v, o.Description)
			case bool:
				fs.Bool(o.Flag, v, o.Description)
			case []string:
				fs.StringSlice(o.Flag, v, o.Description)
			case time.Duration:
				fs.Duration(o.Flag, v, o.Description)
			default:
				return fmt.Errorf("unsupported flag type for key: %s", o.Key)
			}
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) ServerAddress() string {
	return c.v.GetString(keyServerAddress) // K8SCHEMA_SERVER_ADDRESS
}

func (c *Config) ServerAllowedOrigins() []string {
	return c.v.GetStringSlice(keyServerAllowedOrigins) // K8SCHEMA_SERVER_ALLOWED_ORIGINS
}

func (c *Config) KubeConfig() string {
	return c.v.GetString(keyKubeConfig) // K8SCHEMA_KUBE_CONFIG
}

func (c *Config) KubeContext() string {
	return c.v.GetString(keyKubeContext) // K8SCHEMA_KUBE_CONTEXT
}

func (c *Config) SchemaRefreshInterval() time.Duration {
	return c.v.GetDuration(keySchemaRefreshInterval) // K8SCHEMA_SCHEMA_REFRESH_INTERVAL
}

func (c *Config) SchemaFetchConcurrency() int {
	return c.v.GetInt(keySchemaFetchConcurrency) // K8SCHEMA_SCHEMA_FETCH_CONCURRENCY
}

func (c *Config) SchemaRequestTimeout() time.Duration {
	return c.v.GetDuration(keySchemaRequestTimeout) // K8SCHEMA_SCHEMA_REQUEST_TIMEOUT
}

func (c *Config) SchemaRetryAttempts() int {
	return c.v.GetInt(keySchemaRetryAttempts) // K8SCHEMA_SCHEMA_RETRY_ATTEMPTS
}

func flag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "server-")
	flag = strings.TrimPrefix(flag, "schema-")
	return flag
}
