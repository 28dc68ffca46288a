// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix K8SCHEMA_)
//  3. Config file (config.yaml in . or /etc/k8schema/)
//  4. Compiled defaults
package config

// Viper keys for the serving endpoint.
const (
	keyServerAddress        = "server.address"
	keyServerAllowedOrigins = "server.allowed_origins"
)

// Viper keys for cluster access and the aggregation cycle.
const (
	keyKubeConfig             = "kube.config"
	keyKubeContext            = "kube.context"
	keySchemaRefreshInterval  = "schema.refresh_interval"
	keySchemaFetchConcurrency = "schema.fetch_concurrency"
	keySchemaRequestTimeout   = "schema.request_timeout"
	keySchemaRetryAttempts    = "schema.retry_attempts"
)
