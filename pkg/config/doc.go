// Package config loads rackbook configuration.
//
// Values come from built-in defaults, then an optional YAML file named by
// RACKBOOK_CONFIG_FILE, then RACKBOOK_* environment variables. The result is
// validated before use; in particular a privileged group id must be set.
//
// Server settings:
//
//	RACKBOOK_HOST="0.0.0.0"
//	RACKBOOK_PORT="8080"
//	RACKBOOK_HEALTH_PORT="9090"
//	RACKBOOK_READ_TIMEOUT="15s"
//
// Database settings:
//
//	RACKBOOK_DB_DRIVER="postgres"  # postgres, sqlite3
//	RACKBOOK_DB_DSN="postgres://localhost/rackbook?sslmode=disable"
//	RACKBOOK_DB_MAX_CONNS="20"
//
// Sign-in settings:
//
//	RACKBOOK_OIDC_ISSUER_URL="https://auth.sch.bme.hu"
//	RACKBOOK_OIDC_CLIENT_ID="..."
//	RACKBOOK_OIDC_CLIENT_SECRET="..."
//	RACKBOOK_OIDC_REDIRECT_URL="https://rackbook.example.com/auth/callback"
//	RACKBOOK_PRIVILEGED_GROUP_ID="106"
//	RACKBOOK_SESSION_TTL="168h"
//
// Optional view invalidation:
//
//	RACKBOOK_REDIS_URL="redis://localhost:6379/0"
//	RACKBOOK_REDIS_CHANNEL="rackbook:revalidate"
//
// Observability settings:
//
//	RACKBOOK_LOG_LEVEL="info"  # debug, info, warn, error
//	RACKBOOK_OTEL_ENABLED="true"
//	RACKBOOK_OTEL_ENDPOINT="otel-collector:4317"
package config
