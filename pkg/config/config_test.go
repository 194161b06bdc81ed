package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.HTTP.Port)
	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, "pos", cfg.Database.Database)
	require.Equal(t, "guest", cfg.RabbitMQ.User)
}

func TestLoadConfigEnvOverridesNestedKeys(t *testing.T) {
	t.Setenv("POS_DATABASE_HOST", "db.internal")
	t.Setenv("POS_HTTP_PORT", "8080")
	t.Setenv("POS_RABBITMQ_PASSWORD", "s3cret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "s3cret", cfg.RabbitMQ.Password)

	// Untouched keys keep their defaults.
	require.Equal(t, 5432, cfg.Database.Port)
}
