package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("PAYMENT_SIGNING_SECRET", "pay")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 168*time.Hour, cfg.QuoteValidity)
	assert.Equal(t, "asynq", cfg.NotifyTransport)
	assert.Equal(t, "en-IN", cfg.InvoiceLocale)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PAYMENT_SIGNING_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigValidatesTransport(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("PAYMENT_SIGNING_SECRET", "pay")

	t.Setenv("NOTIFY_TRANSPORT", "pigeon")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("NOTIFY_TRANSPORT", "sqs")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/notifications")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqs", cfg.NotifyTransport)
}

func TestJSONLoggerCarriesEnv(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"}).Debug("hidden")
	assert.Zero(t, buf.Len())

	newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"}).Info("order placed")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "order placed", line["msg"])
}
