package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.NumWorkers)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 10*time.Second, cfg.EventMinInterval)
	assert.Equal(t, 60*time.Second, cfg.EventMaxInterval)
	assert.Equal(t, "host=localhost port=5433 user=trader password=trading123 dbname=trading_db sslmode=disable", cfg.Postgres().DSN())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NUM_WORKERS", "12")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("EVENT_MIN_INTERVAL", "1s")
	t.Setenv("EVENT_MAX_INTERVAL", "2s")
	t.Setenv("BOT_NAME", "TraderBot")
	t.Setenv("DB_LOG_SQL", "true")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 12, cfg.NumWorkers)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.Equal(t, time.Second, cfg.EventMinInterval)
	assert.True(t, cfg.DBLogSQL)
	assert.Equal(t, "https://t.me/TraderBot?start=", cfg.InviteLinkBase())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"workers", map[string]string{"NUM_WORKERS": "0"}, "NUM_WORKERS"},
		{"driver", map[string]string{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"interval order", map[string]string{"EVENT_MIN_INTERVAL": "5s", "EVENT_MAX_INTERVAL": "1s"}, "EVENT_MAX_INTERVAL"},
		{"not a duration", map[string]string{"EVENT_MIN_INTERVAL": "soon"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
