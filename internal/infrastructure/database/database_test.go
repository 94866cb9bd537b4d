package database

import (
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sqliteConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             "file::memory:?cache=shared",
		MaxOpenConns:    3,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(context.Background(), sqliteConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, RecordPoolStats(db, "test"))
	assert.GreaterOrEqual(t, promtest.ToFloat64(metrics.DBOpenConns.WithLabelValues("test")), float64(1))
	assert.Zero(t, promtest.ToFloat64(metrics.DBInUseConns.WithLabelValues("test")))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Driver = "mysql"

	_, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, config.RedisConfig{Enabled: true, Address: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
