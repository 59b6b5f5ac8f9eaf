package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/ecomshop/pkg/config"
	"github.com/example/ecomshop/pkg/repository"
)

func TestOpenAuditSkipsUnreachableMongo(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := &config.MongoDBConfig{
		URI:        "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200",
		Database:   "ecomshop",
		Collection: "audit_logs",
	}

	assert.Nil(t, openAudit(context.Background(), cfg, 500*time.Millisecond, zap.New(core)))
	assert.Equal(t, 1, logs.FilterMessage("Failed to connect to MongoDB, audit log disabled").Len())

	assert.Nil(t, openAudit(context.Background(), &config.MongoDBConfig{}, time.Second, zap.NewNop()))
}

func TestOpenStore(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "memory"}}
	store, err := openStore(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &repository.GormStore{}, store)
	assert.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())

	cfg = &config.Config{
		Storage: config.StorageConfig{Driver: "sqlite"},
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "shop.db"), AutoMigrate: true},
	}
	store, err = openStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &repository.GormStore{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}
