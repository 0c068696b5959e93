package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/service"
)

func memoryConfig() *config.AppConfig {
	return &config.AppConfig{
		Ingest: config.IngestConfig{
			MaxPayloadBytes:     1024,
			DefaultTextEncoding: "windows-1252",
			ContentCacheSize:    8,
			ContentCacheTTLSec:  60,
		},
	}
}

func TestNew_Memory(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	a, err := New(ctx, memoryConfig(), logging.New(&bytes.Buffer{}, time.UTC, nil), Options{Memory: true, Registerer: reg})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.DB)

	res, err := a.Service.Ingest(ctx, service.IngestInput{Data: []byte("hello vault"), Filename: "a.txt", MediaType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, model.BucketText, res.Bucket)

	hits, err := a.Service.Search(ctx, "VAULT")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = a.Service.Ingest(ctx, service.IngestInput{Data: make([]byte, 2048), Filename: "big.bin", MediaType: "application/octet-stream"})
	var tooLarge *service.PayloadTooLargeError
	assert.ErrorAs(t, err, &tooLarge)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNew_ClassificationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - type: application/x-ndjson\n    bucket: text\n    extractor: text\n"), 0o600))

	cfg := memoryConfig()
	cfg.Ingest.ClassificationFile = path
	a, err := New(context.Background(), cfg, logging.New(&bytes.Buffer{}, time.UTC, nil), Options{Memory: true})
	require.NoError(t, err)

	res, err := a.Service.Ingest(context.Background(), service.IngestInput{Data: []byte(`{"a":1}`), Filename: "x.ndjson", MediaType: "application/x-ndjson"})
	require.NoError(t, err)
	assert.Equal(t, model.BucketText, res.Bucket)
}

func TestNew_BadConfig(t *testing.T) {
	log := logging.New(&bytes.Buffer{}, time.UTC, nil)

	cfg := memoryConfig()
	cfg.Ingest.DefaultTextEncoding = "klingon-8"
	_, err := New(context.Background(), cfg, log, Options{Memory: true})
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Ingest.ClassificationFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), cfg, log, Options{Memory: true})
	assert.Error(t, err)

	// no database configured
	_, err = New(context.Background(), memoryConfig(), log, Options{})
	assert.ErrorContains(t, err, "connect database")
}

func TestNewLocker(t *testing.T) {
	ctx := context.Background()
	log := logging.New(&bytes.Buffer{}, time.UTC, nil)
	mr := miniredis.RunT(t)

	a := &App{}
	l, err := a.newLocker(ctx, config.RedisConfig{Addr: mr.Addr(), LockTTLSec: 5}, log, false)
	require.NoError(t, err)

	unlock, err := l.Lock(ctx, "blob:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("docvault:lock:blob:1"))
	unlock()
	assert.False(t, mr.Exists("docvault:lock:blob:1"))
	require.NoError(t, a.Close())

	mr.Close()
	_, err = (&App{}).newLocker(ctx, config.RedisConfig{Addr: mr.Addr()}, log, false)
	assert.ErrorContains(t, err, "connect redis")
}
