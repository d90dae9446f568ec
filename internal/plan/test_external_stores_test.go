package plan

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These run against real backends when their connection settings are present.

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("PLAN_STORE_TEST_PG_DSN"))
	if dsn == "" {
		t.Skip("PLAN_STORE_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestS3StoreRoundTrip(t *testing.T) {
	endpoint := strings.TrimSpace(os.Getenv("PLAN_STORE_TEST_S3_ENDPOINT"))
	if endpoint == "" {
		t.Skip("PLAN_STORE_TEST_S3_ENDPOINT not set")
	}
	store, err := NewS3Store(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("PLAN_STORE_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("PLAN_STORE_TEST_S3_SECRET_KEY"),
		Bucket:    "plan-store-test",
		Prefix:    "test-" + time.Now().UTC().Format("20060102150405"),
	})
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.ErrorContains(t, err, "endpoint is required")
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "access key")
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestEscapeSegment(t *testing.T) {
	assert.Equal(t, "https___github.com_legacy-corp_app", escapeSegment("https://github.com/legacy-corp/app"))
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	repo := "https://github.com/legacy-corp/vulnerable-py2-app#" + time.Now().Format(time.RFC3339Nano)
	g := NewGateway(store)
	id, err := g.Save(ctx, repo, sampleReport())
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, repo, got.Repo)
	assert.Equal(t, 2, got.VulnerabilityCount)

	list, err := store.List(ctx, repo)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	_, err = store.Get(ctx, IDPrefix+"missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
