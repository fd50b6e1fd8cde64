package admin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/wastebank/internal/authgate"
	"github.com/mmeshcher/wastebank/internal/catalog"
	"github.com/mmeshcher/wastebank/internal/repository"
)

type fakeStore struct {
	migrated bool
	seeded   repository.SeedData
	report   repository.SeedReport
	err      error
	closed   bool
}

func (s *fakeStore) Migrate(ctx context.Context) error {
	s.migrated = true
	return s.err
}

func (s *fakeStore) Seed(ctx context.Context, data repository.SeedData) (repository.SeedReport, error) {
	s.seeded = data
	return s.report, s.err
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

type fakeCache struct {
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	return nil
}

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testOptions(store *fakeStore, cache catalog.Cache) *RootOptions {
	return &RootOptions{
		Open: func(ctx context.Context, dsn string) (Store, error) {
			return store, nil
		},
		Cache: func(addr string) catalog.Cache {
			if addr == "" {
				return nil
			}
			return cache
		},
	}
}

func TestMigrate(t *testing.T) {
	store := &fakeStore{}
	out, err := run(t, testOptions(store, nil), "migrate", "-d", "postgres://localhost/wastebank")
	require.NoError(t, err)
	assert.True(t, store.migrated)
	assert.True(t, store.closed)
	assert.Contains(t, out, "migrations applied")
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URI", "")
	_, err := run(t, testOptions(&fakeStore{}, nil), "migrate")
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestSeedDryRun(t *testing.T) {
	store := &fakeStore{}
	out, err := run(t, testOptions(store, nil), "seed", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "3 waste types, 7 levels")
	assert.Contains(t, out, "Mythic")
	assert.False(t, store.migrated)
}

func TestSeedInvalidatesCache(t *testing.T) {
	store := &fakeStore{report: repository.SeedReport{Wastes: 3, Levels: 7}}
	cache := &fakeCache{}

	out, err := run(t, testOptions(store, cache), "seed", "-d", "postgres://db", "--redis-addr", "localhost:6379")
	require.NoError(t, err)
	assert.Contains(t, out, "inserted 3 waste types, 7 levels")
	assert.True(t, store.migrated)
	assert.Len(t, store.seeded.Levels, 7)
	assert.ElementsMatch(t, []string{"catalog:wastes", "catalog:levels"}, cache.deleted)
}

func TestSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
wastes:
  - id: minyak-jelantah
    name: Minyak Jelantah
    pointsPerKg: 4
    unit: liter
levels:
  - id: newbie
    name: Newbie
    requiredPoints: 0
`), 0o600))

	store := &fakeStore{}
	_, err := run(t, testOptions(store, nil), "seed", "-d", "postgres://db", "-f", path)
	require.NoError(t, err)
	require.Len(t, store.seeded.Wastes, 1)
	assert.Equal(t, "liter", store.seeded.Wastes[0].Unit)
}

func TestSeedStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("relation \"levels\" does not exist")}
	_, err := run(t, testOptions(store, nil), "seed", "-d", "postgres://db")
	assert.Error(t, err)
	assert.True(t, store.closed)
}

func TestToken(t *testing.T) {
	out, err := run(t, testOptions(&fakeStore{}, nil), "token", "--uid", "bank-1", "--role", "bank", "--secret", "s3cret")
	require.NoError(t, err)

	v, err := authgate.NewJWTVerifier("s3cret", time.Hour)
	require.NoError(t, err)
	id, err := v.Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, authgate.Identity{UID: "bank-1", Role: "bank"}, id)

	_, err = run(t, testOptions(&fakeStore{}, nil), "token", "--uid", "x", "--role", "seller", "--secret", "s3cret")
	assert.Error(t, err)
}
