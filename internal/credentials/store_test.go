package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memTokenStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	loadErr error
	saveErr error
	saves   int
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{blobs: make(map[string][]byte)}
}

func (m *memTokenStore) LoadTokens(ctx context.Context, service string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	blob, ok := m.blobs[service]
	return blob, ok, nil
}

func (m *memTokenStore) SaveTokens(ctx context.Context, service string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.blobs[service] = append([]byte(nil), blob...)
	return nil
}

func newTestStore(t *testing.T, db *memTokenStore) *Store {
	t.Helper()

	cfg := Config{Dir: t.TempDir(), Logger: zap.NewNop()}
	if db != nil {
		cfg.DB = db
	}
	return New(cfg)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newMemTokenStore()
	store := newTestStore(t, db)

	tokens := TokenSet{"access_token": "a1", "refresh_token": "r1", "expires_in": float64(86400)}
	require.NoError(t, store.Save(ctx, "oura", tokens))

	loaded, source := store.Load(ctx, "oura")
	assert.Equal(t, SourceDatabase, source)
	assert.Equal(t, tokens, loaded)

	// File tier holds the same set.
	_, err := os.Stat(store.FilePath("oura"))
	assert.NoError(t, err)
}

func TestStore_EnvWinsOverDatabaseAndFile(t *testing.T) {
	ctx := context.Background()
	db := newMemTokenStore()
	store := newTestStore(t, db)

	require.NoError(t, store.Save(ctx, "oura", TokenSet{"access_token": "from-db"}))
	t.Setenv("OURA_TOKENS_JSON", `{"access_token":"from-env"}`)

	loaded, source := store.Load(ctx, "oura")
	assert.Equal(t, SourceEnv, source)
	assert.Equal(t, "from-env", loaded.AccessToken())
}

func TestStore_InvalidEnvFallsThrough(t *testing.T) {
	ctx := context.Background()
	db := newMemTokenStore()
	store := newTestStore(t, db)

	require.NoError(t, store.Save(ctx, "wakatime", TokenSet{"access_token": "from-db"}))
	t.Setenv("WAKATIME_TOKENS_JSON", `{not json`)

	loaded, source := store.Load(ctx, "wakatime")
	assert.Equal(t, SourceDatabase, source)
	assert.Equal(t, "from-db", loaded.AccessToken())
}

func TestStore_EmptyEnvObjectFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, store.Save(ctx, "oura", TokenSet{"access_token": "from-file"}))
	t.Setenv("OURA_TOKENS_JSON", `{}`)

	loaded, source := store.Load(ctx, "oura")
	assert.Equal(t, SourceFile, source)
	assert.Equal(t, "from-file", loaded.AccessToken())
}

func TestStore_DatabaseErrorTreatedAsNotFound(t *testing.T) {
	ctx := context.Background()
	db := newMemTokenStore()
	store := newTestStore(t, db)

	require.NoError(t, store.Save(ctx, "oura", TokenSet{"access_token": "a"}))
	db.loadErr = errors.New("connection refused")

	loaded, source := store.Load(ctx, "oura")
	assert.Equal(t, SourceFile, source)
	assert.Equal(t, "a", loaded.AccessToken())
}

func TestStore_CorruptFileIgnored(t *testing.T) {
	store := newTestStore(t, nil)

	require.NoError(t, os.WriteFile(store.FilePath("oura"), []byte("garbage"), 0o600))

	loaded, source := store.Load(context.Background(), "oura")
	assert.Equal(t, SourceNone, source)
	assert.True(t, loaded.IsEmpty())
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t, newMemTokenStore())

	loaded, source := store.Load(context.Background(), "oura")
	assert.Equal(t, SourceNone, source)
	assert.NotNil(t, loaded)
	assert.True(t, loaded.IsEmpty())
}

func TestStore_SaveEmptyIsNoop(t *testing.T) {
	db := newMemTokenStore()
	store := newTestStore(t, db)

	require.NoError(t, store.Save(context.Background(), "oura", TokenSet{}))
	assert.Equal(t, 0, db.saves)

	_, err := os.Stat(store.FilePath("oura"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SaveNeverWritesEnv(t *testing.T) {
	store := newTestStore(t, nil)
	t.Setenv("OURA_TOKENS_JSON", `{"access_token":"env"}`)

	require.NoError(t, store.Save(context.Background(), "oura", TokenSet{"access_token": "new"}))
	assert.Equal(t, `{"access_token":"env"}`, os.Getenv("OURA_TOKENS_JSON"))
}

func TestStore_SaveDatabaseFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	db := newMemTokenStore()
	db.saveErr = errors.New("read-only transaction")
	store := newTestStore(t, db)

	err := store.Save(ctx, "oura", TokenSet{"access_token": "a"})
	assert.NoError(t, err)

	loaded, source := store.Load(ctx, "oura")
	assert.Equal(t, SourceFile, source)
	assert.Equal(t, "a", loaded.AccessToken())
}

func TestStore_SaveAllTiersFailed(t *testing.T) {
	db := newMemTokenStore()
	db.saveErr = errors.New("read-only transaction")

	// A regular file where the token directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	store := New(Config{DB: db, Dir: filepath.Join(blocker, "tokens"), Logger: zap.NewNop()})

	err := store.Save(context.Background(), "oura", TokenSet{"access_token": "a"})
	assert.Error(t, err)
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "OURA_TOKENS_JSON", EnvVar("oura"))
	assert.Equal(t, "WAKATIME_TOKENS_JSON", EnvVar("wakatime"))
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "env", SourceEnv.String())
	assert.Equal(t, "database", SourceDatabase.String())
	assert.Equal(t, "file", SourceFile.String())
	assert.Equal(t, "none", SourceNone.String())
}
