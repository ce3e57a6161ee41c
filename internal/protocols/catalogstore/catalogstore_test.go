package catalogstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/shared/storage/object"
)

const testCatalog = `
version: store-1
templates:
  - title: Squat Basics
    category: Strength
    focus_area: Sarcopenia Prevention
    coach: A
    duration_minutes: 20
    base_intensity: 0.7
    instructions:
      - {step: 1, action: Squats}
  - title: Nervous System Reset
    category: Mobility
    focus_area: Nervous System Reset
    coach: B
    duration_minutes: 10
    base_intensity: 0.2
    instructions:
      - {step: 1, action: Breathe}
  - title: Walk
    category: Cardio
    focus_area: Metabolic
    coach: C
    duration_minutes: 30
    base_intensity: 0.5
    instructions:
      - {step: 1, action: Walk}
`

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *memStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func useMemS3(t *testing.T) *memStore {
	t.Helper()
	store := &memStore{objects: map[string][]byte{}}
	orig := newS3Store
	newS3Store = func(ctx context.Context, bucket string, opts Options) (object.Store, error) {
		assert.Equal(t, "wellness-config", bucket)
		return store, nil
	}
	t.Cleanup(func() { newS3Store = orig })
	return store
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("s3://wellness-config/catalogs/current.yaml")
	require.NoError(t, err)
	assert.True(t, loc.IsS3())
	assert.Equal(t, "wellness-config", loc.Bucket)
	assert.Equal(t, "catalogs/current.yaml", loc.Key)
	assert.Equal(t, "s3://wellness-config/catalogs/current.yaml", loc.String())

	loc, err = ParseLocation("/etc/wellness/catalog.yaml")
	require.NoError(t, err)
	assert.False(t, loc.IsS3())
	assert.Equal(t, "catalog.yaml", loc.Key)
	assert.Equal(t, filepath.FromSlash("/etc/wellness"), loc.Dir)

	for _, bad := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := ParseLocation(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadEmptyLocationUsesEmbedded(t *testing.T) {
	catalog, err := Load(context.Background(), "", Options{})
	require.NoError(t, err)
	want, err := engine.DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, want.Version(), catalog.Version())
}

func TestLoadLocalFile(t *testing.T) {
	catalog, err := Load(context.Background(), writeFile(t, testCatalog), Options{})
	require.NoError(t, err)
	assert.Equal(t, "store-1", catalog.Version())
}

func TestLoadMissingLocalFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), Options{})
	require.ErrorIs(t, err, object.ErrNotFound)
}

func TestLoadInvalidCatalog(t *testing.T) {
	_, err := Load(context.Background(), writeFile(t, "version: x\ntemplates: []\n"), Options{})
	require.ErrorIs(t, err, engine.ErrInvalidCatalog)
}

func TestLoadRejectsOversizedCatalog(t *testing.T) {
	big := testCatalog + "# " + strings.Repeat("x", maxCatalogBytes) + "\n"
	_, err := Load(context.Background(), writeFile(t, big), Options{})
	require.ErrorIs(t, err, engine.ErrInvalidCatalog)
}

func TestPublishThenLoadFromS3(t *testing.T) {
	store := useMemS3(t)
	ctx := context.Background()

	published, err := Publish(ctx, writeFile(t, testCatalog), "s3://wellness-config/catalogs/current.yaml", Options{Region: "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "store-1", published.Version())
	assert.Contains(t, store.objects, "catalogs/current.yaml")

	loaded, err := Load(ctx, "s3://wellness-config/catalogs/current.yaml", Options{})
	require.NoError(t, err)
	assert.Equal(t, "store-1", loaded.Version())
	assert.Equal(t, published.StressReset().Title, loaded.StressReset().Title)
}

func TestPublishRejectsInvalidCatalog(t *testing.T) {
	store := useMemS3(t)

	_, err := Publish(context.Background(), writeFile(t, "version: x\n"), "s3://wellness-config/catalog.yaml", Options{})
	require.ErrorIs(t, err, engine.ErrInvalidCatalog)
	assert.Empty(t, store.objects)
}

func TestPublishToLocalDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "catalog.yaml")
	_, err := Publish(context.Background(), writeFile(t, testCatalog), dest, Options{})
	require.NoError(t, err)

	catalog, err := Load(context.Background(), dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, "store-1", catalog.Version())
}
