package blueprint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"uxy/pkg/s3"
)

func sampleBlueprint() *Blueprint {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bp := New("demo-bot", "us-east-1")
	bp.Stage = "dev"
	bp.DeploymentCount = 2
	bp.Checksums = map[string]string{"uxy.json": "aa", "src/handler.py": "bb"}
	bp.Description = "A demo bot"
	bp.ChatbotMenu = []any{map[string]any{"locale": "default"}}
	bp.ChatbotURLWhitelist = []string{"https://example.com"}
	bp.LambdaName = "demo-bot-uxy-app-dev"
	bp.LastDeploymentID = "9b2c1f7e-4a1d-4c8e-8f0e-0d6b0c7e1a11"
	bp.LastDeployedAt = &at
	return bp
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), ".uxy", "blueprint.yaml"))
	require.NoError(t, err)

	want := sampleBlueprint()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, "demo-bot")
	require.NoError(t, err)
	require.Equal(t, want.Checksums, got.Checksums)
	require.Equal(t, want.DeploymentCount, got.DeploymentCount)
	require.Equal(t, want.ChatbotURLWhitelist, got.ChatbotURLWhitelist)
	require.Equal(t, want.LastDeployedAt.Unix(), got.LastDeployedAt.Unix())
	require.Equal(t, "demo-bot-uxy-app-dev", got.LambdaName)
}

func TestFileStoreMissing(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "blueprint.yaml"))
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "demo-bot")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsForeignBlueprint(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "blueprint.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sampleBlueprint()))

	_, err = store.Load(ctx, "other-bot")
	require.Error(t, err)
}

func TestSaveRejectsNegativeCount(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "blueprint.yaml"))
	require.NoError(t, err)

	bp := sampleBlueprint()
	bp.DeploymentCount = -1
	require.Error(t, store.Save(context.Background(), bp))
}

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", s3.ErrNotFound, bucket, key)
	}
	return data, nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if int64(buf.Len()) != size {
		return fmt.Errorf("size mismatch: %d != %d", buf.Len(), size)
	}
	m.objects[bucket+"/"+key] = buf.Bytes()
	return nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := &memoryObjects{objects: map[string][]byte{}}
	store, err := NewS3Store(objects, "state", "demo-bot/blueprint.json")
	require.NoError(t, err)

	_, err = store.Load(ctx, "demo-bot")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sampleBlueprint()))
	got, err := store.Load(ctx, "demo-bot")
	require.NoError(t, err)
	require.Equal(t, 2, got.DeploymentCount)
	require.Equal(t, "aa", got.Checksums["uxy.json"])
}

func TestOpenSelectsBackend(t *testing.T) {
	root := t.TempDir()

	store, err := Open(context.Background(), "file://.uxy/blueprint.yaml", root)
	require.NoError(t, err)
	fileStore, ok := store.(*FileStore)
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, ".uxy", "blueprint.yaml"), fileStore.Path())

	_, err = Open(context.Background(), "ftp://example.com/blueprint", root)
	require.Error(t, err)

	_, err = Open(context.Background(), "s3://bucket-only", root)
	require.Error(t, err)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://state/apps/demo.json")
	require.NoError(t, err)
	require.Equal(t, "state", bucket)
	require.Equal(t, "apps/demo.json", key)

	_, _, err = parseS3URL("s3:///key")
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	original := sampleBlueprint()
	clone := original.Clone()

	clone.Checksums["uxy.json"] = "changed"
	clone.ChatbotURLWhitelist[0] = "https://changed.example"
	clone.ChatbotMenu.([]any)[0].(map[string]any)["locale"] = "fr_FR"

	require.Equal(t, "aa", original.Checksums["uxy.json"])
	require.Equal(t, "https://example.com", original.ChatbotURLWhitelist[0])
	require.Equal(t, "default", original.ChatbotMenu.([]any)[0].(map[string]any)["locale"])
}

func TestFirstDeployment(t *testing.T) {
	require.True(t, New("demo-bot", "us-east-1").FirstDeployment())
	require.False(t, sampleBlueprint().FirstDeployment())
}
