package modelfiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocalDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "onnx"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "onnx", "model.onnx"), []byte("abc"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte("{}"), 0o600))

	r := NewResolver(t.TempDir())
	r.HubURL = "http://127.0.0.1:1" // must not be contacted

	metas, err := r.Resolve(context.Background(), dir, "org/repo", "onnx/model.onnx", "tokenizer.json")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "model.onnx", metas[0].Name)
	assert.EqualValues(t, 3, metas[0].Size)
}

func TestResolveLocalDirMissingFile(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Resolve(context.Background(), t.TempDir(), "org/repo", "model.onnx")
	assert.Error(t, err)
}

func TestResolveDownloadsOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/org/repo/resolve/main/onnx/model.onnx", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	cache := t.TempDir()
	r := NewResolver(cache)
	r.HubURL = srv.URL
	r.Token = "tok"

	metas, err := r.Resolve(context.Background(), filepath.Join(cache, "absent"), "org/repo", "onnx/model.onnx")
	require.NoError(t, err)
	data, err := os.ReadFile(metas[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	_, err = r.Resolve(context.Background(), "", "org/repo", "onnx/model.onnx")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "second resolve uses the cached file")
}

func TestResolveDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewResolver(t.TempDir())
	r.HubURL = srv.URL
	_, err := r.Resolve(context.Background(), "", "org/repo", "phrases.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, ok := r.ResolveOptional(context.Background(), "", "org/repo", "phrases.json")
	assert.False(t, ok)
}

func TestResolveNoRepo(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Resolve(context.Background(), "/does/not/exist", "", "model.onnx")
	assert.Error(t, err)
}
