// Package modelfiles locates model assets on disk and fetches missing ones
// from the Hugging Face hub.
package modelfiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultHubURL is the Hugging Face hub endpoint.
const DefaultHubURL = "https://huggingface.co"

// FileMeta holds metadata about a resolved model file.
type FileMeta struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// ExtractFileMeta stats path.
func ExtractFileMeta(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	if info.IsDir() {
		return FileMeta{}, fmt.Errorf("%s is a directory", path)
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Resolver finds files in a local directory or downloads them from a hub repo.
type Resolver struct {
	HubURL     string
	Token      string // optional bearer token (HF_TOKEN)
	CacheDir   string
	HTTPClient *http.Client
}

func NewResolver(cacheDir string) *Resolver {
	return &Resolver{
		HubURL:     DefaultHubURL,
		Token:      os.Getenv("HF_TOKEN"),
		CacheDir:   cacheDir,
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Resolve returns metadata for each file. Files are taken from localDir when
// it exists; otherwise each is downloaded from repo into CacheDir/repo,
// reusing earlier downloads.
func (r *Resolver) Resolve(ctx context.Context, localDir, repo string, files ...string) ([]FileMeta, error) {
	if localDir != "" {
		if info, err := os.Stat(localDir); err == nil && info.IsDir() {
			return statAll(localDir, files)
		}
	}
	if repo == "" {
		return nil, fmt.Errorf("model directory %q not found and no hub repo configured", localDir)
	}

	dir := filepath.Join(r.CacheDir, filepath.FromSlash(repo))
	out := make([]FileMeta, 0, len(files))
	for _, name := range files {
		dest := filepath.Join(dir, filepath.FromSlash(name))
		if meta, err := ExtractFileMeta(dest); err == nil {
			out = append(out, meta)
			continue
		}
		log.Infof("Downloading %s from %s", name, repo)
		if err := r.download(ctx, repo, name, dest); err != nil {
			return nil, err
		}
		meta, err := ExtractFileMeta(dest)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// ResolveOptional is Resolve for a single file that may legitimately be
// absent. It returns ok=false instead of an error when the file does not exist.
func (r *Resolver) ResolveOptional(ctx context.Context, localDir, repo, file string) (FileMeta, bool) {
	metas, err := r.Resolve(ctx, localDir, repo, file)
	if err != nil {
		log.Infof("Optional model file %s not available: %v", file, err)
		return FileMeta{}, false
	}
	return metas[0], true
}

func statAll(dir string, files []string) ([]FileMeta, error) {
	out := make([]FileMeta, 0, len(files))
	for _, name := range files {
		meta, err := ExtractFileMeta(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return nil, fmt.Errorf("model file %s: %w", name, err)
		}
		out = append(out, meta)
	}
	return out, nil
}

func (r *Resolver) fileURL(repo, name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/resolve/main/%s", strings.TrimRight(r.HubURL, "/"), repo, strings.Join(parts, "/"))
}

func (r *Resolver) download(ctx context.Context, repo, name, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.fileURL(repo, name), nil)
	if err != nil {
		return err
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s/%s: %w", repo, name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s/%s: unexpected status %s", repo, name, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s/%s: %w", repo, name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
