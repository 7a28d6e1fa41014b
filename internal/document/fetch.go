package document

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
)

// DefaultDocsDir is where downloaded documents are kept.
const DefaultDocsDir = "./docs"

// Fetcher downloads remote documents once and keeps them under a local
// directory, reusing the local copy on later calls.
type Fetcher struct {
	dir    string
	client *resty.Client
}

// NewFetcher returns a Fetcher storing files under dir.
func NewFetcher(dir string, timeout time.Duration) *Fetcher {
	if dir == "" {
		dir = DefaultDocsDir
	}
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Fetcher{dir: dir, client: client}
}

// LocalPath maps rawURL to its location under the docs dir:
// <dir>/<host>/<url path>, with the query folded into the file name.
func (f *Fetcher) LocalPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid url %q: %v", rawURL, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.NewInvalidRequest(fmt.Sprintf("unsupported url scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return "", errors.NewInvalidRequest(fmt.Sprintf("url %q has no host", rawURL))
	}

	p := path.Clean("/" + u.Path)
	if p == "/" || strings.HasSuffix(u.Path, "/") {
		p = path.Join(p, "index")
	}
	if u.RawQuery != "" {
		p += "-" + fingerprint.Of(u.RawQuery)[:12]
	}
	if name := u.Hostname(); name == "." || name == ".." || strings.ContainsAny(u.Host, `/\`) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("url %q has an invalid host", rawURL))
	}
	host := strings.ReplaceAll(u.Host, ":", "_")
	local := filepath.Join(f.dir, host, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	if rel, err := filepath.Rel(f.dir, local); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("url %q maps outside the docs dir", rawURL))
	}
	return local, nil
}

// Fetch returns the local path of rawURL, downloading it first if needed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	local, err := f.LocalPath(rawURL)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(local); err == nil && fi.Mode().IsRegular() {
		return local, nil
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return "", errors.NewCollaboratorFailure("download", err)
	}
	if resp.IsError() {
		return "", errors.NewCollaboratorFailure("download", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode()))
	}

	if err := writeFileAtomic(local, resp.Body()); err != nil {
		return "", errors.NewInternal(err)
	}
	return local, nil
}

// FetchPDF downloads a PDF and loads it.
func (f *Fetcher) FetchPDF(ctx context.Context, rawURL string) (*Document, error) {
	local, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return FromPDF(local)
}

func writeFileAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "doc-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
