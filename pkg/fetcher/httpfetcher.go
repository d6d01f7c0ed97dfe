package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// HTTPFetcher is the reference ObjectFetcher: a net/http client issuing
// GETs against a single base URI, with HTTP Range support for resuming a
// partially-written temp file.
type HTTPFetcher struct {
	baseURI string
	client  *http.Client
	tempDir string
}

// Option configures an HTTPFetcher at construction time.
type Option func(*HTTPFetcher)

// WithTempDir overrides the directory temp files are created in. Defaults
// to os.TempDir().
func WithTempDir(dir string) Option {
	return func(f *HTTPFetcher) { f.tempDir = dir }
}

// WithTimeout sets the client's per-request timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.client.Timeout = d }
}

// New builds an HTTPFetcher against baseURI. When tlsPermissive is true,
// certificate verification is disabled for this fetcher's requests —
// the local config equivalent of `tls-permissive=true`.
func New(baseURI string, tlsPermissive bool, opts ...Option) *HTTPFetcher {
	transport := &http.Transport{}
	if tlsPermissive {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per remote config
	}

	f := &HTTPFetcher{
		baseURI: strings.TrimSuffix(baseURI, "/"),
		client:  &http.Client{Timeout: 30 * time.Second, Transport: transport},
		tempDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) url(p string) (string, error) {
	u, err := url.Parse(f.baseURI + "/" + strings.TrimPrefix(p, "/"))
	if err != nil {
		return "", pullerrors.NewConfigError(p, "malformed URL: %v", err)
	}
	return u.String(), nil
}

func (f *HTTPFetcher) FetchText(ctx context.Context, p string) (string, error) {
	u, err := f.url(p)
	if err != nil {
		return "", err
	}

	logger.DebugCtx(ctx, "fetching text", logger.URL(u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", pullerrors.NewNetworkError(p, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", pullerrors.ErrCancelledSentinel
		}
		return "", pullerrors.NewNetworkError(p, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", pullerrors.NewNotFoundError(p)
	}
	if resp.StatusCode != http.StatusOK {
		return "", pullerrors.NewNetworkError(p, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pullerrors.NewNetworkError(p, err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (f *HTTPFetcher) FetchObject(ctx context.Context, p string, resumeFrom string) (*Download, error) {
	u, err := f.url(p)
	if err != nil {
		return nil, err
	}

	var offset int64
	if resumeFrom != "" {
		if info, statErr := os.Stat(resumeFrom); statErr == nil {
			offset = info.Size()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, pullerrors.NewNetworkError(p, err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	logger.DebugCtx(ctx, "fetching object", logger.URL(u), logger.Bytes(uint64(offset)))

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pullerrors.ErrCancelledSentinel
		}
		return nil, pullerrors.NewNetworkError(p, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pullerrors.NewNotFoundError(p)
	}

	resumed := resp.StatusCode == http.StatusPartialContent
	if resp.StatusCode != http.StatusOK && !resumed {
		return nil, pullerrors.NewNetworkError(p, fmt.Errorf("unexpected status %s", resp.Status))
	}

	tempPath := resumeFrom
	flags := os.O_WRONLY | os.O_CREATE
	if resumed {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		if tempPath == "" {
			tmp, err := os.CreateTemp(f.tempDir, "ostreesync-*."+path.Base(p))
			if err != nil {
				return nil, pullerrors.NewStoreError(p, err)
			}
			tempPath = tmp.Name()
			_ = tmp.Close()
		}
	}

	out, err := os.OpenFile(tempPath, flags, 0o644)
	if err != nil {
		return nil, pullerrors.NewStoreError(p, err)
	}

	counted := &countingWriter{w: out}
	_, copyErr := io.Copy(counted, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(tempPath)
		return nil, pullerrors.NewNetworkError(p, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return nil, pullerrors.NewStoreError(p, closeErr)
	}

	return &Download{TempPath: tempPath, Bytes: counted.n, Resumed: resumed}, nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

var _ ObjectFetcher = (*HTTPFetcher)(nil)
