package fetcher_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ostreesync/pkg/fetcher"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

func TestFetchTextReturnsTrimmedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "  deadbeefdeadbeef  ")
	}))
	defer server.Close()

	f := fetcher.New(server.URL, false)
	text, err := f.FetchText(t.Context(), "/refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeef", text)
}

func TestFetchTextNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := fetcher.New(server.URL, false)
	_, err := f.FetchText(t.Context(), "/objects/ab/cdef.commit.meta")
	require.Error(t, err)
	assert.True(t, pullerrors.IsNotFound(err))
}

func TestFetchObjectWritesTempFile(t *testing.T) {
	t.Parallel()

	content := "canonical commit bytes"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	f := fetcher.New(server.URL, false, fetcher.WithTempDir(t.TempDir()))
	dl, err := f.FetchObject(t.Context(), "/objects/ab/cdef.commit", "")
	require.NoError(t, err)
	defer os.Remove(dl.TempPath)

	assert.Equal(t, uint64(len(content)), dl.Bytes)
	assert.False(t, dl.Resumed)

	got, err := os.ReadFile(dl.TempPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestFetchObjectResumesFromRange(t *testing.T) {
	t.Parallel()

	full := "0123456789abcdef"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			fmt.Fprint(w, full)
			return
		}
		var start int
		_, _ = fmt.Sscanf(rangeHeader, "bytes=%d-", &start)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(full)-1, len(full)))
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, full[start:])
	}))
	defer server.Close()

	dir := t.TempDir()
	partial := dir + "/resume.tmp"
	require.NoError(t, os.WriteFile(partial, []byte(full[:4]), 0o644))

	f := fetcher.New(server.URL, false, fetcher.WithTempDir(dir))
	dl, err := f.FetchObject(t.Context(), "/objects/00/11.file", partial)
	require.NoError(t, err)

	assert.True(t, dl.Resumed)
	assert.Equal(t, uint64(len(full)-4), dl.Bytes)

	got, err := os.ReadFile(dl.TempPath)
	require.NoError(t, err)
	assert.Equal(t, full, string(got))
}

func TestFetchObjectNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := fetcher.New(server.URL, false, fetcher.WithTempDir(t.TempDir()))
	_, err := f.FetchObject(t.Context(), "/objects/ab/cdef.commit.meta", "")
	require.Error(t, err)
	assert.True(t, pullerrors.IsNotFound(err))
}

func TestFetchObjectTLSPermissiveAcceptsSelfSignedCert(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	strict := fetcher.New(server.URL, false, fetcher.WithTempDir(t.TempDir()))
	_, err := strict.FetchObject(t.Context(), "/objects/ab/cd.commit", "")
	require.Error(t, err, "a non-permissive fetcher must reject the self-signed cert")

	permissive := fetcher.New(server.URL, true, fetcher.WithTempDir(t.TempDir()))
	dl, err := permissive.FetchObject(t.Context(), "/objects/ab/cd.commit", "")
	require.NoError(t, err)
	defer os.Remove(dl.TempPath)

	got, err := os.ReadFile(dl.TempPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "ok"))
}
