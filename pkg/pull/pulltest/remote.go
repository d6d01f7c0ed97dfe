// Package pulltest provides an in-memory ObjectFetcher + repo-builder
// pair used to drive the pull engine's tests without a real HTTP server,
// grounded on the "conformance suite fed to every backend" idiom of
// pkg/metadata/storetest — here inverted into "one fake remote fed to
// every engine test".
package pulltest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/marmos91/ostreesync/pkg/fetcher"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// FakeRemote is an in-memory implementation of fetcher.ObjectFetcher. Each
// path is either registered as text (config, refs) or as an object blob
// (commits, trees, file content, detached metadata); an unregistered path
// reports 404, matching a real archive-z2 server's behavior for an
// absent loose object.
type FakeRemote struct {
	mu      sync.Mutex
	text    map[string]string
	objects map[string][]byte
	tempDir string

	// Hits counts FetchObject/FetchText calls per path, for
	// NO-DOUBLE-FETCH assertions in engine tests.
	hits map[string]int
}

// NewFakeRemote returns an empty remote; register content with SetText/
// SetObject before running a pull against it.
func NewFakeRemote(tempDir string) *FakeRemote {
	return &FakeRemote{
		text:    make(map[string]string),
		objects: make(map[string][]byte),
		hits:    make(map[string]int),
		tempDir: tempDir,
	}
}

// SetText registers a text response (used for /config, /refs/heads/<ref>,
// /refs/summary).
func (r *FakeRemote) SetText(path, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[path] = content
}

// SetObject registers an object blob response (used for /objects/<path>
// and its .meta sibling).
func (r *FakeRemote) SetObject(path string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[path] = content
}

// Hits reports how many times path was fetched (FetchText + FetchObject
// combined), for NO-DOUBLE-FETCH assertions.
func (r *FakeRemote) Hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func (r *FakeRemote) FetchText(_ context.Context, path string) (string, error) {
	r.mu.Lock()
	content, ok := r.text[path]
	r.hits[path]++
	r.mu.Unlock()

	if !ok {
		return "", pullerrors.NewNotFoundError(path)
	}
	return content, nil
}

func (r *FakeRemote) FetchObject(_ context.Context, path string, resumeFrom string) (*fetcher.Download, error) {
	r.mu.Lock()
	content, ok := r.objects[path]
	r.hits[path]++
	r.mu.Unlock()

	if !ok {
		return nil, pullerrors.NewNotFoundError(path)
	}

	tempPath := resumeFrom
	if tempPath == "" {
		tmp, err := os.CreateTemp(r.tempDir, "pulltest-*")
		if err != nil {
			return nil, pullerrors.NewStoreError(path, err)
		}
		tempPath = tmp.Name()
		_ = tmp.Close()
	}
	if err := os.WriteFile(tempPath, content, 0o644); err != nil {
		return nil, pullerrors.NewStoreError(path, err)
	}

	return &fetcher.Download{TempPath: tempPath, Bytes: uint64(len(content))}, nil
}

var _ fetcher.ObjectFetcher = (*FakeRemote)(nil)

// ObjectPath formats the /objects/<relative_object_path> suffix FakeRemote
// keys objects under, mirroring the real path fetcher.HTTPFetcher would
// request against a real archive-z2 server.
func ObjectPath(relative string) string { return "/objects/" + relative }

// MetaPath formats the /objects/<loose_path>.meta suffix for detached
// commit metadata.
func MetaPath(relative string) string { return fmt.Sprintf("/objects/%s.meta", relative) }
