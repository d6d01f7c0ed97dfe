// Package fetcher defines the ObjectFetcher abstraction: an HTTP client
// that issues GETs against a remote's base URI, supports resumable
// partial downloads to a temp path, and reports bytes transferred. The
// pull engine treats the concrete transport as an external collaborator;
// httpfetcher.go is the in-repo reference implementation used to make the
// engine runnable end-to-end.
package fetcher

import (
	"context"
)

// Download is the result of a successful object fetch: the response body
// has been written in full to TempPath, and Bytes records how many bytes
// were written on this call (which, for a resumed download, is only the
// portion fetched this time — the caller already accounted for the rest).
type Download struct {
	TempPath string
	Bytes    uint64
	Resumed  bool
}

// ObjectFetcher issues GETs to a base URI with path suffixes. Every
// method call is expected to be driven from its own goroutine by the
// caller (the pull engine never blocks its own loop on a fetch); the
// interface itself stays synchronous, matching net/http's blocking
// client and leaving the async wrapping to the caller.
type ObjectFetcher interface {
	// FetchObject downloads <base>/<path> into a fresh temp file (or
	// resumes one at resumeFrom, if non-empty and non-zero-length). A 404
	// response is reported as a *pullerrors.StoreError with ErrNotFound,
	// never as a generic error, so callers can apply the
	// detached-metadata-404-is-not-fatal rule.
	FetchObject(ctx context.Context, path string, resumeFrom string) (*Download, error)

	// FetchText downloads <base>/<path> and returns the full response
	// body decoded as trimmed UTF-8 text. Used for the small
	// control-plane fetches (/config, /refs/heads/<ref>, /refs/summary)
	// that are read entirely into memory rather than streamed to disk.
	FetchText(ctx context.Context, path string) (string, error)
}
