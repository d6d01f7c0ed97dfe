package pull

import (
	"context"
	"strings"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/pkg/fetcher"
	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// staticDeltaSuperblockPath is the documented location of a static delta
// descriptor, relative to the remote's base URI. Decoding one is out of
// scope (see pullerrors.ErrDeltaNotSupported); Discover only checks for
// its presence so a pull can log it and fall back to the object-by-object
// path rather than silently ignoring it.
const staticDeltaSuperblockPath = "/static-deltas/superblock"

// DiscoverRequest names what a pull should fetch: an explicit set of refs
// and/or bare digests, or none at all (meaning "use the remote's
// configured branches, or failing that, everything in /refs/summary").
type DiscoverRequest struct {
	RemoteName string
	Names      []string
}

// DiscoverResult is what discovery resolves before the transfer pipeline
// starts: the remote's base URI and trust settings, and the concrete set
// of commit digests to scan, paired with whatever ref name each was
// reached through (empty for a bare digest pull).
type DiscoverResult struct {
	BaseURI       string
	GPGVerify     bool
	TLSPermissive bool
	Commits       []objectname.Digest
	ResolvedRefs  map[string]objectname.Digest
}

// Discover resolves what a pull should fetch: read the remote's
// locally-configured section (parent-inherit, via ObjectStore.Config),
// fetch and validate
// <base>/config's core.mode, then resolve the requested refs or digests
// against /refs/heads/<ref> (or /refs/summary, if nothing was requested
// and no branches are configured).
func Discover(ctx context.Context, store objectstore.ObjectStore, remoteFetch fetcher.ObjectFetcher, req DiscoverRequest, activity *Activity) (*DiscoverResult, error) {
	cfg, err := store.Config(ctx, req.RemoteName)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, pullerrors.NewConfigError(req.RemoteName, "remote %q has no url configured", req.RemoteName)
	}

	activity.Set(cfg.URL + "/config")
	configText, err := remoteFetch.FetchText(ctx, "/config")
	if err != nil {
		return nil, err
	}
	mode, err := parseCoreMode(configText)
	if err != nil {
		return nil, err
	}
	if mode != "archive-z2" {
		return nil, pullerrors.NewConfigError(req.RemoteName, "unsupported remote mode %q: only archive-z2 is supported", mode)
	}

	result := &DiscoverResult{
		BaseURI:       cfg.URL,
		GPGVerify:     cfg.GPGVerify,
		TLSPermissive: cfg.TLSPermissive,
		ResolvedRefs:  make(map[string]objectname.Digest),
	}

	if err := checkStaticDelta(ctx, remoteFetch); err != nil {
		return nil, err
	}

	names := req.Names
	if len(names) == 0 {
		names = cfg.Branches
	}

	if len(names) == 0 {
		activity.Set(cfg.URL + "/refs/summary")
		summary, err := remoteFetch.FetchText(ctx, "/refs/summary")
		if err != nil {
			return nil, err
		}
		refs, err := parseRefsSummary(summary)
		if err != nil {
			return nil, err
		}
		for ref, digest := range refs {
			result.ResolvedRefs[ref] = digest
			result.Commits = append(result.Commits, digest)
		}
		activity.Clear()
		return result, nil
	}

	for _, name := range names {
		if objectname.ValidateDigest(name) == nil {
			result.Commits = append(result.Commits, objectname.Digest(name))
			continue
		}
		if err := objectname.ValidateRef(name); err != nil {
			return nil, pullerrors.NewParseError(name, "%v", err)
		}

		activity.Set(cfg.URL + "/refs/heads/" + name)
		text, err := remoteFetch.FetchText(ctx, "/refs/heads/"+name)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if err := objectname.ValidateDigest(text); err != nil {
			return nil, pullerrors.NewParseError(name, "ref %q resolved to invalid digest %q", name, text)
		}

		digest := objectname.Digest(text)
		result.ResolvedRefs[name] = digest
		result.Commits = append(result.Commits, digest)
	}

	activity.Clear()
	return result, nil
}

// checkStaticDelta probes for a static delta descriptor at the
// documented path. Its presence is not an error: it is logged and the
// pull falls back to the object-by-object path, since decoding one is
// out of scope (pullerrors.ErrDeltaNotSupported). Any fetch failure
// other than "not found" propagates, since it means the remote is
// unreachable rather than simply lacking a delta.
func checkStaticDelta(ctx context.Context, remoteFetch fetcher.ObjectFetcher) error {
	_, err := remoteFetch.FetchText(ctx, staticDeltaSuperblockPath)
	if err == nil {
		declined := decodeStaticDelta(nil)
		logger.InfoCtx(ctx, "static delta descriptor present, declining to decode and falling back to object-by-object pull",
			"path", staticDeltaSuperblockPath, "reason", declined)
		return nil
	}
	if pullerrors.IsNotFound(err) {
		return nil
	}
	return err
}

// decodeStaticDelta exists only to give pullerrors.ErrDeltaNotSupported a
// production call site: a static delta descriptor is never decoded, by
// design, so any caller that reaches this function gets a clear rejection
// instead of the decode silently being skipped or attempted unsafely.
func decodeStaticDelta([]byte) error {
	return pullerrors.ErrDeltaNotSupported
}

// parseCoreMode reads core.mode out of a minimal "[section]\nkey=value"
// config text, the same shape <base>/config uses on the wire.
func parseCoreMode(text string) (string, error) {
	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "core" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "mode" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", pullerrors.NewParseError("/config", "missing [core] mode")
}

// parseRefsSummary parses "<digest> <ref>" lines, one per line, the
// format /refs/summary serves. The digest and ref are separated by
// exactly one space, matching the reference implementation's
// strchr(line, ' ')-based split; a line with a run of more than one
// space between the two fields is rejected as malformed rather than
// silently tolerated.
func parseRefsSummary(text string) (map[string]objectname.Digest, error) {
	refs := make(map[string]objectname.Digest)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		digestText, ref, ok := strings.Cut(line, " ")
		if !ok || digestText == "" || ref == "" || strings.Contains(ref, " ") {
			return nil, pullerrors.NewParseError("/refs/summary", "malformed line %q", line)
		}
		if err := objectname.ValidateDigest(digestText); err != nil {
			return nil, pullerrors.NewParseError("/refs/summary", "invalid digest %q for ref %q", digestText, ref)
		}
		if err := objectname.ValidateRef(ref); err != nil {
			return nil, pullerrors.NewParseError("/refs/summary", "%v", err)
		}
		refs[ref] = objectname.Digest(digestText)
	}
	return refs, nil
}
