// Package pulltrace adds pull-domain OpenTelemetry spans on top of
// internal/telemetry's generic StartSpan/attribute helpers, the same
// layering pattern used for other domains (StartContentSpan,
// StartCacheSpan, StartMetadataSpan in internal/telemetry/tracer.go):
// a thin "pull.<operation>" span constructor plus typed attribute
// builders, so call sites read like pulltrace.StartPullSpan(ctx, remote)
// instead of hand-assembling attribute.KeyValue slices inline. pkg/pull
// starts one span per Pull(); StartScanSpan and StartFetchSpan have no
// call sites.
package pulltrace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/ostreesync/internal/telemetry"
	"github.com/marmos91/ostreesync/pkg/objectname"
)

const (
	attrRemote     = "ostreesync.remote"
	attrObjectType = "ostreesync.object_type"
	attrDigest     = "ostreesync.digest"
	attrDepth      = "ostreesync.depth"
)

// Remote returns an attribute for the remote name a pull is running against.
func Remote(name string) attribute.KeyValue { return attribute.String(attrRemote, name) }

// Object returns the attribute pair identifying an ObjectName.
func Object(name objectname.ObjectName) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(attrObjectType, name.Type.String()),
		attribute.String(attrDigest, string(name.Digest)),
	}
}

// Depth returns an attribute for a scan/fetch's recursion depth.
func Depth(depth int) attribute.KeyValue { return attribute.Int(attrDepth, depth) }

// StartPullSpan starts the top-level span covering one Pull() call.
func StartPullSpan(ctx context.Context, remoteName string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, "pull.run", trace.WithAttributes(Remote(remoteName)))
}

// StartScanSpan starts a span around one ScanWorker visit to name.
func StartScanSpan(ctx context.Context, name objectname.ObjectName, depth int) (context.Context, trace.Span) {
	attrs := append(Object(name), Depth(depth))
	return telemetry.StartSpan(ctx, "pull.scan", trace.WithAttributes(attrs...))
}

// StartFetchSpan starts a span around one Engine fetch+write of name.
func StartFetchSpan(ctx context.Context, name objectname.ObjectName, depth int) (context.Context, trace.Span) {
	attrs := append(Object(name), Depth(depth))
	return telemetry.StartSpan(ctx, "pull.fetch", trace.WithAttributes(attrs...))
}

// RecordError forwards to telemetry.RecordError, kept here so call sites
// only need to import one package for the full span lifecycle.
func RecordError(ctx context.Context, err error) {
	telemetry.RecordError(ctx, err)
}
