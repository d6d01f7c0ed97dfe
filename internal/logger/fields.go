package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the pull engine,
// object store backends, and remote server. Use these consistently so
// log lines can be aggregated and queried across components.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Pull / remote identity
	KeyRemote     = "remote"
	KeyBaseURI    = "base_uri"
	KeyRef        = "ref"
	KeyCommit     = "commit"
	KeyTxID       = "tx_id"
	KeyResuming   = "resuming"
	KeyIdleSerial = "idle_serial"

	// Object identity
	KeyDigest     = "digest"
	KeyObjectType = "object_type"
	KeyFilename   = "filename"

	// Counters / progress
	KeyRequested   = "requested"
	KeyFetched     = "fetched"
	KeyScanned     = "scanned"
	KeyOutstanding = "outstanding"
	KeyBytes       = "bytes"

	// I/O and storage backend
	KeyURL       = "url"
	KeyAttempt   = "attempt"
	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyKey       = "key"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
	KeyDepth      = "recursion_depth"
)

// TraceID returns a slog.Attr for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Remote returns a slog.Attr for the remote name.
func Remote(name string) slog.Attr { return slog.String(KeyRemote, name) }

// Digest returns a slog.Attr for an object digest, printed in hex form.
func Digest(hex string) slog.Attr { return slog.String(KeyDigest, hex) }

// ObjectType returns a slog.Attr for an object type name.
func ObjectType(t string) slog.Attr { return slog.String(KeyObjectType, t) }

// Filename returns a slog.Attr for a tree entry name.
func Filename(name string) slog.Attr { return slog.String(KeyFilename, name) }

// TxID returns a slog.Attr for the transaction identifier.
func TxID(id string) slog.Attr { return slog.String(KeyTxID, id) }

// URL returns a slog.Attr for a request URL.
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }

// Bytes returns a slog.Attr for a byte count.
func Bytes(n uint64) slog.Attr { return slog.Uint64(KeyBytes, n) }

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Depth returns a slog.Attr for a recursion depth.
func Depth(d int) slog.Attr { return slog.Int(KeyDepth, d) }
