package pull

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/ostreesync/internal/bytesize"
	"github.com/marmos91/ostreesync/internal/logger"
)

// Activity holds the URI of whatever blocking synchronous fetch (ref
// resolution, /refs/summary, /config) is currently in flight during
// discovery, for the progress reporter's priority-1 line. Discover sets it
// before each such fetch and clears it once resolution is done; nil
// (the zero value) is a valid no-op Activity for callers that don't care.
type Activity struct {
	uri atomic.Pointer[string]
}

// Set records the URI of a blocking fetch currently in flight.
func (a *Activity) Set(uri string) {
	if a == nil {
		return
	}
	a.uri.Store(&uri)
}

// Clear records that no blocking fetch is in flight.
func (a *Activity) Clear() {
	if a == nil {
		return
	}
	a.uri.Store(nil)
}

func (a *Activity) get() (string, bool) {
	if a == nil {
		return "", false
	}
	p := a.uri.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// Snapshot is one tick's worth of progress state, in the shape the
// priority rules below consume. Exported so pkg/pullmetrics can observe the same
// values the text renderer does, without either package depending on the
// other's internals.
type Snapshot struct {
	RequestingURI    string
	RequestingActive bool

	OutstandingFetches uint64
	OutstandingWrites  uint64

	ScanIdle         bool
	ScannedMeta      uint64
	RequestedMeta    uint64
	FetchedMeta      uint64
	FetchedContent   uint64
	BytesTransferred uint64
}

// Line renders one progress line, evaluating the five priority rules in order.
func (s Snapshot) Line() string {
	switch {
	case s.RequestingActive:
		return fmt.Sprintf("Requesting %s", s.RequestingURI)
	case s.OutstandingFetches > 0:
		requested := s.FetchedMeta + s.FetchedContent + s.OutstandingFetches
		pct := 0
		if requested > 0 {
			pct = int(100 * (s.FetchedMeta + s.FetchedContent) / requested)
		}
		return fmt.Sprintf("Receiving objects: %d%% (%d/%d) %s",
			pct, s.FetchedMeta+s.FetchedContent, requested, bytesize.ByteSize(s.BytesTransferred).String())
	case s.OutstandingWrites > 0:
		return fmt.Sprintf("Writing objects: %d", s.OutstandingWrites)
	case !s.ScanIdle:
		return fmt.Sprintf("Scanning metadata: %d", s.ScannedMeta)
	default:
		return "Idle"
	}
}

// MetricsSink receives a Snapshot on every reporter tick. pkg/pullmetrics
// implements this to mirror progress into Prometheus gauges; it is
// optional so pkg/pull never imports pkg/pullmetrics (the dependency runs
// the other way, avoiding a cycle).
type MetricsSink interface {
	Observe(Snapshot)
}

// Reporter is the 1 Hz progress timer, in the common
// background-worker shape: a ticker goroutine with a stopCh/doneCh pair and a
// sync.Once-guarded Stop, rather than a context passed down from the
// caller, so a reporter can be stopped deterministically regardless of
// which side (engine success, engine error, panic recovery) ends the pull.
type Reporter struct {
	engine   *Engine
	worker   *ScanWorker
	activity *Activity

	interval time.Duration
	sink     MetricsSink

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewReporter builds a Reporter at a 1 Hz cadence.
func NewReporter(engine *Engine, worker *ScanWorker, activity *Activity) *Reporter {
	return &Reporter{
		engine:   engine,
		worker:   worker,
		activity: activity,
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetSink wires a MetricsSink to observe every Snapshot alongside the text
// line. Must be called before Start.
func (r *Reporter) SetSink(sink MetricsSink) { r.sink = sink }

// Start begins the background ticker. Safe to call at most once; later
// calls are no-ops.
func (r *Reporter) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Stop ends the ticker and waits for it to exit. Safe to call multiple
// times or without a matching Start.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}

func (r *Reporter) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reporter) tick() {
	snap := r.snapshot()
	logger.Info(snap.Line())
	if r.sink != nil {
		r.sink.Observe(snap)
	}
}

func (r *Reporter) snapshot() Snapshot {
	c := r.engine.Counters()
	uri, requesting := r.activity.get()

	return Snapshot{
		RequestingURI:      uri,
		RequestingActive:   requesting,
		OutstandingFetches: c.OutstandingMetadataFetches.Load() + c.OutstandingContentFetches.Load(),
		OutstandingWrites:  c.OutstandingMetadataWrites.Load() + c.OutstandingContentWrites.Load(),
		ScanIdle:           r.engine.ScanIdle(),
		ScannedMeta:        r.worker.ScannedCount(),
		RequestedMeta:      c.RequestedMetadata.Load(),
		FetchedMeta:        c.FetchedMetadata.Load(),
		FetchedContent:     c.FetchedContent.Load(),
		BytesTransferred:   c.BytesTransferred.Load(),
	}
}
