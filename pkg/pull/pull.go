// Package pull implements the content-addressed pull/sync engine: a
// two-goroutine pipeline (ScanWorker reading the local store, Engine
// writing to it) connected by bounded WorkQueues, with a two-phase idle
// handshake deciding when both sides have truly run out of work.
package pull

import (
	"context"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/pkg/fetcher"
	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pulltrace"
)

// defaultQueueCapacity bounds scan_queue/fetch_queue. Unlike a
// worker-pool-sized transfer queue, a single scan goroutine and a
// single engine goroutine only ever need
// enough headroom to keep both sides from lockstepping on every message.
const defaultQueueCapacity = 256

// Request is the top-level pull() input: which
// local repository (via store) to pull into, which remote to read it
// from (via fetch, already pointed at the remote's base URI), which refs
// or digests to fetch, and the optional commit-signature predicate.
type Request struct {
	RemoteName string
	Names      []string
	Verify     CommitVerifier

	// Sink, if set, observes every progress tick alongside the text
	// reporter — wired by callers that expose a Prometheus /metrics
	// endpoint (see pkg/pullmetrics).
	Sink MetricsSink
}

// Result reports what a successful pull actually did: the refs it moved
// and how much was scanned/fetched, for the caller to log or display.
type Result struct {
	ResolvedRefs  map[string]objectname.Digest
	ScannedCount  uint64
	FetchedMeta   uint64
	FetchedContent uint64
	BytesTransferred uint64
}

// Pull runs one full pull() cycle: discover refs, open a
// transaction, seed the scan with every discovered commit, run the
// ScanWorker/Engine pipeline to quiescence, then commit the ref updates
// on success or release the transaction (keeping any objects already
// written, so a retried pull resumes) on failure.
func Pull(ctx context.Context, store objectstore.ObjectStore, remoteFetch fetcher.ObjectFetcher, req Request) (*Result, error) {
	ctx, span := pulltrace.StartPullSpan(ctx, req.RemoteName)
	defer span.End()

	activity := &Activity{}

	discovered, err := Discover(ctx, store, remoteFetch, DiscoverRequest{RemoteName: req.RemoteName, Names: req.Names}, activity)
	if err != nil {
		pulltrace.RecordError(ctx, err)
		return nil, err
	}

	txn, resuming, err := store.TransactionBegin(ctx)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "pull starting",
		logger.Remote(req.RemoteName),
		"resuming", resuming,
		"commits", len(discovered.Commits))

	scanQueue := NewWorkQueue[ScanMsg](defaultQueueCapacity)
	fetchQueue := NewWorkQueue[FetchMsg](defaultQueueCapacity)

	engine := NewEngine(store, remoteFetch, txn, scanQueue, fetchQueue)
	worker := NewScanWorker(store, scanQueue, fetchQueue, resuming, discovered.GPGVerify, req.Verify, engine.ScanIdleHandler())

	reporter := NewReporter(engine, worker, activity)
	if req.Sink != nil {
		reporter.SetSink(req.Sink)
	}
	reporter.Start()
	defer reporter.Stop()

	var workerDone = make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	for _, digest := range discovered.Commits {
		name := objectname.ObjectName{Digest: digest, Type: objectname.ObjectTypeCommit}
		if err := scanQueue.Push(ctx, Scan(name, 0)); err != nil {
			_ = txn.Release(ctx)
			return nil, err
		}
	}

	runErr := engine.Run(ctx)
	<-workerDone

	if runErr != nil {
		pulltrace.RecordError(ctx, runErr)
		_ = txn.Release(ctx)
		return nil, runErr
	}

	for ref, digest := range discovered.ResolvedRefs {
		if err := txn.SetRef(ctx, req.RemoteName, ref, digest); err != nil {
			_ = txn.Release(ctx)
			return nil, err
		}
	}

	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}

	counters := engine.Counters()
	logger.InfoCtx(ctx, "pull complete",
		logger.Remote(req.RemoteName),
		logger.Bytes(counters.BytesTransferred.Load()))

	return &Result{
		ResolvedRefs:     discovered.ResolvedRefs,
		ScannedCount:     worker.ScannedCount(),
		FetchedMeta:      counters.FetchedMetadata.Load(),
		FetchedContent:   counters.FetchedContent.Load(),
		BytesTransferred: counters.BytesTransferred.Load(),
	}, nil
}
