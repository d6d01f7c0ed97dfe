package pull

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/pkg/fetcher"
	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// Engine is PullEngine: it owns the local ObjectStore's write
// path and the transaction, dispatches every FetchMsg to a dedicated
// goroutine against the remote, verifies digests on every write, and
// drives the termination handshake,
// pairing a bounded request queue with async completions reported back
// onto a channel the manager's own loop selects on.
type Engine struct {
	store objectstore.ObjectStore
	fetch fetcher.ObjectFetcher
	txn   objectstore.Transaction

	scanQueue  *WorkQueue[ScanMsg]
	fetchQueue *WorkQueue[FetchMsg]

	counters    Counters
	completions chan fetchCompletion

	wg sync.WaitGroup

	mu        sync.Mutex
	idleSerial uint32
	scanIdle   bool
	terminated bool
	firstErr   error
}

type fetchCompletion struct {
	name           objectname.ObjectName
	depth          int
	isDetachedMeta bool
	download       *fetcher.Download
	err            error
}

// NewEngine builds an Engine bound to an already-open transaction. The
// caller owns the transaction's lifecycle: Commit it after Run returns
// nil, Release it otherwise entry,
// destroyed on return").
func NewEngine(
	store objectstore.ObjectStore,
	fetch fetcher.ObjectFetcher,
	txn objectstore.Transaction,
	scanQueue *WorkQueue[ScanMsg],
	fetchQueue *WorkQueue[FetchMsg],
) *Engine {
	return &Engine{
		store:       store,
		fetch:       fetch,
		txn:         txn,
		scanQueue:   scanQueue,
		fetchQueue:  fetchQueue,
		completions: make(chan fetchCompletion, 64),
	}
}

// Counters exposes the live counters for the progress reporter.
func (e *Engine) Counters() *Counters { return &e.counters }

// ScanIdleHandler returns the onError callback ScanWorker should be built
// with, so a scan-side error reaches Engine.Run's termination check the
// same way a fetch-side error does.
func (e *Engine) ScanIdleHandler() func(error) { return e.latch }

// Run is the engine goroutine's event loop. It pushes the initial
// MainIdle(1) probe, then alternates between dispatching FetchMsgs and
// processing fetch/write completions until the termination condition
// is met or ctx is cancelled. On exit, whichever way the loop ended, it
// offers Quit to scan_queue without blocking (dropped if the queue is
// full) and waits for its in-flight fetch goroutines to return; the scan
// goroutine is joined by the caller.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.idleSerial = 1
	e.mu.Unlock()

	if err := e.scanQueue.Push(ctx, ScanMainIdle(1)); err != nil {
		e.latch(err)
	}

	for !e.isTerminated() {
		select {
		case <-ctx.Done():
			e.latch(pullerrors.ErrCancelledSentinel)
		case msg := <-e.fetchQueue.Chan():
			e.handleFetchMsg(ctx, msg)
		case c := <-e.completions:
			e.handleCompletion(ctx, c)
		}
	}

	_ = e.scanQueue.TryPush(ScanQuit())
	e.wg.Wait()

	return e.firstErrorOrNil()
}

func (e *Engine) handleFetchMsg(ctx context.Context, msg FetchMsg) {
	switch msg.Kind {
	case FetchMsgFetch:
		e.dispatchFetch(ctx, msg.Name, msg.Depth, false)
	case FetchMsgFetchDetachedMeta:
		e.dispatchFetch(ctx, msg.Name, msg.Depth, true)
	case FetchMsgMainIdle:
		e.onMainIdle(msg.Serial)
	case FetchMsgScanIdle:
		e.onScanIdle(ctx)
	case FetchMsgQuit:
		e.forceTerminate()
	}
	e.checkTermination()
}

// dispatchFetch spawns the goroutine that issues the actual HTTP request,
// reporting the outcome back onto e.completions so the engine loop stays
// single-threaded for every store write.
func (e *Engine) dispatchFetch(ctx context.Context, name objectname.ObjectName, depth int, isDetachedMeta bool) {
	if isDetachedMeta || name.Type.IsMetadata() {
		inc(&e.counters.OutstandingMetadataFetches)
		inc(&e.counters.RequestedMetadata)
	} else {
		inc(&e.counters.OutstandingContentFetches)
		inc(&e.counters.RequestedContent)
	}

	path := e.objectPath(name, isDetachedMeta)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		dl, err := e.fetch.FetchObject(ctx, path, "")
		select {
		case e.completions <- fetchCompletion{name: name, depth: depth, isDetachedMeta: isDetachedMeta, download: dl, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) objectPath(name objectname.ObjectName, isDetachedMeta bool) string {
	if isDetachedMeta {
		return "/objects/" + objectname.LoosePath(name.Digest, objectname.ObjectTypeCommit) + ".meta"
	}
	return "/objects/" + objectname.RelativeObjectPath(name.Digest, name.Type)
}

func (e *Engine) handleCompletion(ctx context.Context, c fetchCompletion) {
	switch {
	case c.isDetachedMeta:
		e.completeDetachedMeta(ctx, c)
	case c.name.Type.IsMetadata():
		e.completeMetadata(ctx, c)
	default:
		e.completeContent(ctx, c)
	}
	e.checkTermination()
}

// completeDetachedMeta handles the "404 on detached metadata is
// not fatal — fall back to a regular Fetch of the commit" rule.
func (e *Engine) completeDetachedMeta(ctx context.Context, c fetchCompletion) {
	defer dec(&e.counters.OutstandingMetadataFetches)

	if c.err != nil {
		if pullerrors.IsNotFound(c.err) {
			if err := e.fetchQueue.Push(ctx, Fetch(c.name, c.depth)); err != nil {
				e.latch(err)
			}
			return
		}
		e.latch(c.err)
		return
	}
	defer os.Remove(c.download.TempPath)

	raw, err := os.ReadFile(c.download.TempPath)
	if err != nil {
		e.latch(pullerrors.NewStoreError(c.name.String(), err))
		return
	}

	var meta objectstore.DetachedMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		e.latch(pullerrors.NewParseError(c.name.String(), "invalid detached metadata: %v", err))
		return
	}
	if err := e.store.WriteDetachedCommitMetadata(ctx, e.txn, c.name.Digest, meta); err != nil {
		e.latch(err)
		return
	}
	if err := e.fetchQueue.Push(ctx, Fetch(c.name, c.depth)); err != nil {
		e.latch(err)
	}
}

// completeMetadata handles a regular Commit/DirTree/DirMeta fetch: a 404
// here is fatal (unlike the detached-metadata case above).
func (e *Engine) completeMetadata(ctx context.Context, c fetchCompletion) {
	defer dec(&e.counters.OutstandingMetadataFetches)

	if c.err != nil {
		e.latch(c.err)
		return
	}
	defer os.Remove(c.download.TempPath)

	raw, err := os.ReadFile(c.download.TempPath)
	if err != nil {
		e.latch(pullerrors.NewStoreError(c.name.String(), err))
		return
	}

	inc(&e.counters.OutstandingMetadataWrites)
	got, err := e.store.WriteMetadataAsync(ctx, e.txn, c.name, raw)
	dec(&e.counters.OutstandingMetadataWrites)
	if err != nil {
		e.latch(err)
		return
	}
	if !got.Equal(c.name.Digest) {
		e.latch(pullerrors.NewIntegrityError(c.name.String(), c.name.Digest, got))
		return
	}

	if err := e.scanQueue.Push(ctx, ScanWritten(c.name, c.depth)); err != nil {
		e.latch(err)
		return
	}

	inc(&e.counters.FetchedMetadata)
	e.counters.BytesTransferred.Add(c.download.Bytes)
	logger.DebugCtx(ctx, "wrote metadata object", logger.Digest(string(c.name.Digest)), logger.ObjectType(c.name.Type.String()))
}

// completeContent handles a File fetch. Content objects are never pushed
// back onto scan_queue: ObjectTypeFile is unreachable in the metadata
// scan, so there is no traversal left to resume from a file.
func (e *Engine) completeContent(ctx context.Context, c fetchCompletion) {
	defer dec(&e.counters.OutstandingContentFetches)

	if c.err != nil {
		e.latch(c.err)
		return
	}
	defer os.Remove(c.download.TempPath)

	raw, err := os.ReadFile(c.download.TempPath)
	if err != nil {
		e.latch(pullerrors.NewStoreError(c.name.String(), err))
		return
	}

	inc(&e.counters.OutstandingContentWrites)
	got, err := e.store.WriteContentAsync(ctx, e.txn, c.name, raw)
	dec(&e.counters.OutstandingContentWrites)
	if err != nil {
		e.latch(err)
		return
	}
	if !got.Equal(c.name.Digest) {
		e.latch(pullerrors.NewIntegrityError(c.name.String(), c.name.Digest, got))
		return
	}

	inc(&e.counters.FetchedContent)
	e.counters.BytesTransferred.Add(c.download.Bytes)
}
