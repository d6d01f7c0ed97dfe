package pull

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/pkg/objectmodel"
	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// CommitVerifier is the injected signature-verification predicate called
// before traversing a commit's children when gpg_verify is enabled. The
// Cryptographic verification is treated as an external collaborator,
// out of scope for this package; this is its interface-only seam.
type CommitVerifier func(ctx context.Context, commit objectname.Digest) error

// ScanWorker owns the local ObjectStore's read path (has_object,
// load_metadata) and the scanned_metadata/requested_metadata/
// requested_content sets. It runs its own single-
// threaded event loop, draining scan_queue and feeding fetch_queue, in
// the common single-worker drain-loop shape (bounded channel + stopCh + drain-on-
// shutdown) to "one scan worker with an idle-serial handshake" in place
// of "N upload workers with a shutdown drain".
type ScanWorker struct {
	store      objectstore.ObjectStore
	scanQueue  *WorkQueue[ScanMsg]
	fetchQueue *WorkQueue[FetchMsg]

	resuming  bool
	gpgVerify bool
	verify    CommitVerifier
	onError   func(error)

	mu                sync.Mutex
	scanned           map[string]struct{}
	requestedMetadata map[string]struct{}
	requestedContent  map[string]struct{}

	scannedCount atomic.Uint64
}

// NewScanWorker builds a ScanWorker. resuming is the transaction_begin
// result: when true, stored metadata is re-walked on first
// visit this run, rediscovering content a prior aborted pull may have
// missed. onError is the cross-thread error callback
// (Engine.ScanIdleHandler).
func NewScanWorker(
	store objectstore.ObjectStore,
	scanQueue *WorkQueue[ScanMsg],
	fetchQueue *WorkQueue[FetchMsg],
	resuming bool,
	gpgVerify bool,
	verify CommitVerifier,
	onError func(error),
) *ScanWorker {
	return &ScanWorker{
		store:             store,
		scanQueue:         scanQueue,
		fetchQueue:        fetchQueue,
		resuming:          resuming,
		gpgVerify:         gpgVerify,
		verify:            verify,
		onError:           onError,
		scanned:           make(map[string]struct{}),
		requestedMetadata: make(map[string]struct{}),
		requestedContent:  make(map[string]struct{}),
	}
}

// ScannedCount reports n_scanned_metadata. Safe to call from another
// goroutine (the progress reporter polls it at 1 Hz).
func (w *ScanWorker) ScannedCount() uint64 { return w.scannedCount.Load() }

// Run is the scan thread's event loop. It returns when ctx is cancelled
// or a ScanMsgQuit is received.
func (w *ScanWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.scanQueue.Chan():
			switch msg.Kind {
			case ScanMsgQuit:
				return
			case ScanMsgScan:
				w.scan(ctx, msg.Name, msg.Depth)
			case ScanMsgWritten:
				w.onWritten(ctx, msg.Name, msg.Depth)
			case ScanMsgMainIdle:
				w.drainAndRespond(ctx, msg.Serial)
			}
		}
	}
}

// drainAndRespond handles the idle-handshake's drain step: having received a
// MainIdle(s) token, drain every message currently sitting in scan_queue,
// processing Scans and tracking only the most recent MainIdle seen (an
// even newer probe can arrive mid-drain). Once the queue is empty,
// forward the held MainIdle unchanged, then push ScanIdle — in that
// order, so the engine never observes ScanIdle before the probe it
// answers.
func (w *ScanWorker) drainAndRespond(ctx context.Context, held uint32) {
	for {
		select {
		case msg := <-w.scanQueue.Chan():
			switch msg.Kind {
			case ScanMsgScan:
				w.scan(ctx, msg.Name, msg.Depth)
			case ScanMsgWritten:
				w.onWritten(ctx, msg.Name, msg.Depth)
			case ScanMsgMainIdle:
				held = msg.Serial
			case ScanMsgQuit:
				return
			}
		default:
			if err := w.fetchQueue.Push(ctx, FetchMainIdle(held)); err != nil {
				w.onError(err)
				return
			}
			if err := w.fetchQueue.Push(ctx, FetchScanIdle()); err != nil {
				w.onError(err)
			}
			return
		}
	}
}

// scan is the per-name scan step, generalized to also serve as the
// recursive child-traversal step: every DirTree/Commit child re-enters
// here at depth+1, which gives the idempotent "already scanned? return"
// check for free at every level. It answers "do we need this object, and
// have we already seen enough of it to walk its children" purely from
// has_object and the local sets — it never assumes an in-flight fetch has
// landed. The engine's write confirmation arrives as a separate message,
// handled by onWritten below.
func (w *ScanWorker) scan(ctx context.Context, name objectname.ObjectName, depth int) {
	if depth > objectmodel.MaxRecursion {
		w.onError(pullerrors.NewRecursionError(name.String(), depth))
		return
	}

	w.mu.Lock()
	if _, done := w.scanned[name.Key()]; done {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	has, err := w.store.HasObject(ctx, name)
	if err != nil {
		w.onError(err)
		return
	}

	if !has {
		w.mu.Lock()
		_, alreadyRequested := w.requestedMetadata[name.Key()]
		if !alreadyRequested {
			w.requestedMetadata[name.Key()] = struct{}{}
		}
		w.mu.Unlock()

		if alreadyRequested {
			// A fetch for this object is already in flight; the
			// written-confirmation that follows will drive traversal.
			return
		}

		msg := Fetch(name, depth)
		if name.Type == objectname.ObjectTypeCommit {
			msg = FetchDetachedMeta(name, depth)
		}
		if err := w.fetchQueue.Push(ctx, msg); err != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	_, wasRequestedThisRun := w.requestedMetadata[name.Key()]
	w.mu.Unlock()

	shouldTraverse := w.resuming || wasRequestedThisRun
	if shouldTraverse {
		if err := w.traverse(ctx, name, depth); err != nil {
			w.onError(err)
			return
		}
	}

	w.mu.Lock()
	w.scanned[name.Key()] = struct{}{}
	w.mu.Unlock()
	w.scannedCount.Add(1)
}

// onWritten handles ScanMsgWritten: the engine's confirmation that name
// was just written inside its open transaction. Unlike scan, it never
// consults has_object — within a single pull, an object the engine just
// wrote is authoritative proof the object exists, whether or not the
// backend's committed-storage view has caught up yet.
func (w *ScanWorker) onWritten(ctx context.Context, name objectname.ObjectName, depth int) {
	w.mu.Lock()
	if _, done := w.scanned[name.Key()]; done {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	if err := w.traverse(ctx, name, depth); err != nil {
		w.onError(err)
		return
	}

	w.mu.Lock()
	w.scanned[name.Key()] = struct{}{}
	w.mu.Unlock()
	w.scannedCount.Add(1)
}

func (w *ScanWorker) traverse(ctx context.Context, name objectname.ObjectName, depth int) error {
	switch name.Type {
	case objectname.ObjectTypeCommit:
		return w.traverseCommit(ctx, name.Digest, depth)
	case objectname.ObjectTypeDirTree:
		return w.traverseDirTree(ctx, name.Digest, depth)
	case objectname.ObjectTypeDirMeta:
		return nil // scan-terminal leaf, no children
	default:
		return pullerrors.NewStoreError(name.String(), errFileUnreachableInScan)
	}
}

func (w *ScanWorker) traverseCommit(ctx context.Context, digest objectname.Digest, depth int) error {
	if w.gpgVerify && w.verify != nil {
		if err := w.verify(ctx, digest); err != nil {
			return err
		}
	}

	raw, err := w.store.LoadMetadata(ctx, objectname.ObjectName{Digest: digest, Type: objectname.ObjectTypeCommit})
	if err != nil {
		return err
	}
	commit, ok := raw.(*objectmodel.Commit)
	if !ok {
		return pullerrors.NewParseError(string(digest), "loaded metadata is not a Commit")
	}

	w.scan(ctx, objectname.ObjectName{Digest: commit.TreeContents, Type: objectname.ObjectTypeDirTree}, depth+1)
	w.scan(ctx, objectname.ObjectName{Digest: commit.TreeMeta, Type: objectname.ObjectTypeDirMeta}, depth+1)
	return nil
}

func (w *ScanWorker) traverseDirTree(ctx context.Context, digest objectname.Digest, depth int) error {
	raw, err := w.store.LoadMetadata(ctx, objectname.ObjectName{Digest: digest, Type: objectname.ObjectTypeDirTree})
	if err != nil {
		return err
	}
	tree, ok := raw.(*objectmodel.DirTree)
	if !ok {
		return pullerrors.NewParseError(string(digest), "loaded metadata is not a DirTree")
	}
	if err := tree.ValidateFilenames(); err != nil {
		return pullerrors.NewParseError(string(digest), "%v", err)
	}

	for _, f := range tree.Files {
		fileName := objectname.ObjectName{Digest: f.Digest, Type: objectname.ObjectTypeFile}
		has, err := w.store.HasObject(ctx, fileName)
		if err != nil {
			return err
		}

		w.mu.Lock()
		_, alreadyRequested := w.requestedContent[fileName.Key()]
		if !has && !alreadyRequested {
			w.requestedContent[fileName.Key()] = struct{}{}
		}
		w.mu.Unlock()

		if !has && !alreadyRequested {
			if err := w.fetchQueue.Push(ctx, Fetch(fileName, depth+1)); err != nil {
				return err
			}
		}
	}

	for _, d := range tree.Dirs {
		w.scan(ctx, objectname.ObjectName{Digest: d.TreeDigest, Type: objectname.ObjectTypeDirTree}, depth+1)
		w.scan(ctx, objectname.ObjectName{Digest: d.MetaDigest, Type: objectname.ObjectTypeDirMeta}, depth+1)
	}

	logger.Debug("traversed directory tree", logger.Digest(string(digest)), logger.Depth(depth))
	return nil
}

type fileUnreachableInScanError struct{}

func (fileUnreachableInScanError) Error() string {
	return "ObjectTypeFile is unreachable in metadata scan: internal invariant violation"
}

var errFileUnreachableInScan = fileUnreachableInScanError{}
