package pull

import "github.com/marmos91/ostreesync/pkg/objectname"

// ScanMsgKind tags the variant carried by a ScanMsg — the sum type
// ScanMsg := Scan(ObjectName, depth) | Written(ObjectName, depth) |
// MainIdle(serial) | Quit.
//
// Scan and Written look similar but answer different questions. Scan asks
// "do we need this object at all, and if we already have it, should it be
// walked" — has_object is the source of truth, and a duplicate Scan for
// an object still in flight is a safe no-op. Written says "the engine just finished writing this exact
// object inside its open, uncommitted transaction, walk its children
// now" — it does not consult has_object at all, because an in-flight
// transaction's own writes are not guaranteed to be visible through that
// read path before commit (see memory.Store, which only flushes staged
// writes to committed storage on Commit/Release). Collapsing these into
// one message kind was the original design and it silently broke: a
// write-confirmation and a stale duplicate request became indistinguishable.
type ScanMsgKind int

const (
	ScanMsgScan ScanMsgKind = iota
	ScanMsgWritten
	ScanMsgMainIdle
	ScanMsgQuit
)

// ScanMsg is a message on scan_queue, addressed to ScanWorker. Depth is
// the traversal depth of Name from the pull's root commit(s), carried
// end-to-end through the matching FetchMsg so MAX_RECURSION enforcement
// survives a fetch round-trip instead of resetting to 0 on every write.
type ScanMsg struct {
	Kind   ScanMsgKind
	Name   objectname.ObjectName
	Depth  int
	Serial uint32
}

// Scan builds a ScanMsgScan message for name at the given depth.
func Scan(name objectname.ObjectName, depth int) ScanMsg {
	return ScanMsg{Kind: ScanMsgScan, Name: name, Depth: depth}
}

// ScanWritten builds a ScanMsgWritten message: the engine's confirmation
// that name was just written within its open transaction.
func ScanWritten(name objectname.ObjectName, depth int) ScanMsg {
	return ScanMsg{Kind: ScanMsgWritten, Name: name, Depth: depth}
}

// ScanMainIdle builds a ScanMsgMainIdle message carrying the engine's
// current idle serial.
func ScanMainIdle(serial uint32) ScanMsg { return ScanMsg{Kind: ScanMsgMainIdle, Serial: serial} }

// ScanQuit builds a ScanMsgQuit message.
func ScanQuit() ScanMsg { return ScanMsg{Kind: ScanMsgQuit} }

// FetchMsgKind tags the variant carried by a FetchMsg — the sum type
// FetchMsg := Fetch(ObjectName, depth) | FetchDetachedMeta(ObjectName, depth) |
// MainIdle(serial) | ScanIdle | Quit.
type FetchMsgKind int

const (
	FetchMsgFetch FetchMsgKind = iota
	FetchMsgFetchDetachedMeta
	FetchMsgMainIdle
	FetchMsgScanIdle
	FetchMsgQuit
)

// FetchMsg is a message on fetch_queue, addressed to PullEngine. Depth
// mirrors the ScanMsg that triggered this fetch, so the engine can hand
// it back unchanged in the ScanWritten it pushes on a successful write.
type FetchMsg struct {
	Kind   FetchMsgKind
	Name   objectname.ObjectName
	Depth  int
	Serial uint32
}

// Fetch builds a FetchMsgFetch message.
func Fetch(name objectname.ObjectName, depth int) FetchMsg {
	return FetchMsg{Kind: FetchMsgFetch, Name: name, Depth: depth}
}

// FetchDetachedMeta builds a FetchMsgFetchDetachedMeta message.
func FetchDetachedMeta(name objectname.ObjectName, depth int) FetchMsg {
	return FetchMsg{Kind: FetchMsgFetchDetachedMeta, Name: name, Depth: depth}
}

// FetchMainIdle builds a FetchMsgMainIdle message, forwarded unchanged
// from scan_queue by ScanWorker as part of the termination handshake.
func FetchMainIdle(serial uint32) FetchMsg {
	return FetchMsg{Kind: FetchMsgMainIdle, Serial: serial}
}

// FetchScanIdle builds a FetchMsgScanIdle message.
func FetchScanIdle() FetchMsg { return FetchMsg{Kind: FetchMsgScanIdle} }

// FetchQuit builds a FetchMsgQuit message.
func FetchQuit() FetchMsg { return FetchMsg{Kind: FetchMsgQuit} }
