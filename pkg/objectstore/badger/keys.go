package badger

import "github.com/marmos91/ostreesync/pkg/objectname"

// Key prefixes, following an "obj:{hash}" convention, extended with the prefixes this
// backend's own records need (detached commit metadata, refs, remote
// config sections, and the open-transaction marker).
const (
	objectPrefix   = "obj:"
	detachedPrefix = "detached:"
	refPrefix      = "ref:"
	remotePrefix   = "remote:"
	pendingPrefix  = "pending:"
)

func keyObject(name objectname.ObjectName) []byte {
	return []byte(objectPrefix + name.Key())
}

func keyDetached(commit objectname.Digest) []byte {
	return []byte(detachedPrefix + string(commit))
}

func keyRef(remote, ref string) []byte {
	return []byte(refPrefix + remote + "/" + ref)
}

func keyRemote(remoteName string) []byte {
	return []byte(remotePrefix + remoteName)
}

func keyPending(txnID string) []byte {
	return []byte(pendingPrefix + txnID)
}
