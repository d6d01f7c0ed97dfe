// Package objectmodel defines the three metadata object shapes — Commit,
// DirTree, DirMeta — and their canonical, deterministic binary encoding.
// A digest is always SHA-256 over this canonical encoding, never over any
// other serialization of the same struct.
package objectmodel

import (
	"github.com/marmos91/ostreesync/pkg/objectname"
)

// MaxRecursion bounds commit/tree traversal depth. Exceeding it at any
// depth is a fatal RecursionError.
const MaxRecursion = 256

// Commit is the top-level metadata object: it names a content tree and a
// metadata tree, plus a parent commit for history, and free-form subject
// and body text describing the update.
type Commit struct {
	Parent      objectname.Digest // zero value means no parent
	Subject     string
	Body        string
	Timestamp   int64 // Unix seconds
	TreeContents objectname.Digest // -> DirTree
	TreeMeta     objectname.Digest // -> DirMeta
}

// FileEntry is one (filename, file_digest) pair in a DirTree.
type FileEntry struct {
	Name   string
	Digest objectname.Digest // -> File
}

// DirEntry is one (dirname, subtree_digest, submeta_digest) triple in a
// DirTree.
type DirEntry struct {
	Name        string
	TreeDigest  objectname.Digest // -> DirTree
	MetaDigest  objectname.Digest // -> DirMeta
}

// DirTree is a directory listing: files then subdirectories. Encoding
// sorts both lists by name, so the encoded bytes and digest do not depend
// on the order entries were added.
type DirTree struct {
	Files SortedFiles
	Dirs  SortedDirs
}

// SortedFiles is a []FileEntry kept in ascending name order.
type SortedFiles []FileEntry

// SortedDirs is a []DirEntry kept in ascending name order.
type SortedDirs []DirEntry

// DirMeta is an opaque metadata blob (permissions, xattrs) treated as a
// scan-terminal leaf: it has no children to traverse.
type DirMeta struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Xattr map[string][]byte
}

// ValidateFilenames checks every entry name in a DirTree against
// objectname.ValidateFilename before traversal.
func (t *DirTree) ValidateFilenames() error {
	for _, f := range t.Files {
		if err := objectname.ValidateFilename(f.Name); err != nil {
			return err
		}
	}
	for _, d := range t.Dirs {
		if err := objectname.ValidateFilename(d.Name); err != nil {
			return err
		}
	}
	return nil
}
