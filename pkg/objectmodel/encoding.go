package objectmodel

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/marmos91/ostreesync/pkg/objectname"
)

// Canonical encoding format (hand-rolled, fixed field order,
// length-prefixed variable fields) rather than a general-purpose codec
// library: no canonical-CBOR or canonical-JSON dependency fits this
// shape, so this is a small deterministic encoder written by hand,
// using plain encodeUint32/decodeUint32-style helpers.
//
// All multi-byte integers are big-endian. Every variable-length field
// (string, byte slice, digest) is preceded by a uint32 length.

func putUint32(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}

func putUint64(buf []byte, v uint64) []byte {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp, v)
	return append(buf, tmp...)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func putString(buf []byte, s string) []byte {
	return putBytes(buf, []byte(s))
}

func putDigest(buf []byte, d objectname.Digest) []byte {
	return putString(buf, string(d))
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) uint32() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, fmt.Errorf("truncated uint32 at offset %d", r.off)
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if r.off+8 > len(r.b) {
		return 0, fmt.Errorf("truncated uint64 at offset %d", r.off)
	}
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.b) {
		return nil, fmt.Errorf("truncated field of length %d at offset %d", n, r.off)
	}
	out := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return out, nil
}

func (r *reader) string() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) digest() (objectname.Digest, error) {
	s, err := r.string()
	if err != nil {
		return "", err
	}
	return objectname.Digest(s), nil
}

func (r *reader) done() bool { return r.off >= len(r.b) }

// EncodeCommit produces the canonical byte encoding of a Commit.
func EncodeCommit(c *Commit) []byte {
	var buf []byte
	buf = putDigest(buf, c.Parent)
	buf = putString(buf, c.Subject)
	buf = putString(buf, c.Body)
	buf = putUint64(buf, uint64(c.Timestamp))
	buf = putDigest(buf, c.TreeContents)
	buf = putDigest(buf, c.TreeMeta)
	return buf
}

// DecodeCommit parses the canonical byte encoding of a Commit.
func DecodeCommit(b []byte) (*Commit, error) {
	r := &reader{b: b}
	var c Commit
	var err error
	if c.Parent, err = r.digest(); err != nil {
		return nil, err
	}
	if c.Subject, err = r.string(); err != nil {
		return nil, err
	}
	if c.Body, err = r.string(); err != nil {
		return nil, err
	}
	ts, err := r.uint64()
	if err != nil {
		return nil, err
	}
	c.Timestamp = int64(ts)
	if c.TreeContents, err = r.digest(); err != nil {
		return nil, err
	}
	if c.TreeMeta, err = r.digest(); err != nil {
		return nil, err
	}
	return &c, nil
}

// EncodeDirTree produces the canonical byte encoding of a DirTree. Entries
// are sorted by name before encoding so that two trees with the same
// logical contents always produce the same digest regardless of
// insertion order.
func EncodeDirTree(t *DirTree) []byte {
	files := append(SortedFiles(nil), t.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	dirs := append(SortedDirs(nil), t.Dirs...)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })

	var buf []byte
	buf = putUint32(buf, uint32(len(files)))
	for _, f := range files {
		buf = putString(buf, f.Name)
		buf = putDigest(buf, f.Digest)
	}
	buf = putUint32(buf, uint32(len(dirs)))
	for _, d := range dirs {
		buf = putString(buf, d.Name)
		buf = putDigest(buf, d.TreeDigest)
		buf = putDigest(buf, d.MetaDigest)
	}
	return buf
}

// DecodeDirTree parses the canonical byte encoding of a DirTree.
func DecodeDirTree(b []byte) (*DirTree, error) {
	r := &reader{b: b}
	nFiles, err := r.uint32()
	if err != nil {
		return nil, err
	}
	files := make(SortedFiles, 0, nFiles)
	for i := uint32(0); i < nFiles; i++ {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		digest, err := r.digest()
		if err != nil {
			return nil, err
		}
		files = append(files, FileEntry{Name: name, Digest: digest})
	}

	nDirs, err := r.uint32()
	if err != nil {
		return nil, err
	}
	dirs := make(SortedDirs, 0, nDirs)
	for i := uint32(0); i < nDirs; i++ {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		treeDigest, err := r.digest()
		if err != nil {
			return nil, err
		}
		metaDigest, err := r.digest()
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, DirEntry{Name: name, TreeDigest: treeDigest, MetaDigest: metaDigest})
	}
	return &DirTree{Files: files, Dirs: dirs}, nil
}

// EncodeDirMeta produces the canonical byte encoding of a DirMeta.
// Xattr keys are sorted so that the same xattr set always encodes
// identically.
func EncodeDirMeta(m *DirMeta) []byte {
	var buf []byte
	buf = putUint32(buf, m.Mode)
	buf = putUint32(buf, m.UID)
	buf = putUint32(buf, m.GID)

	keys := make([]string, 0, len(m.Xattr))
	for k := range m.Xattr {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = putUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = putString(buf, k)
		buf = putBytes(buf, m.Xattr[k])
	}
	return buf
}

// DecodeDirMeta parses the canonical byte encoding of a DirMeta.
func DecodeDirMeta(b []byte) (*DirMeta, error) {
	r := &reader{b: b}
	mode, err := r.uint32()
	if err != nil {
		return nil, err
	}
	uid, err := r.uint32()
	if err != nil {
		return nil, err
	}
	gid, err := r.uint32()
	if err != nil {
		return nil, err
	}
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	xattr := make(map[string][]byte, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.string()
		if err != nil {
			return nil, err
		}
		v, err := r.bytes()
		if err != nil {
			return nil, err
		}
		xattr[k] = append([]byte(nil), v...)
	}
	return &DirMeta{Mode: mode, UID: uid, GID: gid, Xattr: xattr}, nil
}

// DigestCommit returns the content digest of a Commit's canonical encoding.
func DigestCommit(c *Commit) objectname.Digest { return objectname.Sum(EncodeCommit(c)) }

// DigestDirTree returns the content digest of a DirTree's canonical encoding.
func DigestDirTree(t *DirTree) objectname.Digest { return objectname.Sum(EncodeDirTree(t)) }

// DigestDirMeta returns the content digest of a DirMeta's canonical encoding.
func DigestDirMeta(m *DirMeta) objectname.Digest { return objectname.Sum(EncodeDirMeta(m)) }
