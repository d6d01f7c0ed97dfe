package objectmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ostreesync/pkg/objectname"
)

func TestCommitRoundTrip(t *testing.T) {
	t.Parallel()

	c := &Commit{
		Parent:       objectname.Digest("deadbeef"),
		Subject:      "build 42",
		Body:         "nightly image",
		Timestamp:    1700000000,
		TreeContents: objectname.Digest("contents-digest"),
		TreeMeta:     objectname.Digest("meta-digest"),
	}

	encoded := EncodeCommit(c)
	decoded, err := DecodeCommit(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestDirTreeEncodingIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := &DirTree{
		Files: SortedFiles{
			{Name: "b.txt", Digest: "d2"},
			{Name: "a.txt", Digest: "d1"},
		},
	}
	b := &DirTree{
		Files: SortedFiles{
			{Name: "a.txt", Digest: "d1"},
			{Name: "b.txt", Digest: "d2"},
		},
	}

	assert.Equal(t, DigestDirTree(a), DigestDirTree(b))
}

func TestDirTreeRoundTrip(t *testing.T) {
	t.Parallel()

	tree := &DirTree{
		Files: SortedFiles{{Name: "vmlinuz", Digest: "f1"}},
		Dirs:  SortedDirs{{Name: "etc", TreeDigest: "t1", MetaDigest: "m1"}},
	}

	encoded := EncodeDirTree(tree)
	decoded, err := DecodeDirTree(encoded)
	require.NoError(t, err)
	assert.Equal(t, tree.Files, decoded.Files)
	assert.Equal(t, tree.Dirs, decoded.Dirs)
}

func TestDirMetaRoundTrip(t *testing.T) {
	t.Parallel()

	meta := &DirMeta{
		Mode: 0o755,
		UID:  0,
		GID:  0,
		Xattr: map[string][]byte{
			"security.selinux": []byte("system_u:object_r:bin_t:s0"),
		},
	}

	encoded := EncodeDirMeta(meta)
	decoded, err := DecodeDirMeta(encoded)
	require.NoError(t, err)
	assert.Equal(t, meta.Mode, decoded.Mode)
	assert.Equal(t, meta.Xattr, decoded.Xattr)
}

func TestDigestIsDeterministicAcrossCalls(t *testing.T) {
	t.Parallel()

	tree := &DirTree{Files: SortedFiles{{Name: "x", Digest: "d"}}}
	assert.Equal(t, DigestDirTree(tree), DigestDirTree(tree))
	assert.True(t, DigestDirTree(tree).Valid())
}

func TestValidateFilenamesRejectsBadEntry(t *testing.T) {
	t.Parallel()

	tree := &DirTree{Files: SortedFiles{{Name: "..", Digest: "d"}}}
	assert.Error(t, tree.ValidateFilenames())
}
