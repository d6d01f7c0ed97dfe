package objectname

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", true},
		{"dot", ".", true},
		{"double dot", "..", true},
		{"contains slash", "a/b", true},
		{"contains nul", "a\x00b", true},
		{"valid simple", "vmlinuz", false},
		{"valid hidden", ".config", false},
		{"valid unicode", "файл.bin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateFilename(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", true},
		{"contains space", "stable amd64", true},
		{"contains tab", "stable\tamd64", true},
		{"contains dotdot component", "stable/../amd64", true},
		{"valid simple", "main", false},
		{"valid branch path", "stable/amd64", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateRef(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDigestValid(t *testing.T) {
	t.Parallel()

	valid := Digest(strings.Repeat("a", DigestLength))
	assert.True(t, valid.Valid())

	tooShort := Digest(strings.Repeat("a", DigestLength-1))
	assert.False(t, tooShort.Valid())

	upper := Digest(strings.Repeat("A", DigestLength))
	assert.False(t, upper.Valid())

	assert.NoError(t, ValidateDigest(string(valid)))
	assert.Error(t, ValidateDigest(string(tooShort)))
}

func TestDigestEqualIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	lower := Digest(strings.Repeat("ab", DigestLength/2))
	upper := Digest(strings.ToUpper(string(lower)))
	assert.True(t, lower.Equal(upper))
}

func TestSumIsDeterministic(t *testing.T) {
	t.Parallel()

	d1 := Sum([]byte("hello"))
	d2 := Sum([]byte("hello"))
	assert.Equal(t, d1, d2)
	assert.True(t, d1.Valid())

	d3 := Sum([]byte("world"))
	assert.NotEqual(t, d1, d3)
}

func TestObjectNameKeyDistinguishesTypes(t *testing.T) {
	t.Parallel()

	d := Digest(strings.Repeat("c", DigestLength))
	n1 := ObjectName{Digest: d, Type: ObjectTypeCommit}
	n2 := ObjectName{Digest: d, Type: ObjectTypeDirTree}
	assert.NotEqual(t, n1.Key(), n2.Key())
}

func TestRelativeObjectPathUsesTwoCharPrefix(t *testing.T) {
	t.Parallel()

	d := Digest(strings.Repeat("9", DigestLength))
	path := RelativeObjectPath(d, ObjectTypeCommit)
	assert.True(t, strings.HasPrefix(path, "99/"))
	assert.True(t, strings.HasSuffix(path, ".commit"))
}

func TestObjectTypeIsMetadata(t *testing.T) {
	t.Parallel()

	assert.True(t, ObjectTypeCommit.IsMetadata())
	assert.True(t, ObjectTypeDirTree.IsMetadata())
	assert.True(t, ObjectTypeDirMeta.IsMetadata())
	assert.False(t, ObjectTypeFile.IsMetadata())
}
