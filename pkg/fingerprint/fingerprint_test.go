package fingerprint

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patternBytes returns n deterministic bytes.
func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func writeFile(t *testing.T, fs afero.Fs, path string, content []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, content, 0644))
}

// flakyOpenFs fails the first Open of every path and succeeds afterwards.
type flakyOpenFs struct {
	afero.Fs
	failures atomic.Int32
	seen     map[string]bool
}

func (f *flakyOpenFs) Open(name string) (afero.File, error) {
	if !f.seen[name] {
		f.seen[name] = true
		f.failures.Add(1)
		return nil, &os.PathError{Op: "open", Path: name, Err: errors.New("transient")}
	}
	return f.Fs.Open(name)
}

func TestHasher_Sum(t *testing.T) {
	testCases := []struct {
		name      string
		strong    bool
		content   []byte
		wantValue Fingerprint
		wantAlgo  Algorithm
	}{
		{"Strong hello", true, []byte("hello"), "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", Strong},
		{"Weak hello", false, []byte("hello"), "a430d84680aabd0b", Weak},
		{"Weak windowed", false, patternBytes(300 * 1024), "dab2588357268301", Weak},
		{"Strong empty", true, []byte{}, "", None},
		{"Weak empty", false, []byte{}, "", None},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, "/data/file", tc.content)

			h := New(fs, tc.strong, nil)
			r, err := h.Sum("/data/file")
			require.NoError(t, err)
			assert.Equal(t, tc.wantValue, r.Value)
			assert.Equal(t, tc.wantAlgo, r.Algorithm)
		})
	}
}

func TestHasher_WeakReadsOnlyWindows(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := patternBytes(600 * 1024)
	writeFile(t, fs, "/a", base)

	middle := append([]byte(nil), base...)
	middle[300*1024] ^= 0xff
	writeFile(t, fs, "/b", middle)

	tail := append([]byte(nil), base...)
	tail[len(tail)-1] ^= 0xff
	writeFile(t, fs, "/c", tail)

	h := New(fs, false, nil)
	a, err := h.Sum("/a")
	require.NoError(t, err)
	b, err := h.Sum("/b")
	require.NoError(t, err)
	c, err := h.Sum("/c")
	require.NoError(t, err)

	assert.True(t, a.Matches(b), "a change outside both windows must not change the weak fingerprint")
	assert.False(t, a.Matches(c), "a change in the trailing window must change the weak fingerprint")
	assert.Equal(t, int64(3*256*1024), h.BytesRead(), "weak hashing must read at most 256 KiB per file")
}

func TestHasher_StrongFallsBackToWeak(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeFile(t, mem, "/f", []byte("hello"))
	fs := &flakyOpenFs{Fs: mem, seen: map[string]bool{}}

	h := New(fs, true, nil)
	r, err := h.Sum("/f")
	require.NoError(t, err)
	assert.Equal(t, Weak, r.Algorithm)
	assert.Equal(t, Fingerprint("a430d84680aabd0b"), r.Value)
	assert.False(t, r.IsStrong())
}

func TestHasher_UnreadableFileYieldsError(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := New(fs, true, nil)

	r, err := h.Sum("/missing")
	require.Error(t, err)
	assert.True(t, r.IsEmpty())

	require.NoError(t, fs.MkdirAll("/dir", 0755))
	_, err = h.Sum("/dir")
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestHasher_CachesByPathSizeAndModTime(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/f", []byte("hello"))
	h := New(fs, true, nil)

	first, err := h.Sum("/f")
	require.NoError(t, err)
	read := h.BytesRead()

	second, err := h.Sum("/f")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, read, h.BytesRead(), "second call should be served from the cache")
}

func TestResult_Matches(t *testing.T) {
	strong := Result{Value: "ab", Algorithm: Strong}
	weakSameValue := Result{Value: "ab", Algorithm: Weak}
	empty := Result{}

	assert.True(t, strong.Matches(strong))
	assert.False(t, strong.Matches(weakSameValue))
	assert.False(t, empty.Matches(empty))
}

func TestParseAlgorithm(t *testing.T) {
	for _, a := range []Algorithm{None, Weak, Strong} {
		parsed, err := ParseAlgorithm(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseAlgorithm("md5")
	assert.Error(t, err)
}
