// Package fingerprint derives content digests used to compare files and to
// detect moves.
//
// Two algorithms exist. The strong one is SHA-256 over the whole file, read
// in 64 KiB chunks. The weak one is 64-bit FNV-1a over at most 256 KiB: the
// whole file when it fits, otherwise the leading and trailing 128 KiB. Weak
// digests are cheap but collide easily, so every Result carries the
// algorithm that produced it and callers that act destructively on a match
// must insist on Strong.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/pool"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

const (
	strongChunkSize = 64 * 1024
	weakWindowSize  = 128 * 1024
	weakWholeLimit  = 2 * weakWindowSize

	defaultCacheSize = 1 << 16
)

// Fingerprint is a lowercase hex digest. The empty value means "no
// fingerprint available" and never equals anything.
type Fingerprint string

// Algorithm identifies how a Fingerprint was produced.
type Algorithm int

const (
	None Algorithm = iota
	Weak
	Strong
)

var algorithmToString = map[Algorithm]string{
	None:   "none",
	Weak:   "fnv1a-64",
	Strong: "sha256",
}

var stringToAlgorithm = util.InvertMap(algorithmToString)

func (a Algorithm) String() string {
	if s, ok := algorithmToString[a]; ok {
		return s
	}
	return fmt.Sprintf("unknown_algorithm(%d)", a)
}

// ParseAlgorithm maps an algorithm name back to its value.
func ParseAlgorithm(s string) (Algorithm, error) {
	if a, ok := stringToAlgorithm[s]; ok {
		return a, nil
	}
	return None, fmt.Errorf("invalid fingerprint algorithm: %q", s)
}

// Result is a fingerprint together with the algorithm that produced it.
type Result struct {
	Value     Fingerprint
	Algorithm Algorithm
}

// IsEmpty reports whether no fingerprint is available.
func (r Result) IsEmpty() bool { return r.Value == "" }

// IsStrong reports whether the fingerprint is a non-empty strong digest.
func (r Result) IsStrong() bool { return r.Value != "" && r.Algorithm == Strong }

// Matches reports whether two results prove equal content: both non-empty,
// same algorithm, same value.
func (r Result) Matches(o Result) bool {
	return r.Value != "" && r.Algorithm == o.Algorithm && r.Value == o.Value
}

// ErrNotRegular is returned for paths that are not regular files.
var ErrNotRegular = errors.New("not a regular file")

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// Hasher computes fingerprints for files on an afero filesystem. The chosen
// algorithm is fixed at construction time.
type Hasher struct {
	fs      afero.Fs
	strong  bool
	buffers *pool.Buffers
	cache   *lru.Cache[cacheKey, Result]

	bytesRead atomic.Int64
}

// New creates a Hasher. When strong is false only the weak algorithm is used.
func New(fs afero.Fs, strong bool, buffers *pool.Buffers) *Hasher {
	if buffers == nil {
		buffers = pool.New(strongChunkSize, weakWholeLimit)
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[cacheKey, Result](defaultCacheSize)
	return &Hasher{fs: fs, strong: strong, buffers: buffers, cache: cache}
}

// Strong reports whether the hasher prefers the strong algorithm.
func (h *Hasher) Strong() bool { return h.strong }

// BytesRead returns the number of bytes read for hashing so far.
func (h *Hasher) BytesRead() int64 { return h.bytesRead.Load() }

// Sum fingerprints the file at path. Zero-length files yield an empty Result
// and no error. A non-nil error means no algorithm could read the file; the
// Result is then empty.
func (h *Hasher) Sum(path string) (Result, error) {
	info, err := h.fs.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return h.SumInfo(path, info)
}

// SumInfo is Sum with a FileInfo the caller already holds.
func (h *Hasher) SumInfo(path string, info os.FileInfo) (Result, error) {
	if !info.Mode().IsRegular() {
		return Result{}, fmt.Errorf("cannot fingerprint %s: %w", path, ErrNotRegular)
	}
	if info.Size() == 0 {
		return Result{}, nil
	}

	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if r, ok := h.cache.Get(key); ok {
		return r, nil
	}

	var r Result
	if h.strong {
		sum, strongErr := h.strongSum(path)
		if strongErr == nil {
			r = Result{Value: sum, Algorithm: Strong}
		} else {
			plog.Debug("Strong fingerprint failed, falling back to weak", "path", path, "error", strongErr)
		}
	}
	if r.IsEmpty() {
		sum, err := h.weakSum(path, info.Size())
		if err != nil {
			return Result{}, fmt.Errorf("failed to fingerprint %s: %w", path, err)
		}
		r = Result{Value: sum, Algorithm: Weak}
	}

	h.cache.Add(key, r)
	return r, nil
}

func (h *Hasher) strongSum(path string) (Fingerprint, error) {
	f, err := h.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	bufPtr := h.buffers.Get(strongChunkSize)
	defer h.buffers.Put(bufPtr)
	buf := *bufPtr

	sha := sha256.New()
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sha.Write(buf[:n])
			h.bytesRead.Add(int64(n))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return Fingerprint(hex.EncodeToString(sha.Sum(nil))), nil
}

func (h *Hasher) weakSum(path string, size int64) (Fingerprint, error) {
	f, err := h.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	n := min(size, weakWholeLimit)
	bufPtr := h.buffers.Get(int(n))
	defer h.buffers.Put(bufPtr)
	buf := *bufPtr

	if size <= weakWholeLimit {
		if _, err := io.ReadFull(f, buf); err != nil {
			return "", err
		}
	} else {
		if _, err := f.ReadAt(buf[:weakWindowSize], 0); err != nil && err != io.EOF {
			return "", err
		}
		if _, err := f.ReadAt(buf[weakWindowSize:], size-weakWindowSize); err != nil && err != io.EOF {
			return "", err
		}
	}
	h.bytesRead.Add(n)

	fnv64 := fnv.New64a()
	fnv64.Write(buf)
	return Fingerprint(fmt.Sprintf("%016x", fnv64.Sum64())), nil
}
