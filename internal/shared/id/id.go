// Package id provides centralized ID generation for multicam.
//
// All identities are ULIDs: lexicographically sortable, so frame and
// bundle IDs sort in creation order, which keeps journal queries and log
// correlation cheap. Type-specific prefixes (frm_*, bdl_*, cam_*) make
// logs readable and prevent IDs of one kind being passed where another
// is expected.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// FrameID identifies a single processed camera frame.
type FrameID string

// BundleID identifies a synchronized multi-camera bundle.
type BundleID string

// StreamID identifies one camera stream.
type StreamID string

const (
	FramePrefix  = "frm"
	BundlePrefix = "bdl"
	StreamPrefix = "cam"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // ulid entropy readers are not safe for concurrent use
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source. Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewFrameID generates a new frame ID.
func NewFrameID() FrameID {
	return FrameID(Default().GenerateWithPrefix(FramePrefix))
}

// NewBundleID generates a new bundle ID.
func NewBundleID() BundleID {
	return BundleID(Default().GenerateWithPrefix(BundlePrefix))
}

// NewStreamID generates a new stream ID.
func NewStreamID() StreamID {
	return StreamID(Default().GenerateWithPrefix(StreamPrefix))
}

func (id FrameID) String() string  { return string(id) }
func (id BundleID) String() string { return string(id) }
func (id StreamID) String() string { return string(id) }

// IsValid reports whether id is a prefixed ULID of any known kind.
func IsValid(id string) bool {
	prefix, raw, ok := strings.Cut(id, "_")
	if !ok {
		return false
	}
	switch prefix {
	case FramePrefix, BundlePrefix, StreamPrefix:
	default:
		return false
	}
	_, err := ulid.Parse(raw)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed ULID.
func Timestamp(id string) (time.Time, error) {
	_, raw, ok := strings.Cut(id, "_")
	if !ok {
		return time.Time{}, fmt.Errorf("id %q has no prefix", id)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
