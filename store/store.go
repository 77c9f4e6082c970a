package store

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

var ErrKeyNotFound = errors.New("not found")
var ErrInvalidChecksum = errors.New("invalid checksum")
var ErrWriteConflict = errors.New("write conflict")

type KVPair struct {
	Key   []byte
	Value []byte
}

// MVCCStore is a multi-version ordered key space. Every read names a
// snapshot timestamp and every write names a commit timestamp.
type MVCCStore interface {
	// GetAt returns the newest version whose commit timestamp is <= ts.
	GetAt(ctx context.Context, key []byte, ts uint64) ([]byte, error)
	// ScanAt returns up to limit keys in [start, end) visible at ts, in key
	// order. A nil end scans to the end of the key space.
	ScanAt(ctx context.Context, start []byte, end []byte, limit int, ts uint64) ([]*KVPair, error)
	// PutAt commits a single value at commitTS.
	PutAt(ctx context.Context, key []byte, value []byte, commitTS uint64) error
	// LatestCommitTS returns the commit timestamp of the newest version.
	// The boolean reports whether the key has any version.
	LatestCommitTS(ctx context.Context, key []byte) (uint64, bool, error)
	// ApplyMutations atomically validates and appends the provided mutations.
	// It returns ErrWriteConflict if any key has a newer commit timestamp
	// than startTS, in which case nothing is written.
	ApplyMutations(ctx context.Context, mutations []*KVPairMutation, startTS, commitTS uint64) error
	// LastCommitTS returns the highest commit timestamp applied so far.
	LastCommitTS() uint64
	Snapshot() (io.ReadWriter, error)
	Restore(buf io.Reader) error
	Close() error
}

// KVPairMutation is one put inside an ApplyMutations call.
type KVPairMutation struct {
	Key   []byte
	Value []byte
}
