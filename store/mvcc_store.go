package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	rbt "github.com/emirpasic/gods/trees/redblacktree"
)

// VersionedValue represents a single committed version.
type VersionedValue struct {
	TS    uint64
	Value []byte
}

const (
	checksumSize = 4
)

func byteSliceComparator(a, b interface{}) int {
	ab, okA := a.([]byte)
	bb, okB := b.([]byte)
	switch {
	case okA && okB:
		return bytes.Compare(ab, bb)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return 0
	}
}

// mvccStore is an in-memory MVCC implementation backed by a red-black tree
// for deterministic iteration order and range scans that seek to their
// start key.
type mvccStore struct {
	tree         *rbt.Tree // key []byte -> []VersionedValue
	mtx          sync.RWMutex
	log          *slog.Logger
	lastCommitTS uint64
}

type Option func(*mvccStore)

// WithLogger replaces the store's default warn-level logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *mvccStore) {
		if l != nil {
			s.log = l
		}
	}
}

// NewMVCCStore creates a new MVCC-enabled in-memory store.
func NewMVCCStore(opts ...Option) MVCCStore {
	s := &mvccStore{
		tree: rbt.NewWith(byteSliceComparator),
		log: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ MVCCStore = (*mvccStore)(nil)

// ---- helpers guarded by caller locks ----

func latestVisible(vs []VersionedValue, ts uint64) (VersionedValue, bool) {
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].TS <= ts {
			return vs[i], true
		}
	}
	return VersionedValue{}, false
}

func (s *mvccStore) putVersionLocked(key, value []byte, commitTS uint64) {
	existing, _ := s.tree.Get(key)
	var versions []VersionedValue
	if existing != nil {
		versions, _ = existing.([]VersionedValue)
	}
	versions = append(versions, VersionedValue{
		TS:    commitTS,
		Value: bytes.Clone(value),
	})
	s.tree.Put(bytes.Clone(key), versions)
}

func (s *mvccStore) alignCommitTS(commitTS uint64) uint64 {
	ts := commitTS
	if ts <= s.lastCommitTS {
		ts = s.lastCommitTS + 1
	}
	s.lastCommitTS = ts
	return ts
}

func (s *mvccStore) latestVersionLocked(key []byte) (VersionedValue, bool) {
	v, ok := s.tree.Get(key)
	if !ok {
		return VersionedValue{}, false
	}
	vs, _ := v.([]VersionedValue)
	if len(vs) == 0 {
		return VersionedValue{}, false
	}
	return vs[len(vs)-1], true
}

// ---- MVCCStore methods ----

func (s *mvccStore) LastCommitTS() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.lastCommitTS
}

func (s *mvccStore) GetAt(_ context.Context, key []byte, ts uint64) ([]byte, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	v, ok := s.tree.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	versions, _ := v.([]VersionedValue)
	ver, ok := latestVisible(versions, ts)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(ver.Value), nil
}

func (s *mvccStore) ScanAt(_ context.Context, start []byte, end []byte, limit int, ts uint64) ([]*KVPair, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if limit <= 0 {
		return []*KVPair{}, nil
	}

	capHint := limit
	if size := s.tree.Size(); size < capHint {
		capHint = size
	}

	result := make([]*KVPair, 0, capHint)
	it, ok := s.seekLocked(start)
	for ok {
		k, isKey := it.Key().([]byte)
		if !isKey {
			ok = it.Next()
			continue
		}
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		versions, _ := it.Value().([]VersionedValue)
		if ver, visible := latestVisible(versions, ts); visible {
			result = append(result, &KVPair{
				Key:   bytes.Clone(k),
				Value: bytes.Clone(ver.Value),
			})
			if len(result) >= limit {
				break
			}
		}
		ok = it.Next()
	}

	return result, nil
}

// seekLocked positions an iterator on the first key >= start. It reports
// false when no such key exists.
func (s *mvccStore) seekLocked(start []byte) (rbt.Iterator, bool) {
	if start == nil {
		it := s.tree.Iterator()
		ok := it.Next()
		return it, ok
	}
	node, ok := s.tree.Ceiling(start)
	if !ok {
		return rbt.Iterator{}, false
	}
	return s.tree.IteratorAt(node), true
}

func (s *mvccStore) PutAt(ctx context.Context, key []byte, value []byte, commitTS uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	commitTS = s.alignCommitTS(commitTS)
	s.putVersionLocked(key, value, commitTS)
	s.log.DebugContext(ctx, "put_at",
		slog.String("key", string(key)),
		slog.Uint64("commit_ts", commitTS),
	)
	return nil
}

func (s *mvccStore) LatestCommitTS(_ context.Context, key []byte) (uint64, bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	ver, ok := s.latestVersionLocked(key)
	if !ok {
		return 0, false, nil
	}
	return ver.TS, true, nil
}

func (s *mvccStore) ApplyMutations(ctx context.Context, mutations []*KVPairMutation, startTS, commitTS uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, mut := range mutations {
		if latestVer, ok := s.latestVersionLocked(mut.Key); ok && latestVer.TS > startTS {
			return errors.Wrapf(ErrWriteConflict, "key: %s", string(mut.Key))
		}
	}

	commitTS = s.alignCommitTS(commitTS)

	for _, mut := range mutations {
		s.putVersionLocked(mut.Key, mut.Value, commitTS)
	}
	s.log.DebugContext(ctx, "apply mutations",
		slog.Int("count", len(mutations)),
		slog.Uint64("commit_ts", commitTS),
	)

	return nil
}

func (s *mvccStore) Snapshot() (io.ReadWriter, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	state := make([]mvccSnapshotEntry, 0, s.tree.Size())
	for it := s.tree.Iterator(); it.Next(); {
		k, ok := it.Key().([]byte)
		if !ok {
			continue
		}
		versions, ok := it.Value().([]VersionedValue)
		if !ok {
			continue
		}
		state = append(state, mvccSnapshotEntry{
			Key:      bytes.Clone(k),
			Versions: append([]VersionedValue(nil), versions...),
		})
	}

	buf := &bytes.Buffer{}
	if err := gob.NewEncoder(buf).Encode(state); err != nil {
		return nil, errors.WithStack(err)
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(buf, binary.LittleEndian, sum); err != nil {
		return nil, errors.WithStack(err)
	}

	return buf, nil
}

func (s *mvccStore) Restore(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(data) < checksumSize {
		return errors.WithStack(ErrInvalidChecksum)
	}
	payload := data[:len(data)-checksumSize]
	expected := binary.LittleEndian.Uint32(data[len(data)-checksumSize:])
	if crc32.ChecksumIEEE(payload) != expected {
		return errors.WithStack(ErrInvalidChecksum)
	}

	var state []mvccSnapshotEntry
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&state); err != nil {
		return errors.WithStack(err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.tree.Clear()
	s.lastCommitTS = 0
	for _, entry := range state {
		versions := append([]VersionedValue(nil), entry.Versions...)
		s.tree.Put(bytes.Clone(entry.Key), versions)
		if len(versions) > 0 {
			last := versions[len(versions)-1].TS
			if last > s.lastCommitTS {
				s.lastCommitTS = last
			}
		}
	}

	return nil
}

func (s *mvccStore) Close() error {
	return nil
}

// mvccSnapshotEntry is used solely for gob snapshot serialization.
type mvccSnapshotEntry struct {
	Key      []byte
	Versions []VersionedValue
}
