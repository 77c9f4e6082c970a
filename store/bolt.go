package store

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"
)

var rowsBucket = []byte("rows")

const mode = 0666

// importBatchSize bounds the number of keys staged per ApplyMutations call.
const importBatchSize = 1024

// ExportBolt writes the latest visible version of every key into a bolt file.
// The file is the on-disk form of a loaded data set and carries no history.
func ExportBolt(ctx context.Context, st MVCCStore, path string) error {
	db, err := bbolt.Open(path, mode, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer db.Close()

	ts := st.LastCommitTS()
	var start []byte
	total := 0
	for {
		kvs, err := st.ScanAt(ctx, start, nil, importBatchSize, ts)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(kvs) == 0 {
			break
		}
		err = db.Update(func(tx *bbolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(rowsBucket)
			if err != nil {
				return errors.WithStack(err)
			}
			for _, kv := range kvs {
				if err := b.Put(kv.Key, kv.Value); err != nil {
					return errors.WithStack(err)
				}
			}
			return nil
		})
		if err != nil {
			return errors.WithStack(err)
		}
		total += len(kvs)
		start = append(kvs[len(kvs)-1].Key, 0x00)
	}

	slog.InfoContext(ctx, "exported rows", slog.String("path", path), slog.Int("rows", total))
	return nil
}

// ImportBolt loads every row of a bolt file written by ExportBolt into st.
func ImportBolt(ctx context.Context, st MVCCStore, path string) error {
	db, err := bbolt.Open(path, mode, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return errors.WithStack(err)
	}
	defer db.Close()

	total := 0
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rowsBucket)
		if b == nil {
			return nil
		}
		muts := make([]*KVPairMutation, 0, importBatchSize)
		flush := func() error {
			if len(muts) == 0 {
				return nil
			}
			startTS := st.LastCommitTS()
			if err := st.ApplyMutations(ctx, muts, startTS, startTS+1); err != nil {
				return errors.WithStack(err)
			}
			total += len(muts)
			muts = muts[:0]
			return nil
		}
		err := b.ForEach(func(k, v []byte) error {
			// bolt slices are only valid inside the transaction.
			muts = append(muts, &KVPairMutation{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
			if len(muts) >= importBatchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
		return flush()
	})
	if err != nil {
		return errors.WithStack(err)
	}

	slog.InfoContext(ctx, "imported rows", slog.String("path", path), slog.Int("rows", total))
	return nil
}
