package repositories

import (
	"fmt"
	"team-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// Records are stored as deterministic CBOR with integer keys.
// Field numbers are the on-disk contract: never reuse one.
var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal failed: %w", errors.ErrPersistence, err)
	}
	return data, nil
}

func unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: unmarshal failed: %w", errors.ErrPersistence, err)
	}
	return nil
}

// readValue loads the record stored under key into v.
func readValue(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, v)
	})
}

// conflictRetries bounds how often a transaction is replayed after Badger
// reports a conflict with a concurrent writer.
const conflictRetries = 16

// update runs fn in a read-write transaction and replays it on conflict.
// fn must only derive its writes from what it reads inside txn.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for range conflictRetries {
		if err = db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func persistence(err error) error {
	if err == nil || errors.Is(err, errors.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
}
