// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dbtest holds the behaviour every database backend must share.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/throttling/database"
)

// Tests is a list of all database tests
var Tests = map[string]func(t *testing.T, db database.Database){
	"SimpleKeyValue":       TestSimpleKeyValue,
	"BatchPut":             TestBatchPut,
	"BatchDelete":          TestBatchDelete,
	"BatchReset":           TestBatchReset,
	"IteratorPrefix":       TestIteratorPrefix,
	"ClearPrefix":          TestClearPrefix,
	"MemorySafetyDatabase": TestMemorySafetyDatabase,
	"Closed":               TestClosed,
}

// TestSimpleKeyValue tests to make sure that simple Put + Get + Delete + Has
// calls return the expected values.
func TestSimpleKeyValue(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)

	_, err = db.Get(key)
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(db.Put(key, value))

	has, err = db.Has(key)
	require.NoError(err)
	require.True(has)

	v, err := db.Get(key)
	require.NoError(err)
	require.Equal(value, v)

	require.NoError(db.Delete(key))
	require.NoError(db.Delete(key))

	_, err = db.Get(key)
	require.ErrorIs(err, database.ErrNotFound)
}

// TestBatchPut tests to make sure that batched writes work as expected.
func TestBatchPut(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	batch := db.NewBatch()
	require.NoError(batch.Put(key, value))
	require.Positive(batch.Size())

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)

	require.NoError(batch.Write())

	v, err := db.Get(key)
	require.NoError(err)
	require.Equal(value, v)
}

// TestBatchDelete tests to make sure that batched deletes work as expected.
func TestBatchDelete(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	require.NoError(db.Put(key, []byte("world")))

	batch := db.NewBatch()
	require.NoError(batch.Delete(key))
	require.NoError(batch.Write())

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)
}

// TestBatchReset tests to make sure that a batch drops state when it is
// reset.
func TestBatchReset(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")

	batch := db.NewBatch()
	require.NoError(batch.Put(key, []byte("world")))
	batch.Reset()
	require.Zero(batch.Size())
	require.NoError(batch.Write())

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)
}

// TestIteratorPrefix tests to make sure the iterator returns only the keys
// with the prefix, in order.
func TestIteratorPrefix(t *testing.T, db database.Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("usage/b"), []byte{2}))
	require.NoError(db.Put([]byte("usage/a"), []byte{1}))
	require.NoError(db.Put([]byte("other"), []byte{3}))

	iterator := db.NewIteratorWithPrefix([]byte("usage/"))
	defer iterator.Release()

	var (
		keys   []string
		values [][]byte
	)
	for iterator.Next() {
		keys = append(keys, string(iterator.Key()))
		values = append(values, iterator.Value())
	}
	require.NoError(iterator.Error())
	require.Equal([]string{"usage/a", "usage/b"}, keys)
	require.Equal([][]byte{{1}, {2}}, values)

	count, err := database.Count(db, nil)
	require.NoError(err)
	require.Equal(3, count)
}

// TestClearPrefix tests to make sure that a prefix can be atomically
// replaced in one batch.
func TestClearPrefix(t *testing.T, db database.Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("usage/a"), []byte{1}))
	require.NoError(db.Put([]byte("usage/b"), []byte{2}))
	require.NoError(db.Put([]byte("other"), []byte{3}))

	batch := db.NewBatch()
	require.NoError(database.ClearPrefix(db, batch, []byte("usage/")))
	require.NoError(batch.Put([]byte("usage/c"), []byte{4}))
	require.NoError(batch.Write())

	count, err := database.Count(db, []byte("usage/"))
	require.NoError(err)
	require.Equal(1, count)

	has, err := db.Has([]byte("other"))
	require.NoError(err)
	require.True(has)
}

// TestMemorySafetyDatabase ensures it is safe to modify a key after passing it
// to Database.Put and Database.Get.
func TestMemorySafetyDatabase(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("1key")
	keyCopy := []byte("1key")
	value := []byte("value")
	require.NoError(db.Put(key, value))

	key[0] = 'x'
	gotVal, err := db.Get(keyCopy)
	require.NoError(err)
	require.Equal(value, gotVal)

	gotVal[0] = 'x'
	gotVal, err = db.Get(keyCopy)
	require.NoError(err)
	require.Equal([]byte("value"), gotVal)
}

// TestClosed tests to make sure that calling functions after the database has
// been closed fails.
func TestClosed(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	require.NoError(db.Put(key, []byte("world")))
	require.NoError(db.Close())

	_, err := db.Has(key)
	require.ErrorIs(err, database.ErrClosed)

	_, err = db.Get(key)
	require.ErrorIs(err, database.ErrClosed)

	err = db.Put(key, []byte("world"))
	require.ErrorIs(err, database.ErrClosed)

	err = db.Delete(key)
	require.ErrorIs(err, database.ErrClosed)

	require.ErrorIs(db.Close(), database.ErrClosed)
}
