// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package database defines the key-value storage that throttle usage is
// persisted to.
package database

import (
	"errors"
	"io"
)

var (
	ErrClosed   = errors.New("closed")
	ErrNotFound = errors.New("not found")
)

// KeyValueReader wraps the Has and Get method of a backing data store.
type KeyValueReader interface {
	// Has retrieves if a key is present in the key-value data store.
	Has(key []byte) (bool, error)

	// Get retrieves the given key if it's present in the key-value data store.
	// Returns ErrNotFound if the key is not present.
	//
	// The returned byte slice is safe to read from and write to.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put method of a backing data store.
type KeyValueWriter interface {
	// Put inserts the given value into the key-value data store.
	//
	// Safe to read from and write to [key] and [value] after calling.
	Put(key []byte, value []byte) error
}

// KeyValueDeleter wraps the Delete method of a backing data store.
type KeyValueDeleter interface {
	// Delete removes the key from the key-value data store. Deleting a key
	// that isn't present is not an error.
	Delete(key []byte) error
}

type KeyValueWriterDeleter interface {
	KeyValueWriter
	KeyValueDeleter
}

// Batch is a write-only database that commits changes to its host database
// when Write is called. A batch cannot be used concurrently.
type Batch interface {
	KeyValueWriterDeleter

	// Size retrieves the amount of data queued up for writing, this includes
	// the keys, values, and deleted keys.
	Size() int

	// Write flushes any accumulated data to disk atomically.
	Write() error

	// Reset resets the batch for reuse.
	Reset()
}

// Batcher wraps the NewBatch method of a backing data store.
type Batcher interface {
	NewBatch() Batch
}

// Iterator iterates over a database's key/value pairs in ascending key
// order. An iterator must be released after use.
type Iterator interface {
	// Next moves the iterator to the next key/value pair. It returns whether
	// the iterator is exhausted.
	Next() bool

	// Error returns any accumulated error. Exhausting all the key/value pairs
	// is not considered to be an error.
	Error() error

	// Key returns the key of the current key/value pair, or nil if done.
	Key() []byte

	// Value returns the value of the current key/value pair, or nil if done.
	Value() []byte

	// Release releases associated resources.
	Release()
}

// Iteratee wraps the NewIterator methods of a backing data store.
type Iteratee interface {
	NewIterator() Iterator

	// NewIteratorWithPrefix creates an iterator over the keys of the database
	// that start with [prefix].
	NewIteratorWithPrefix(prefix []byte) Iterator
}

// Database contains all the methods required to persist throttle usage.
type Database interface {
	KeyValueReader
	KeyValueWriterDeleter
	Batcher
	Iteratee
	io.Closer
}

// IteratorError is an iterator that will always return the provided error.
type IteratorError struct {
	Err error
}

func (*IteratorError) Next() bool { return false }

func (i *IteratorError) Error() error { return i.Err }

func (*IteratorError) Key() []byte { return nil }

func (*IteratorError) Value() []byte { return nil }

func (*IteratorError) Release() {}
