// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filesystem

import (
	"io/fs"
	"os"
)

var (
	_ Reader = reader{}
	_ Reader = fsReader{}
)

// Reader is an interface for reading the filesystem.
type Reader interface {
	// ReadDir reads a given directory.
	// Returns the files in the directory.
	ReadDir(string) ([]fs.DirEntry, error)

	// ReadFile returns the contents of the named file.
	ReadFile(string) ([]byte, error)
}

type reader struct{}

// NewReader returns a Reader over the operating system's filesystem.
func NewReader() Reader {
	return reader{}
}

// This is just a wrapper around os.ReadDir to make testing easier.
func (reader) ReadDir(dirname string) ([]fs.DirEntry, error) {
	return os.ReadDir(dirname)
}

func (reader) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

type fsReader struct {
	fsys fs.FS
}

// NewFSReader returns a Reader over [fsys]. Packaged assets, embedded with
// go:embed, and in-memory test trees are both read through this.
func NewFSReader(fsys fs.FS) Reader {
	return fsReader{fsys: fsys}
}

func (r fsReader) ReadDir(dirname string) ([]fs.DirEntry, error) {
	return fs.ReadDir(r.fsys, dirname)
}

func (r fsReader) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(r.fsys, name)
}
