// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package expiry

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ava-labs/throttling/database"
	"github.com/ava-labs/throttling/utils/filesystem"
)

var (
	_ Loader = (*FileLoader)(nil)
	_ Loader = (*AssetLoader)(nil)
	_ Loader = (*LedgerLoader)(nil)
)

// Loader reads a named resource holding the definition of the expiry
// throttle.
type Loader interface {
	Load(ctx context.Context, resource string) ([]byte, error)
}

// FileLoader reads resources from a directory of the file system.
type FileLoader struct {
	Reader filesystem.Reader
	Dir    string
}

func (l *FileLoader) Load(ctx context.Context, resource string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Reader.ReadFile(filepath.Join(l.Dir, resource))
}

// AssetLoader reads resources packaged with the binary.
type AssetLoader struct {
	FS fs.FS
}

func (l *AssetLoader) Load(ctx context.Context, resource string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(l.FS, resource)
}

// LedgerLoader reads resources from ledger managed file storage, where each
// resource is stored under [Prefix] followed by its name.
type LedgerLoader struct {
	DB     database.KeyValueReader
	Prefix []byte
}

func (l *LedgerLoader) Load(ctx context.Context, resource string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := make([]byte, 0, len(l.Prefix)+len(resource))
	key = append(key, l.Prefix...)
	key = append(key, resource...)

	b, err := l.DB.Get(key)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %q from the ledger: %w", resource, err)
	}
	return b, nil
}
