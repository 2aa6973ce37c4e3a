// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package expiry

import (
	"errors"
	"fmt"
)

var ErrUnknownAccessKind = errors.New("unknown access kind")

// AccessKind is a low level store access performed by expiry work.
type AccessKind uint8

const (
	AccountsGet AccessKind = iota
	AccountsGetForModify
	AccountsRemove
	NftsGet
	NftsGetForModify
	NftsRemove
	StorageGet
	StoragePut
	StorageRemove
	TokenAssociationsGet
	TokenAssociationsGetForModify
	TokenAssociationsRemove
	BlobsRemove

	numAccessKinds = iota
)

var accessKindNames = [numAccessKinds]string{
	AccountsGet:                   "AccountsGet",
	AccountsGetForModify:          "AccountsGetForModify",
	AccountsRemove:                "AccountsRemove",
	NftsGet:                       "NftsGet",
	NftsGetForModify:              "NftsGetForModify",
	NftsRemove:                    "NftsRemove",
	StorageGet:                    "StorageGet",
	StoragePut:                    "StoragePut",
	StorageRemove:                 "StorageRemove",
	TokenAssociationsGet:          "TokenAssociationsGet",
	TokenAssociationsGetForModify: "TokenAssociationsGetForModify",
	TokenAssociationsRemove:       "TokenAssociationsRemove",
	BlobsRemove:                   "BlobsRemove",
}

// AccessKinds returns every access kind, in declaration order.
func AccessKinds() []AccessKind {
	kinds := make([]AccessKind, numAccessKinds)
	for i := range kinds {
		kinds[i] = AccessKind(i)
	}
	return kinds
}

func ParseAccessKind(s string) (AccessKind, error) {
	for i, name := range accessKindNames {
		if name == s {
			return AccessKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAccessKind, s)
}

func (k AccessKind) String() string {
	if k < numAccessKinds {
		return accessKindNames[k]
	}
	return fmt.Sprintf("AccessKind(%d)", uint8(k))
}

func (k AccessKind) MarshalText() ([]byte, error) {
	if k >= numAccessKinds {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAccessKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *AccessKind) UnmarshalText(b []byte) error {
	var err error
	*k, err = ParseAccessKind(string(b))
	return err
}
