// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/ava-labs/throttling/throttling/definitions"
)

// NewPair builds a Frontend and a Consensus router from the same document.
//
// Each router resolves its own throttles, so no throttle is ever shared
// between the advisory and the binding decisions.
func NewPair(doc *definitions.Document, frontend, consensus Config) (*Router, *Router, error) {
	frontend.Mode = Frontend
	consensus.Mode = Consensus

	f, err := New(frontend)
	if err != nil {
		return nil, nil, err
	}
	c, err := New(consensus)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Rebuild(doc); err != nil {
		return nil, nil, err
	}
	if err := c.Rebuild(doc); err != nil {
		return nil, nil, err
	}
	return f, c, nil
}
