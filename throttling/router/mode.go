// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

// Mode determines how a router sizes its throttles and where it takes time
// from.
type Mode uint8

const (
	// Frontend routers make advisory decisions before operations are
	// ordered. Their throttles hold this node's share of the network capacity
	// and they may read the local clock.
	Frontend Mode = iota
	// Consensus routers make binding decisions on ordered operations. Their
	// throttles hold the full network capacity and time is always supplied
	// by the caller.
	Consensus
)

func (m Mode) String() string {
	switch m {
	case Frontend:
		return "frontend"
	case Consensus:
		return "consensus"
	default:
		return "unknown"
	}
}
