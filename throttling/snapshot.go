// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// UsageSnapshotLen is the length of an encoded UsageSnapshot:
// used (8) | seconds (8) | nanoseconds (4) | has decided (1)
const UsageSnapshotLen = 8 + 8 + 4 + 1

var errWrongSnapshotLen = errors.New("unexpected usage snapshot length")

// UsageSnapshot is the state needed to resume a throttle's decisions exactly
// where they left off.
type UsageSnapshot struct {
	Used uint64 `json:"used"`
	// LastDecisionTime is the zero time if the throttle never decided.
	LastDecisionTime time.Time `json:"lastDecisionTime"`
}

// Bytes returns the canonical encoding of the snapshot. Times are encoded in
// UTC so the encoding does not depend on the location of the replica.
func (s UsageSnapshot) Bytes() []byte {
	b := make([]byte, UsageSnapshotLen)
	binary.BigEndian.PutUint64(b[0:8], s.Used)
	if !s.LastDecisionTime.IsZero() {
		binary.BigEndian.PutUint64(b[8:16], uint64(s.LastDecisionTime.Unix()))
		binary.BigEndian.PutUint32(b[16:20], uint32(s.LastDecisionTime.Nanosecond()))
		b[20] = 1
	}
	return b
}

// ParseUsageSnapshot is the inverse of UsageSnapshot.Bytes.
func ParseUsageSnapshot(b []byte) (UsageSnapshot, error) {
	if len(b) != UsageSnapshotLen {
		return UsageSnapshot{}, fmt.Errorf("%w: expected %d, actual %d",
			errWrongSnapshotLen,
			UsageSnapshotLen,
			len(b),
		)
	}
	s := UsageSnapshot{
		Used: binary.BigEndian.Uint64(b[0:8]),
	}
	switch b[20] {
	case 0:
	case 1:
		s.LastDecisionTime = time.Unix(
			int64(binary.BigEndian.Uint64(b[8:16])),
			int64(binary.BigEndian.Uint32(b[16:20])),
		).UTC()
	default:
		return UsageSnapshot{}, fmt.Errorf("invalid decision flag %d", b[20])
	}
	return s, nil
}

// Equal reports whether both snapshots describe the same usage at the same
// instant.
func (s UsageSnapshot) Equal(o UsageSnapshot) bool {
	return s.Used == o.Used && s.LastDecisionTime.Equal(o.LastDecisionTime)
}

func (s UsageSnapshot) String() string {
	if s.LastDecisionTime.IsZero() {
		return fmt.Sprintf("%d used, never decided", s.Used)
	}
	return fmt.Sprintf("%d used as of %s", s.Used, s.LastDecisionTime.UTC().Format(time.RFC3339Nano))
}
