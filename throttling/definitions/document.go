// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package definitions parses and validates throttle definition documents.
package definitions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	safemath "github.com/ava-labs/throttling/utils/math"
	"github.com/ava-labs/throttling/utils/units"
)

// Version is the only document version understood by this package.
const Version = 1

// DefaultOperation is the reserved operation name of the group that applies
// to every operation a bucket does not list explicitly.
const DefaultOperation = "*"

// maxBurstPeriodMs is the longest burst period, in milliseconds, that fits in
// a time.Duration.
const maxBurstPeriodMs = uint64(math.MaxInt64 / int64(time.Millisecond))

var (
	ErrUnknownVersion     = errors.New("unknown document version")
	ErrNoBuckets          = errors.New("document has no buckets")
	ErrUnnamedBucket      = errors.New("bucket has no name")
	ErrDuplicateBucket    = errors.New("duplicate bucket name")
	ErrZeroBurstPeriod    = errors.New("bucket burst period must be positive")
	ErrBurstPeriodTooLong = errors.New("bucket burst period exceeds the maximum duration")
	ErrNoGroups           = errors.New("bucket has no throttle groups")
	ErrZeroRate           = errors.New("throttle group rate must be positive")
	ErrAmbiguousRate      = errors.New("throttle group sets both opsPerSec and milliOpsPerSec")
	ErrNoOperations       = errors.New("throttle group has no operations")
	ErrEmptyOperation     = errors.New("operation name is empty")
	ErrDuplicateOperation = errors.New("operation repeated within bucket")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
)

// Document is the versioned set of buckets a router is built from.
type Document struct {
	Version uint32   `json:"version" yaml:"version"`
	Buckets []Bucket `json:"buckets" yaml:"buckets"`
}

// Bucket is a named leaky bucket shared by the operations of its groups.
type Bucket struct {
	Name           string  `json:"name"           yaml:"name"`
	BurstPeriodMs  uint64  `json:"burstPeriodMs"  yaml:"burstPeriodMs"`
	ThrottleGroups []Group `json:"throttleGroups" yaml:"throttleGroups"`
}

// Group admits its operations at a combined rate. Exactly one of OpsPerSec
// and MilliOpsPerSec is set.
type Group struct {
	OpsPerSec      uint64   `json:"opsPerSec,omitempty"      yaml:"opsPerSec,omitempty"`
	MilliOpsPerSec uint64   `json:"milliOpsPerSec,omitempty" yaml:"milliOpsPerSec,omitempty"`
	Operations     []string `json:"operations"               yaml:"operations"`
}

// Parse decodes a JSON document and validates it. Unknown fields are
// rejected.
func Parse(b []byte) (*Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.DisallowUnknownFields()

	doc := &Document{}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("couldn't decode throttle definitions: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseYAML decodes a YAML document and validates it. Unknown fields are
// rejected.
func ParseYAML(b []byte) (*Document, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)

	doc := &Document{}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("couldn't decode throttle definitions: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseFile decodes [b] according to the extension of [name].
func ParseFile(name string, b []byte) (*Document, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		return Parse(b)
	case ".yaml", ".yml":
		return ParseYAML(b)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Bytes returns the canonical JSON encoding of the document.
func (d *Document) Bytes() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Validate checks the structure of the document. It does not check that each
// bucket can be resolved, see Bucket.Resolve.
func (d *Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, d.Version)
	}
	if len(d.Buckets) == 0 {
		return ErrNoBuckets
	}

	names := make(map[string]struct{}, len(d.Buckets))
	for i := range d.Buckets {
		bucket := &d.Buckets[i]
		if err := bucket.Validate(); err != nil {
			return err
		}
		if _, ok := names[bucket.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateBucket, bucket.Name)
		}
		names[bucket.Name] = struct{}{}
	}
	return nil
}

// Operations returns every explicitly named operation in the document, in
// order of first appearance.
func (d *Document) Operations() []string {
	var (
		seen       = make(map[string]struct{})
		operations []string
	)
	for _, bucket := range d.Buckets {
		for _, group := range bucket.ThrottleGroups {
			for _, op := range group.Operations {
				if op == DefaultOperation {
					continue
				}
				if _, ok := seen[op]; ok {
					continue
				}
				seen[op] = struct{}{}
				operations = append(operations, op)
			}
		}
	}
	return operations
}

func (b *Bucket) Validate() error {
	if b.Name == "" {
		return ErrUnnamedBucket
	}
	if b.BurstPeriodMs == 0 {
		return fmt.Errorf("%w: %q", ErrZeroBurstPeriod, b.Name)
	}
	if b.BurstPeriodMs > maxBurstPeriodMs {
		return fmt.Errorf("%w: %q has %dms > %dms", ErrBurstPeriodTooLong, b.Name, b.BurstPeriodMs, maxBurstPeriodMs)
	}
	if len(b.ThrottleGroups) == 0 {
		return fmt.Errorf("%w: %q", ErrNoGroups, b.Name)
	}

	operations := make(map[string]struct{})
	for i := range b.ThrottleGroups {
		group := &b.ThrottleGroups[i]
		if err := group.Validate(); err != nil {
			return fmt.Errorf("bucket %q group %d: %w", b.Name, i, err)
		}
		for _, op := range group.Operations {
			if _, ok := operations[op]; ok {
				return fmt.Errorf("%w: %q in bucket %q", ErrDuplicateOperation, op, b.Name)
			}
			operations[op] = struct{}{}
		}
	}
	return nil
}

// BurstPeriod returns the burst period of the bucket, capped at the longest
// representable duration.
func (b *Bucket) BurstPeriod() time.Duration {
	if b.BurstPeriodMs > maxBurstPeriodMs {
		return math.MaxInt64
	}
	return time.Duration(b.BurstPeriodMs) * time.Millisecond
}

func (g *Group) Validate() error {
	switch {
	case g.OpsPerSec != 0 && g.MilliOpsPerSec != 0:
		return ErrAmbiguousRate
	case g.OpsPerSec == 0 && g.MilliOpsPerSec == 0:
		return ErrZeroRate
	case len(g.Operations) == 0:
		return ErrNoOperations
	}
	if _, err := g.MilliOps(); err != nil {
		return err
	}
	for _, op := range g.Operations {
		if op == "" {
			return ErrEmptyOperation
		}
	}
	return nil
}

// MilliOps returns the rate of the group in milli-operations per second.
func (g *Group) MilliOps() (uint64, error) {
	if g.MilliOpsPerSec != 0 {
		return g.MilliOpsPerSec, nil
	}
	mops, err := safemath.Mul(g.OpsPerSec, units.MilliOpsPerOp)
	if err != nil {
		return 0, fmt.Errorf("opsPerSec %d: %w", g.OpsPerSec, err)
	}
	return mops, nil
}
