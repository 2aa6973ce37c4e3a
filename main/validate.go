// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ava-labs/throttling/config"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/utils/filesystem"
)

// runValidate resolves every bucket of the configured definitions for both
// the consensus router and the capacity split of the frontend router, and
// prints the resolved throttles to [w].
func runValidate(args []string, w io.Writer) error {
	v, err := config.GetViper(args)
	if err != nil {
		return err
	}
	doc, err := config.GetDefinitions(v, filesystem.NewReader())
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	return describe(w, doc, v.GetInt(config.CapacitySplitKey))
}

func describe(w io.Writer, doc *definitions.Document, split int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tOPERATION\tOPS REQUIRED\tCONSENSUS MTPS\tFRONTEND MTPS")
	for i := range doc.Buckets {
		bucket := &doc.Buckets[i]
		consensus, err := bucket.Resolve(1)
		if err != nil {
			return err
		}
		frontend, err := bucket.Resolve(split)
		if err != nil {
			return fmt.Errorf("couldn't split across %d nodes: %w", split, err)
		}

		for _, group := range bucket.ThrottleGroups {
			for _, op := range group.Operations {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
					bucket.Name,
					op,
					consensus.OpsRequired[op],
					consensus.Throttle.MTPS(),
					frontend.Throttle.MTPS(),
				)
			}
		}
	}
	return tw.Flush()
}
