// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

// DefaultPatience is the number of consecutive non-improving sweeps after
// which the diameter heuristic stops.
const DefaultPatience = 5

// DiameterOptions configures EstimateDiameter.
type DiameterOptions struct {
	// Patience is the number of consecutive sweeps without a strict
	// improvement before the search stops. Values < 1 use DefaultPatience.
	Patience int

	// Seed makes the random start node reproducible. Ignored if Rand is set.
	Seed uint64

	// Seeded reports whether Seed was explicitly set.
	Seeded bool

	// Rand overrides the random source.
	Rand *rand.Rand

	// StartNode, if set, skips random selection. Must have outgoing edges.
	StartNode *PageID
}

// DiameterOption is a functional option for EstimateDiameter.
type DiameterOption func(*DiameterOptions)

// DefaultDiameterOptions returns sensible defaults.
func DefaultDiameterOptions() DiameterOptions {
	return DiameterOptions{Patience: DefaultPatience}
}

// WithPatience sets the number of non-improving sweeps tolerated.
func WithPatience(n int) DiameterOption {
	return func(o *DiameterOptions) {
		o.Patience = n
	}
}

// WithSeed makes the random start node deterministic.
func WithSeed(seed uint64) DiameterOption {
	return func(o *DiameterOptions) {
		o.Seed = seed
		o.Seeded = true
	}
}

// WithRand supplies the random source used to pick the start node.
func WithRand(r *rand.Rand) DiameterOption {
	return func(o *DiameterOptions) {
		o.Rand = r
	}
}

// WithStartNode fixes the node of the first sweep.
func WithStartNode(id PageID) DiameterOption {
	return func(o *DiameterOptions) {
		o.StartNode = &id
	}
}

// EstimateDiameter approximates the graph diameter with repeated sweeps.
//
// Description:
//
//	Starts at a uniformly random page among those with outgoing edges and
//	repeatedly runs Furthest from the current page, moving to the furthest
//	page found each time. A strictly longer distance replaces the best
//	(start, end, distance) triple and resets the stagnation counter;
//	otherwise the counter grows. The search stops after Patience
//	consecutive non-improving sweeps.
//
//	The result is a lower bound on the true diameter and depends on the
//	start node. It is NOT an exact computation.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	opts - Functional options (WithSeed, WithPatience, WithStartNode, ...).
//
// Outputs:
//
//	*DiameterResult - Best endpoints and distance seen.
//	error - ErrEmptyGraph if no page has outgoing edges, ErrNodeNotFound if
//	  WithStartNode names a page without an entry, or a ctx error.
func (a *Adjacency) EstimateDiameter(ctx context.Context, opts ...DiameterOption) (*DiameterResult, error) {
	o := DefaultDiameterOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Patience < 1 {
		o.Patience = DefaultPatience
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGraph, "Adjacency.EstimateDiameter",
		attribute.Int("graph.patience", o.Patience),
	)
	defer span.End()
	began := time.Now()

	if len(a.sources) == 0 {
		telemetry.RecordError(span, ErrEmptyGraph)
		return nil, ErrEmptyGraph
	}

	var curr PageID
	if o.StartNode != nil {
		if !a.Has(*o.StartNode) {
			err := fmt.Errorf("%w: start node %d", ErrNodeNotFound, *o.StartNode)
			telemetry.RecordError(span, err)
			return nil, err
		}
		curr = *o.StartNode
	} else {
		r := o.Rand
		if r == nil {
			seed := o.Seed
			if !o.Seeded {
				seed = rand.Uint64()
			}
			r = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
		curr = a.ids[a.sources[r.IntN(len(a.sources))]]
	}

	result := &DiameterResult{Start: curr, End: curr, Seed: curr}
	stagnant := 0

	for stagnant < o.Patience {
		fr, err := a.Furthest(ctx, curr)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		result.Sweeps++

		if fr.Distance > result.Distance {
			result.Start = curr
			result.End = fr.Node
			result.Distance = fr.Distance
			stagnant = 0
		} else {
			stagnant++
		}
		curr = fr.Node
	}

	span.SetAttributes(
		attribute.Int("graph.diameter_estimate", result.Distance),
		attribute.Int("graph.sweeps", result.Sweeps),
	)
	recordQueryMetrics(ctx, "diameter", time.Since(began), result.Sweeps)
	return result, nil
}
