package cluster

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/terrastat/landsig/internal/divergence"
	"github.com/terrastat/landsig/internal/signature"
)

// Result holds a k-medoids partition of a signature collection.
type Result struct {
	// Assignments maps each tile index to a slot in Medoids.
	Assignments []int
	// Medoids are indices into the collection, in selection order.
	Medoids []int
	// Cost is the total distance of tiles to their assigned medoid.
	Cost float64
}

// maxSwapIterations bounds the PAM swap phase. In practice the loop
// converges in a handful of passes.
const maxSwapIterations = 100

// KMedoids partitions the collection into k groups by PAM (greedy build
// followed by swap refinement) using Jensen-Shannon divergence as the
// distance. The procedure uses no randomness: identical input ordering
// yields an identical partition.
func KMedoids(ctx context.Context, c *signature.Collection, k int, opts divergence.Options) (*Result, error) {
	if c == nil || c.Len() == 0 {
		return nil, eris.Wrap(signature.ErrEmptyCollection, "cluster: kmedoids")
	}
	if k < 1 || k > c.Len() {
		return nil, eris.Errorf("cluster: k=%d out of range for %d tiles", k, c.Len())
	}

	// Self-comparison yields the symmetric tile-to-tile distance matrix.
	dist, err := divergence.Pairwise(ctx, c, c, opts)
	if err != nil {
		return nil, err
	}

	medoids := buildPhase(dist, k)
	medoids, cost := swapPhase(ctx, dist, medoids)

	assign := make([]int, dist.Rows)
	for i := range assign {
		assign[i] = nearestMedoid(dist, medoids, i)
	}

	zap.L().Debug("cluster: kmedoids converged",
		zap.Int("k", k),
		zap.Int("tiles", c.Len()),
		zap.Float64("cost", cost),
	)
	return &Result{Assignments: assign, Medoids: medoids, Cost: cost}, nil
}

// buildPhase greedily selects k medoids, each minimizing the total distance
// of all tiles to their closest selected medoid so far. Ties go to the
// lowest index.
func buildPhase(dist *divergence.Matrix, k int) []int {
	n := dist.Rows
	best := make([]float64, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	medoids := make([]int, 0, k)
	chosen := make([]bool, n)
	for len(medoids) < k {
		bestIdx, bestCost := -1, math.Inf(1)
		for cand := 0; cand < n; cand++ {
			if chosen[cand] {
				continue
			}
			cost := 0.0
			row := dist.Row(cand)
			for i := 0; i < n; i++ {
				cost += math.Min(best[i], row[i])
			}
			if cost < bestCost {
				bestIdx, bestCost = cand, cost
			}
		}
		medoids = append(medoids, bestIdx)
		chosen[bestIdx] = true
		row := dist.Row(bestIdx)
		for i := 0; i < n; i++ {
			best[i] = math.Min(best[i], row[i])
		}
	}
	return medoids
}

// swapPhase repeatedly tries replacing a medoid with a non-medoid when the
// swap lowers total cost, taking the single best swap per pass.
func swapPhase(ctx context.Context, dist *divergence.Matrix, medoids []int) ([]int, float64) {
	n := dist.Rows
	current := totalCost(dist, medoids)

	for iter := 0; iter < maxSwapIterations; iter++ {
		if ctx.Err() != nil {
			break
		}
		bestSlot, bestCand, bestCost := -1, -1, current
		inMedoids := make(map[int]bool, len(medoids))
		for _, m := range medoids {
			inMedoids[m] = true
		}
		for slot := range medoids {
			for cand := 0; cand < n; cand++ {
				if inMedoids[cand] {
					continue
				}
				trial := make([]int, len(medoids))
				copy(trial, medoids)
				trial[slot] = cand
				cost := totalCost(dist, trial)
				if cost < bestCost-1e-12 {
					bestSlot, bestCand, bestCost = slot, cand, cost
				}
			}
		}
		if bestSlot < 0 {
			break
		}
		medoids[bestSlot] = bestCand
		current = bestCost
	}
	return medoids, current
}

// totalCost sums each tile's distance to its nearest medoid.
func totalCost(dist *divergence.Matrix, medoids []int) float64 {
	n := dist.Rows
	costs := make([]float64, n)
	for i := 0; i < n; i++ {
		costs[i] = dist.At(i, medoids[nearestMedoid(dist, medoids, i)])
	}
	return floats.Sum(costs)
}

// nearestMedoid returns the medoid slot closest to tile i, lowest slot on ties.
func nearestMedoid(dist *divergence.Matrix, medoids []int, i int) int {
	bestSlot, bestDist := 0, math.Inf(1)
	for slot, m := range medoids {
		if d := dist.At(i, m); d < bestDist {
			bestSlot, bestDist = slot, d
		}
	}
	return bestSlot
}
