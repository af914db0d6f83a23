package divergence

import (
	"math"

	"github.com/terrastat/landsig/internal/signature"
)

// MaxJSD is the upper bound of Jensen-Shannon divergence under natural log.
var MaxJSD = math.Log(2)

// KL computes the Kullback-Leibler divergence KL(p‖q) over aligned vectors,
// natural log, with the 0·log(0/·)=0 convention. Callers guarantee alignment;
// validation lives at the collection boundary.
func KL(p, q []float64) float64 {
	sum := 0.0
	for k, pk := range p {
		if pk == 0 {
			continue
		}
		sum += pk * math.Log(pk/q[k])
	}
	return sum
}

// JSD computes the Jensen-Shannon divergence between two probability vectors:
// ½·KL(P‖M) + ½·KL(Q‖M) with M = ½(P+Q). Symmetric, bounded in [0, ln 2].
// The mixture m_k is zero only where both p_k and q_k are zero, so the
// 0·log(0/·) convention keeps every term finite.
func JSD(p, q []float64) float64 {
	sum := 0.0
	for k, pk := range p {
		qk := q[k]
		mk := 0.5 * (pk + qk)
		if pk > 0 {
			sum += 0.5 * pk * math.Log(pk/mk)
		}
		if qk > 0 {
			sum += 0.5 * qk * math.Log(qk/mk)
		}
	}
	if sum < 0 {
		// Rounding can push an identical-vector comparison a hair below zero.
		return 0
	}
	return sum
}

// jsdOverlap computes JSD over the categories defined in both signatures,
// renormalizing each side over the joint support. This is the MissingOverlap
// realization; MissingExclude never reaches here because undefined tiles are
// dropped at construction.
func jsdOverlap(a, b signature.Signature) float64 {
	if a.Defined == nil && b.Defined == nil {
		return JSD(a.Probs, b.Probs)
	}
	var sumA, sumB float64
	joint := make([]bool, len(a.Probs))
	for k := range a.Probs {
		if (a.Defined == nil || a.Defined[k]) && (b.Defined == nil || b.Defined[k]) {
			joint[k] = true
			sumA += a.Probs[k]
			sumB += b.Probs[k]
		}
	}
	if sumA == 0 || sumB == 0 {
		// Disjoint support over the joint mask; maximally dissimilar.
		return MaxJSD
	}
	sum := 0.0
	for k := range a.Probs {
		if !joint[k] {
			continue
		}
		pk := a.Probs[k] / sumA
		qk := b.Probs[k] / sumB
		mk := 0.5 * (pk + qk)
		if pk > 0 {
			sum += 0.5 * pk * math.Log(pk/mk)
		}
		if qk > 0 {
			sum += 0.5 * qk * math.Log(qk/mk)
		}
	}
	if sum < 0 {
		return 0
	}
	return sum
}
