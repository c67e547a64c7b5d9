// Package util
//
// This file describes how the identifiers of an index are spread over its buckets.
package util

import (
	"math"
)

// BucketDistribution summarizes the bucket sizes of an index
type BucketDistribution struct {
	Buckets     int     `json:"buckets"`
	IDs         int     `json:"ids"`
	Smallest    int     `json:"smallest"`
	Largest     int     `json:"largest"`
	Singletons  int     `json:"singletons"` // buckets holding a single identifier
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_deviation"`
	Selectivity float64 `json:"selectivity"` // unique values per identifier (1 = every value unique)
	Quality     float64 `json:"distribution_quality"`
}

// BucketStats computes the distribution of the given bucket sizes. Quality is 1 for
// buckets of equal size and drops towards 0 as a few buckets hold most identifiers.
func BucketStats(sizes []int) BucketDistribution {
	d := BucketDistribution{Buckets: len(sizes)}
	if len(sizes) == 0 {
		return d
	}

	d.Smallest, d.Largest = sizes[0], sizes[0]
	for _, n := range sizes {
		d.IDs += n
		d.Smallest = min(d.Smallest, n)
		d.Largest = max(d.Largest, n)
		if n == 1 {
			d.Singletons++
		}
	}
	d.Mean = float64(d.IDs) / float64(len(sizes))

	var squares float64
	for _, n := range sizes {
		diff := float64(n) - d.Mean
		squares += diff * diff
	}
	d.StdDev = math.Sqrt(squares / float64(len(sizes)))

	if d.IDs > 0 {
		d.Selectivity = float64(len(sizes)) / float64(d.IDs)
	}

	spread := 1.0
	if d.Largest > 0 {
		spread = float64(d.Smallest) / float64(d.Largest)
	}
	var cv float64
	if d.Mean > 0 {
		cv = d.StdDev / d.Mean
	}
	d.Quality = (1-math.Min(1, cv))*0.5 + spread*0.5
	return d
}
