package util

import "testing"

func TestBucketStats(t *testing.T) {
	d := BucketStats([]int{2, 2, 2})
	if d.Buckets != 3 || d.IDs != 6 || d.Mean != 2 || d.StdDev != 0 || d.Quality != 1 {
		t.Errorf("Equal buckets should have quality 1: %+v", d)
	}

	d = BucketStats([]int{1, 1, 10})
	if d.Smallest != 1 || d.Largest != 10 || d.Singletons != 2 {
		t.Errorf("Unexpected bounds %+v", d)
	}
	if d.Quality >= 0.5 {
		t.Errorf("Skewed buckets should have a low quality, got %.2f", d.Quality)
	}
	if d.Selectivity != 0.25 {
		t.Errorf("Expected selectivity 3/12, got %v", d.Selectivity)
	}

	if d := BucketStats(nil); d.Buckets != 0 || d.Quality != 0 {
		t.Errorf("Empty input should give zero stats: %+v", d)
	}
}
