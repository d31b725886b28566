// Package reconcile turns consecutive layout passes into transition frames.
// Keyed computes the enter/update/exit partition; Driver keeps the previous
// visible set and produces the positions each rendering backend animates.
package reconcile

// Diff partitions two keyed sets.
type Diff struct {
	Entering   []int
	Persisting []int
	Exiting    []int
}

// Keyed compares the previous and next key sequences. Entering and Persisting
// follow next's order, Exiting follows prev's order. The three sets are
// disjoint.
func Keyed(prev, next []int) Diff {
	before := make(map[int]struct{}, len(prev))
	for _, k := range prev {
		before[k] = struct{}{}
	}
	after := make(map[int]struct{}, len(next))

	var d Diff
	for _, k := range next {
		if _, dup := after[k]; dup {
			continue
		}
		after[k] = struct{}{}
		if _, ok := before[k]; ok {
			d.Persisting = append(d.Persisting, k)
		} else {
			d.Entering = append(d.Entering, k)
		}
	}
	seen := make(map[int]struct{}, len(prev))
	for _, k := range prev {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := after[k]; !ok {
			d.Exiting = append(d.Exiting, k)
		}
	}
	return d
}
