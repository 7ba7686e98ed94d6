package dag

import (
	"fmt"
	"sort"
)

// CalculateLabels assigns every leaf in d a position in the canonical
// pre-order traversal from the root and stores the result as d.Labels,
// a CID-to-position index (§4.7). This is what GetHashesByLabelRange
// queries — label direction is CID -> position, the opposite of the
// position -> CID lookup a naive "numbered leaves" index would suggest,
// because callers start from a CID they already have (from a proof or a
// prior packet) and want to know where it falls in the traversal, not
// the reverse.
//
// §4.7 calls for pre-order, not GetLeafSequence's breadth-first order
// (§4.6): visit a leaf, then immediately descend into its first child's
// whole subtree before moving to its second child, assigning the
// counter on first visit. A level-order walk would number siblings
// before either one's children, which is a different (and not
// interoperable) sequence.
func CalculateLabels(d *Dag) error {
	root := d.RootLeaf()
	if root == nil {
		return newErr(KindOrphanLeaf, d.Root, fmt.Errorf("root leaf not present"))
	}

	labels := make(map[string]int, len(d.Leafs))
	pos := 1 // spec §4.7: counter starts at 1, the root, not 0

	visited := make(map[string]bool, len(d.Leafs))
	var walk func(leaf *DagLeaf) error
	walk = func(leaf *DagLeaf) error {
		if visited[leaf.Hash] {
			return newErr(KindCycleDetected, leaf.Hash, nil)
		}
		visited[leaf.Hash] = true
		labels[leaf.Hash] = pos
		pos++
		for _, link := range leaf.Links {
			child, ok := d.Leafs[link.Hash]
			if !ok {
				continue // partial DAG: child not present, nothing to label
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return err
	}

	d.Labels = labels
	return nil
}

// GetHashesByLabelRange returns the CIDs of every leaf whose label falls
// in [lo, hi], ordered by label. CalculateLabels must have been run
// first.
func GetHashesByLabelRange(d *Dag, lo, hi int) ([]string, error) {
	if d.Labels == nil {
		return nil, newErr(KindLabelsMissing, d.Root, fmt.Errorf("labels not calculated"))
	}
	if hi < lo {
		return nil, nil
	}

	type entry struct {
		cidStr string
		label  int
	}
	matches := make([]entry, 0)
	for cidStr, label := range d.Labels {
		if label >= lo && label <= hi {
			matches = append(matches, entry{cidStr: cidStr, label: label})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].label < matches[j].label })

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.cidStr
	}
	return out, nil
}
