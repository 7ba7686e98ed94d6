package dag

import (
	"bytes"
	"errors"
	"fmt"
)

var errIndexOutOfRange = errors.New("link index out of range")

// BranchStep is one sibling hash on an inclusion-proof path, tagged with
// which side it sits on relative to the node being proven.
type BranchStep struct {
	Hash []byte
	Left bool // true: sibling combines on the left of the running hash
}

// ClassicTreeBranch is an inclusion proof tying one child's CID to its
// parent's ClassicMerkleRoot: the ordered sibling hashes encountered
// walking from that child's position to the root of the parent's
// Classic Merkle tree (§4.2).
type ClassicTreeBranch struct {
	Label string
	Steps []BranchStep
}

// classicLeafHash is level-0 of the Classic Merkle tree: SHA-256 of the
// child CID's UTF-8 bytes.
func classicLeafHash(childCID string) []byte {
	return sha256Sum([]byte(childCID))
}

func hashPair(left, right []byte) []byte {
	buf := make([]byte, 0, len(left)+len(right))
	buf = append(buf, left...)
	buf = append(buf, right...)
	return sha256Sum(buf)
}

// merkleLevels builds every level of the Classic Merkle tree bottom-up,
// level[0] being the leaf hashes. Odd trailing nodes are promoted
// unchanged to the next level rather than duplicated — duplicating the
// last node is the classic interoperability bug this tree explicitly
// avoids (spec §9).
func merkleLevels(leaves [][]byte) [][][]byte {
	if len(leaves) == 0 {
		return [][][]byte{{}}
	}
	levels := [][][]byte{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([][]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, hashPair(cur[i], cur[i+1]))
			} else {
				next = append(next, cur[i])
			}
		}
		levels = append(levels, next)
		cur = next
	}
	return levels
}

// classicMerkleRoot computes the Classic Merkle root over an ordered list
// of child CIDs (§4.2). It returns nil for an empty list — "absent" per
// spec rule 4, meaning the caller must leave ClassicMerkleRoot unset.
func classicMerkleRoot(childCIDs []string) []byte {
	if len(childCIDs) == 0 {
		return nil
	}
	leaves := make([][]byte, len(childCIDs))
	for i, c := range childCIDs {
		leaves[i] = classicLeafHash(c)
	}
	levels := merkleLevels(leaves)
	top := levels[len(levels)-1]
	if len(top) == 0 {
		return nil
	}
	return top[0]
}

// classicBranch builds the inclusion proof for childCIDs[index].
func classicBranch(childCIDs []string, index int, label string) (*ClassicTreeBranch, error) {
	if index < 0 || index >= len(childCIDs) {
		return nil, newErr(KindLinkMismatch, "", errIndexOutOfRange)
	}

	leaves := make([][]byte, len(childCIDs))
	for i, c := range childCIDs {
		leaves[i] = classicLeafHash(c)
	}
	levels := merkleLevels(leaves)

	steps := make([]BranchStep, 0, len(levels))
	idx := index
	for lvl := 0; lvl < len(levels)-1; lvl++ {
		cur := levels[lvl]
		if idx%2 == 0 {
			if idx+1 < len(cur) {
				steps = append(steps, BranchStep{Hash: cur[idx+1], Left: false})
			}
			// else: idx was the odd trailing node, promoted unchanged —
			// no sibling, no step, value carries to the next level as-is.
		} else {
			steps = append(steps, BranchStep{Hash: cur[idx-1], Left: true})
		}
		idx = idx / 2
	}

	return &ClassicTreeBranch{Label: label, Steps: steps}, nil
}

// verifyClassicBranch replays a leaf hash through branch's steps and
// compares the result against root.
func verifyClassicBranch(leafHash []byte, branch *ClassicTreeBranch, root []byte) bool {
	cur := leafHash
	for _, step := range branch.Steps {
		if step.Left {
			cur = hashPair(step.Hash, cur)
		} else {
			cur = hashPair(cur, step.Hash)
		}
	}
	return bytes.Equal(cur, root)
}

// indexForLabel returns the position of label within l.Links.
func (l *DagLeaf) indexForLabel(label string) (int, error) {
	for i, link := range l.Links {
		if link.Label == label {
			return i, nil
		}
	}
	return -1, newErr(KindLinkMismatch, l.Hash, fmt.Errorf("no link with label %q", label))
}

// GetBranch returns the Classic Merkle inclusion proof for the child
// labeled label within l's own Classic Merkle tree.
func (l *DagLeaf) GetBranch(label string) (*ClassicTreeBranch, error) {
	idx, err := l.indexForLabel(label)
	if err != nil {
		return nil, err
	}
	return classicBranch(l.childCIDs(), idx, label)
}

// VerifyBranch checks that branch reconstructs l's stored
// ClassicMerkleRoot starting from the CID of the child branch.Label
// names in l.Links.
func (l *DagLeaf) VerifyBranch(branch *ClassicTreeBranch) error {
	idx, err := l.indexForLabel(branch.Label)
	if err != nil {
		return err
	}
	leafHash := classicLeafHash(l.Links[idx].Hash)
	if !verifyClassicBranch(leafHash, branch, l.ClassicMerkleRoot) {
		return newErr(KindProofInvalid, l.Hash, fmt.Errorf("branch for label %q does not reproduce classic merkle root", branch.Label))
	}
	return nil
}
