package dag

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// VerifyRootLeaf checks a root leaf in isolation: its own CID recomputes
// correctly and its structural invariants hold. It does not check
// children — that is VerifyLeaf's job once a parent is known, or full
// Verify's job for the whole tree.
func (l *DagLeaf) VerifyRootLeaf() error {
	if l.ParentHash != "" {
		return newErr(KindUnknownParent, l.Hash, fmt.Errorf("root leaf must not carry a parent hash"))
	}
	return l.verifySelf()
}

// VerifyLeaf checks l against its claimed parent: l's own CID recomputes
// correctly, l's structural invariants hold, and parent actually lists l
// among its Links with a CID match.
func (l *DagLeaf) VerifyLeaf(parent *DagLeaf) error {
	if err := l.verifySelf(); err != nil {
		return err
	}
	if parent == nil {
		return nil
	}
	found := false
	for _, link := range parent.Links {
		if link.Hash == l.Hash {
			found = true
			break
		}
	}
	if !found {
		return newErr(KindLinkMismatch, l.Hash, fmt.Errorf("leaf not linked from claimed parent %s", parent.Hash))
	}
	return nil
}

// verifySelf recomputes l's CID from its own fields and checks its
// structural invariants and (if it has children) its Classic Merkle
// root.
func (l *DagLeaf) verifySelf() error {
	if err := l.validateStructure(); err != nil {
		return newErr(KindFormat, l.Hash, err)
	}
	if _, err := ParseCID(l.Hash); err != nil {
		return newErr(KindFormat, l.Hash, fmt.Errorf("malformed cid: %w", err))
	}

	gotCID, err := LeafCID(l)
	if err != nil {
		return newErr(KindFormat, l.Hash, err)
	}
	if gotCID != l.Hash {
		return newErr(KindHashMismatch, l.Hash, fmt.Errorf("recomputed cid %s does not match", gotCID))
	}

	if l.HasChildren() {
		wantRoot := classicMerkleRoot(l.childCIDs())
		if string(wantRoot) != string(l.ClassicMerkleRoot) {
			return newErr(KindMerkleMismatch, l.Hash, fmt.Errorf("classic merkle root mismatch"))
		}
	}

	// l.Content is nil (as opposed to a non-nil zero-length slice) only
	// when content was routed to a ContentStore and never loaded back
	// here (WithSeparateContent); there is nothing local to check in
	// that case. A genuinely empty file still reads back as a non-nil
	// zero-length slice (os.ReadFile's contract), so its hash is still
	// verified rather than silently skipped.
	if (l.Type == ChunkLeafType || (l.Type == FileLeafType && l.HasContent)) && l.Content != nil {
		want := sha256Sum(l.Content)
		if string(want) != string(l.ContentHash) {
			return newErr(KindHashMismatch, l.Hash, fmt.Errorf("content hash mismatch"))
		}
	}

	return nil
}

// Verify performs a full verification of d (spec §6.3): every leaf's CID
// and Classic Merkle root recompute, every Links entry in a parent
// resolves to a present child whose own CID matches, and every
// non-root leaf is reachable from the root by exactly one path (no
// orphans, no cycles). CID recomputation runs concurrently across
// leaves via an xsync.MapOf-backed worker set, since each leaf's check
// is independent of every other's.
func Verify(d *Dag) error {
	root := d.RootLeaf()
	if root == nil {
		return newErr(KindOrphanLeaf, d.Root, fmt.Errorf("root leaf missing"))
	}
	if err := root.VerifyRootLeaf(); err != nil {
		return err
	}

	failures := xsync.NewMapOf[string, error]()
	var wg sync.WaitGroup
	for cidStr, leaf := range d.Leafs {
		cidStr, leaf := cidStr, leaf
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := leaf.verifySelf(); err != nil {
				failures.Store(cidStr, err)
			}
		}()
	}
	wg.Wait()

	var firstErr error
	failures.Range(func(_ string, err error) bool {
		if firstErr == nil {
			firstErr = err
		}
		return true
	})
	if firstErr != nil {
		return firstErr
	}

	return verifyReachability(d)
}

// verifyReachability performs a BFS from the root, requiring every leaf
// in d.Leafs to be visited exactly once: unreached leaves are orphans,
// and a leaf reached twice down different paths would mean d.Leafs held
// a DAG with an unexpected shared-ownership shape this tree's per-parent
// Links model does not produce.
func verifyReachability(d *Dag) error {
	visited := make(map[string]bool, len(d.Leafs))
	err := d.IterateDag(func(leaf *DagLeaf, parent *DagLeaf) error {
		if parent != nil {
			if err := leaf.VerifyLeaf(parent); err != nil {
				return err
			}
		}
		for _, link := range leaf.Links {
			if _, ok := d.Leafs[link.Hash]; !ok {
				return newErr(KindLinkMismatch, leaf.Hash, fmt.Errorf("linked child %s not present", link.Hash))
			}
		}
		visited[leaf.Hash] = true
		return nil
	})
	if err != nil {
		return err
	}

	for cidStr := range d.Leafs {
		if !visited[cidStr] {
			return newErr(KindOrphanLeaf, cidStr, fmt.Errorf("leaf present but unreachable from root"))
		}
	}
	return nil
}

// PartialVerifyResult is what VerifyPartial checks: a named leaf's
// inclusion proof against a (possibly partial) set of ancestor leaves
// reaching the root, without requiring the rest of the DAG.
type PartialVerifyResult struct {
	LeafCID string
	Valid   bool
}

// VerifyPartial checks that leaf is included under root via ancestors,
// an ordered slice of ancestor leaves from the root down to leaf's
// direct parent (ancestors[0] is root, ancestors[len-1] is leaf's
// parent), using each ancestor's Classic Merkle branch rather than
// requiring full sibling subtrees (spec §6.4, partial verification for
// range queries and streamed transmission). branches[i] is
// ancestors[i]'s branch toward ancestors[i+1], except the last branch,
// which is ancestors[len-1]'s branch toward leaf itself.
func VerifyPartial(root *DagLeaf, ancestors []*DagLeaf, leaf *DagLeaf, branches []*ClassicTreeBranch) error {
	if root == nil || leaf == nil {
		return newErr(KindOrphanLeaf, "", fmt.Errorf("root and leaf must be non-nil"))
	}
	if len(ancestors) == 0 || ancestors[0] != root {
		return newErr(KindProofInvalid, leaf.Hash, fmt.Errorf("ancestor chain must start at root"))
	}
	if len(ancestors) != len(branches) {
		return newErr(KindProofInvalid, leaf.Hash, fmt.Errorf("ancestor count %d does not match branch count %d", len(ancestors), len(branches)))
	}

	if err := root.VerifyRootLeaf(); err != nil {
		return err
	}

	for i, branch := range branches {
		parent := ancestors[i]
		if err := parent.verifySelf(); err != nil {
			return err
		}
		if err := parent.VerifyBranch(branch); err != nil {
			return err
		}

		idx, err := parent.indexForLabel(branch.Label)
		if err != nil {
			return err
		}

		var wantNextCID string
		if i+1 < len(ancestors) {
			wantNextCID = ancestors[i+1].Hash
		} else {
			wantNextCID = leaf.Hash
		}
		if parent.Links[idx].Hash != wantNextCID {
			return newErr(KindLinkMismatch, leaf.Hash, fmt.Errorf("branch at depth %d does not name the next node in the chain", i))
		}
	}

	return leaf.verifySelf()
}
