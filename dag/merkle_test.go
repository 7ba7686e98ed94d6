package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassicMerkleRootEmpty(t *testing.T) {
	root := classicMerkleRoot(nil)
	assert.Nil(t, root)
}

func TestClassicMerkleRootSingle(t *testing.T) {
	root := classicMerkleRoot([]string{"cid-a"})
	assert.Equal(t, classicLeafHash("cid-a"), root)
}

func TestClassicMerkleRootDeterministic(t *testing.T) {
	cids := []string{"cid-a", "cid-b", "cid-c", "cid-d"}
	root1 := classicMerkleRoot(cids)
	root2 := classicMerkleRoot(cids)
	assert.Equal(t, root1, root2)
}

func TestClassicMerkleOddArityPromotesUnduplicated(t *testing.T) {
	// Three leaves: the third should be promoted as-is to level 1, never
	// hashed against a duplicate of itself.
	cids := []string{"cid-a", "cid-b", "cid-c"}
	leaves := [][]byte{classicLeafHash(cids[0]), classicLeafHash(cids[1]), classicLeafHash(cids[2])}
	levels := merkleLevels(leaves)

	require.Len(t, levels, 3)
	require.Len(t, levels[1], 2)
	assert.Equal(t, leaves[2], levels[1][1], "odd trailing node must be promoted unchanged, not duplicated")

	wantRoot := hashPair(levels[1][0], levels[1][1])
	assert.Equal(t, wantRoot, classicMerkleRoot(cids))
}

func TestClassicBranchRoundTripEvenArity(t *testing.T) {
	cids := []string{"cid-a", "cid-b", "cid-c", "cid-d"}
	root := classicMerkleRoot(cids)

	for i, c := range cids {
		branch, err := classicBranch(cids, i, "label")
		require.NoError(t, err)
		assert.True(t, verifyClassicBranch(classicLeafHash(c), branch, root), "branch for index %d must verify", i)
	}
}

func TestClassicBranchRoundTripOddArity(t *testing.T) {
	cids := []string{"cid-a", "cid-b", "cid-c"}
	root := classicMerkleRoot(cids)

	for i, c := range cids {
		branch, err := classicBranch(cids, i, "label")
		require.NoError(t, err)
		assert.True(t, verifyClassicBranch(classicLeafHash(c), branch, root), "branch for index %d must verify", i)
	}
}

func TestClassicBranchOutOfRange(t *testing.T) {
	_, err := classicBranch([]string{"a"}, 5, "label")
	assert.Error(t, err)
}

func TestGetBranchAndVerifyBranch(t *testing.T) {
	leaf := &DagLeaf{
		Hash:  "parent",
		Links: []Link{{Label: "1", Hash: "child-a"}, {Label: "2", Hash: "child-b"}, {Label: "3", Hash: "child-c"}},
	}
	leaf.ClassicMerkleRoot = classicMerkleRoot(leaf.childCIDs())

	branch, err := leaf.GetBranch("2")
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyBranch(branch))

	tampered := &ClassicTreeBranch{Label: branch.Label, Steps: append([]BranchStep{}, branch.Steps...)}
	if len(tampered.Steps) > 0 {
		tampered.Steps[0].Hash = sha256Sum([]byte("tampered"))
		assert.Error(t, leaf.VerifyBranch(tampered))
	}
}
