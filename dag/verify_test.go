package dag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSmallDag(t *testing.T) *Dag {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("world"), 0644))
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.txt"), []byte("nested"), 0644))

	d, err := CreateDag(root)
	require.NoError(t, err)
	return d
}

func TestVerifyAcceptsCleanDag(t *testing.T) {
	d := buildSmallDag(t)
	assert.NoError(t, Verify(d))
}

func TestVerifyDetectsContentTamper(t *testing.T) {
	d := buildSmallDag(t)

	for cidStr, leaf := range d.Leafs {
		if leaf.Type == FileLeafType && len(leaf.Content) > 0 {
			leaf.Content = []byte("tampered")
			d.Leafs[cidStr] = leaf
			break
		}
	}

	assert.Error(t, Verify(d))
}

func TestVerifyDetectsOrphanLeaf(t *testing.T) {
	d := buildSmallDag(t)

	orphan := &DagLeaf{ItemName: "ghost", Type: ChunkLeafType, Content: []byte("x"), HasContent: true, ContentHash: sha256Sum([]byte("x"))}
	cidStr, err := LeafCID(orphan)
	require.NoError(t, err)
	orphan.Hash = cidStr
	d.Leafs[cidStr] = orphan

	assert.Error(t, Verify(d))
}

func TestVerifyDetectsLinkMismatch(t *testing.T) {
	d := buildSmallDag(t)
	root := d.RootLeaf()
	require.NotEmpty(t, root.Links)

	root.Links[0].Hash = "not-a-real-cid"

	assert.Error(t, Verify(d))
}

func TestVerifyRootLeafRejectsParentHash(t *testing.T) {
	leaf := &DagLeaf{Type: ChunkLeafType, Content: []byte("x"), ContentHash: sha256Sum([]byte("x")), ParentHash: "p"}
	cidStr, err := LeafCID(leaf)
	require.NoError(t, err)
	leaf.Hash = cidStr

	assert.Error(t, leaf.VerifyRootLeaf())
}

func TestVerifyPartialRoundTrip(t *testing.T) {
	d := buildSmallDag(t)
	root := d.RootLeaf()
	require.NotEmpty(t, root.Links)

	target := d.Leafs[root.Links[0].Hash]
	branch, err := root.GetBranch(root.Links[0].Label)
	require.NoError(t, err)

	err = VerifyPartial(root, []*DagLeaf{root}, target, []*ClassicTreeBranch{branch})
	assert.NoError(t, err)
}

func TestVerifyPartialRejectsWrongLeaf(t *testing.T) {
	d := buildSmallDag(t)
	root := d.RootLeaf()
	require.Len(t, root.Links, 3)

	branch, err := root.GetBranch(root.Links[0].Label)
	require.NoError(t, err)

	wrongLeaf := d.Leafs[root.Links[1].Hash]
	err = VerifyPartial(root, []*DagLeaf{root}, wrongLeaf, []*ClassicTreeBranch{branch})
	assert.Error(t, err)
}
