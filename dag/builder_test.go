package dag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("world"), 0644))

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.txt"), []byte("nested"), 0644))

	return root
}

func TestCreateDagSmallFiles(t *testing.T) {
	root := writeTestTree(t)

	d, err := CreateDag(root)
	require.NoError(t, err)
	require.NotEmpty(t, d.Root)

	rootLeaf := d.RootLeaf()
	require.NotNil(t, rootLeaf)
	assert.Equal(t, DirectoryLeafType, rootLeaf.Type)
	assert.Equal(t, 3, rootLeaf.CurrentLinkCount) // a.txt, b.txt, sub

	assert.NoError(t, Verify(d))
}

func TestCreateDagChunksLargeFiles(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 3*1024*1024) // forces chunking at the 2 MiB default
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), content, 0644))

	d, err := CreateDag(root)
	require.NoError(t, err)
	require.NoError(t, Verify(d))

	fileLeaf := d.RootLeaf().Links[0]
	leaf := d.Leafs[fileLeaf.Hash]
	assert.Equal(t, FileLeafType, leaf.Type)
	assert.True(t, leaf.HasChildren())

	reassembled, err := d.GetContentFromLeaf(leaf)
	require.NoError(t, err)
	assert.Equal(t, content, reassembled)
}

func TestCreateDagEmptyFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0644))

	d, err := CreateDag(root)
	require.NoError(t, err)
	require.NoError(t, Verify(d), "a genuinely empty file must still build and verify")

	leaf := d.Leafs[d.RootLeaf().Links[0].Hash]
	assert.Equal(t, FileLeafType, leaf.Type)
	assert.True(t, leaf.HasContent)
	assert.Empty(t, leaf.Content)
	assert.NotEmpty(t, leaf.ContentHash, "an empty file still carries a content hash")

	content, err := d.GetContentFromLeaf(leaf)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestCreateDagWithConfigParallelMatchesSequential(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 5*1024*1024)
	for i := range content {
		content[i] = byte(i % 97)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), content, 0644))

	seq, err := CreateDagWithConfig(root, DefaultConfig())
	require.NoError(t, err)

	par, err := CreateDagWithConfig(root, ParallelConfig())
	require.NoError(t, err)

	assert.Equal(t, seq.Root, par.Root, "parallel chunk hashing must not change the resulting dag")
}

func TestCreateDagWithTimestampAndAdditionalData(t *testing.T) {
	root := writeTestTree(t)

	d, err := CreateDagWithConfig(root, applyOptions(DefaultConfig(), WithTimestamp(), WithAdditionalData(map[string]string{"author": "test"})))
	require.NoError(t, err)

	rootLeaf := d.RootLeaf()
	require.NotNil(t, rootLeaf)
	assert.Equal(t, "test", rootLeaf.AdditionalData["author"])
	assert.NotEmpty(t, rootLeaf.AdditionalData["timestamp"])
	assert.NoError(t, Verify(d))
}

func TestCreateDagMimeTypePolicyRejects(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))

	reject := func(string) error { return assert.AnError }
	_, err := CreateDagWithConfig(root, applyOptions(DefaultConfig(), WithMimeTypePolicy(reject)))
	assert.Error(t, err)
}

func TestCreateDagSeparateContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))

	_, contentStore := NewEmptyDagStoreWithOptions()
	d, err := CreateDagWithConfig(root, applyOptions(DefaultConfig(), WithSeparateContent(contentStore)))
	require.NoError(t, err)

	fileCID := d.RootLeaf().Links[0].Hash
	leaf := d.Leafs[fileCID]
	assert.Empty(t, leaf.Content, "content must be routed to the content store, not embedded")

	stored, err := contentStore.GetContent(leaf.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), stored)
}

func TestDagBuilderManualConstruction(t *testing.T) {
	leafA := &DagLeaf{ItemName: "a", Type: ChunkLeafType, Content: []byte("a"), HasContent: true, ContentHash: sha256Sum([]byte("a"))}
	cidA, err := LeafCID(leafA)
	require.NoError(t, err)
	leafA.Hash = cidA

	root := &DagLeaf{
		ItemName:         "root",
		Type:             FileLeafType,
		CurrentLinkCount: 1,
		Links:            []Link{{Label: "1", Hash: cidA}},
	}
	root.ClassicMerkleRoot = classicMerkleRoot(root.childCIDs())
	cidRoot, err := LeafCID(root)
	require.NoError(t, err)
	root.Hash = cidRoot

	b := CreateDagBuilder()
	require.NoError(t, b.AddLeaf(leafA, root))
	require.NoError(t, b.AddLeaf(root, nil))

	d, err := b.BuildDag(root)
	require.NoError(t, err)
	assert.Equal(t, cidRoot, d.Root)
	assert.Equal(t, 2, d.RootLeaf().LeafCount)
	assert.NoError(t, Verify(d))
}
