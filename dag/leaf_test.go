package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStructureChunk(t *testing.T) {
	ok := &DagLeaf{Type: ChunkLeafType, Content: []byte("x"), HasContent: true, ContentHash: sha256Sum([]byte("x"))}
	assert.NoError(t, ok.validateStructure())

	missingContent := &DagLeaf{Type: ChunkLeafType, ContentHash: sha256Sum([]byte("x"))}
	assert.Error(t, missingContent.validateStructure())

	withLinks := &DagLeaf{Type: ChunkLeafType, Content: []byte("x"), HasContent: true, ContentHash: sha256Sum([]byte("x")), Links: []Link{{Label: "1", Hash: "a"}}}
	assert.Error(t, withLinks.validateStructure())
}

func TestValidateStructureFile(t *testing.T) {
	selfContained := &DagLeaf{Type: FileLeafType, Content: []byte("x"), HasContent: true, ContentHash: sha256Sum([]byte("x"))}
	assert.NoError(t, selfContained.validateStructure())

	empty := &DagLeaf{Type: FileLeafType, Content: []byte{}, HasContent: true, ContentHash: sha256Sum(nil)}
	assert.NoError(t, empty.validateStructure(), "a genuinely empty file is still a valid self-contained leaf")

	chunked := &DagLeaf{Type: FileLeafType, Links: []Link{{Label: "1", Hash: "a"}}}
	assert.NoError(t, chunked.validateStructure())

	both := &DagLeaf{Type: FileLeafType, Content: []byte("x"), HasContent: true, Links: []Link{{Label: "1", Hash: "a"}}}
	assert.Error(t, both.validateStructure())

	neither := &DagLeaf{Type: FileLeafType}
	assert.Error(t, neither.validateStructure())

	chunkedWithHash := &DagLeaf{Type: FileLeafType, Links: []Link{{Label: "1", Hash: "a"}}, ContentHash: []byte("x")}
	assert.Error(t, chunkedWithHash.validateStructure())
}

func TestValidateStructureDirectory(t *testing.T) {
	ok := &DagLeaf{Type: DirectoryLeafType, Links: []Link{{Label: "1", Hash: "a"}}}
	assert.NoError(t, ok.validateStructure())

	withContent := &DagLeaf{Type: DirectoryLeafType, Content: []byte("x")}
	assert.Error(t, withContent.validateStructure())
}

func TestValidateStructureAdditionalDataRootOnly(t *testing.T) {
	root := &DagLeaf{Type: DirectoryLeafType, Links: []Link{{Label: "1", Hash: "a"}}, AdditionalData: map[string]string{"k": "v"}}
	assert.NoError(t, root.validateStructure())

	nonRoot := &DagLeaf{Type: DirectoryLeafType, Links: []Link{{Label: "1", Hash: "a"}}, AdditionalData: map[string]string{"k": "v"}, ParentHash: "parent"}
	assert.Error(t, nonRoot.validateStructure())
}

func TestHasChildren(t *testing.T) {
	leaf := &DagLeaf{}
	assert.False(t, leaf.HasChildren())
	leaf.Links = []Link{{Label: "1", Hash: "a"}}
	assert.True(t, leaf.HasChildren())
}

func TestChildCIDs(t *testing.T) {
	leaf := &DagLeaf{Links: []Link{{Label: "1", Hash: "a"}, {Label: "2", Hash: "b"}}}
	assert.Equal(t, []string{"a", "b"}, leaf.childCIDs())
}
