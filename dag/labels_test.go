package dag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLabelsAndRangeQuery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("world"), 0644))

	d, err := CreateDag(root)
	require.NoError(t, err)
	require.NoError(t, CalculateLabels(d))

	assert.Len(t, d.Labels, len(d.Leafs))
	assert.Equal(t, 1, d.Labels[d.Root], "root must carry label 1, per spec §4.7")

	all, err := GetHashesByLabelRange(d, 1, len(d.Leafs))
	require.NoError(t, err)
	assert.Len(t, all, len(d.Leafs))

	none, err := GetHashesByLabelRange(d, 100, 200)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetHashesByLabelRangeRequiresLabels(t *testing.T) {
	d := NewDag("root")
	_, err := GetHashesByLabelRange(d, 0, 1)
	assert.Error(t, err)
}
