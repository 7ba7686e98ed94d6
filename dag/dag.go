package dag

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Dag is the full structure produced by a Build and consumed by Verify:
// a root CID, every leaf reachable from it keyed by its own CID, and an
// optional label index (§3, "DAG").
type Dag struct {
	Root  string
	Leafs map[string]*DagLeaf
	// Labels maps a leaf's CID to its position in the canonical pre-order
	// traversal (§4.7). Nil until CalculateLabels has run.
	Labels map[string]int
}

// NewDag returns an empty Dag ready to receive transmission packets.
func NewDag(root string) *Dag {
	return &Dag{
		Root:  root,
		Leafs: make(map[string]*DagLeaf),
	}
}

// RootLeaf returns the root leaf, or nil if it has not arrived yet.
func (d *Dag) RootLeaf() *DagLeaf {
	return d.Leafs[d.Root]
}

// ExpectedLeafCount returns how many leaves the sender's root claims the
// whole DAG has, or 0 if the root has not arrived yet. It is the upstream
// LeafCount supplement described in SPEC_FULL.md §4, letting a streaming
// receiver know when it has everything without a separate count message.
func (d *Dag) ExpectedLeafCount() int {
	root := d.RootLeaf()
	if root == nil {
		return 0
	}
	return root.LeafCount
}

// IterateDag walks the DAG breadth-first from the root, calling visit
// with each leaf and its parent (nil for the root). It is used both to
// drive transmission emission (§4.6) and for general inspection.
func (d *Dag) IterateDag(visit func(leaf *DagLeaf, parent *DagLeaf) error) error {
	root := d.RootLeaf()
	if root == nil {
		return newErr(KindOrphanLeaf, d.Root, fmt.Errorf("root leaf not present"))
	}

	type queued struct {
		leaf   *DagLeaf
		parent *DagLeaf
	}

	queue := []queued{{leaf: root, parent: nil}}
	visited := make(map[string]bool, len(d.Leafs))

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if visited[cur.leaf.Hash] {
			return newErr(KindCycleDetected, cur.leaf.Hash, nil)
		}
		visited[cur.leaf.Hash] = true

		if err := visit(cur.leaf, cur.parent); err != nil {
			return err
		}

		for _, link := range cur.leaf.Links {
			child, ok := d.Leafs[link.Hash]
			if !ok {
				continue // partial DAG: child not present, nothing to visit
			}
			queue = append(queue, queued{leaf: child, parent: cur.leaf})
		}
	}

	return nil
}

// GetContentFromLeaf returns a leaf's bytes: its own Content directly for
// a chunk or a self-contained file, or the concatenation of its chunk
// children's Content, in Links order, for a chunked file. Directories
// have no content and return an error.
func (d *Dag) GetContentFromLeaf(leaf *DagLeaf) ([]byte, error) {
	switch leaf.Type {
	case ChunkLeafType:
		return leaf.Content, nil
	case FileLeafType:
		if len(leaf.Content) > 0 || !leaf.HasChildren() {
			return leaf.Content, nil
		}
		out := make([]byte, 0)
		for _, link := range leaf.Links {
			chunk, ok := d.Leafs[link.Hash]
			if !ok {
				return nil, newErr(KindLinkMismatch, leaf.Hash, fmt.Errorf("missing chunk %s", link.Hash))
			}
			if chunk.Type != ChunkLeafType {
				return nil, newErr(KindLinkMismatch, leaf.Hash, fmt.Errorf("link %s is not a chunk", link.Hash))
			}
			out = append(out, chunk.Content...)
		}
		return out, nil
	default:
		return nil, newErr(KindLinkMismatch, leaf.Hash, fmt.Errorf("leaf type %q has no content", leaf.Type))
	}
}

// wireDag is the §6.1 DAG record: {root, leaves, labels?}. It exists
// separately from Dag so CBOR's own map-key handling (root/leaves/labels
// are few, fixed, ASCII-sorted keys already) needs no custom ordering
// logic — only the per-leaf canonical encoding in codec.go is order
// sensitive.
type wireDag struct {
	Root   string              `cbor:"root"`
	Leaves map[string]*DagLeaf `cbor:"leaves"`
	Labels map[string]int      `cbor:"labels,omitempty"`
}

// leafWire mirrors DagLeaf for the full (non-CID) wire encoding, which —
// unlike the CID pre-image — does include ParentHash and LeafCount.
type leafWire struct {
	Hash              string            `cbor:"Hash"`
	ItemName          string            `cbor:"ItemName"`
	Type              string            `cbor:"Type"`
	ContentHash       []byte            `cbor:"ContentHash,omitempty"`
	Content           []byte            `cbor:"Content,omitempty"`
	HasContent        bool              `cbor:"HasContent"`
	ClassicMerkleRoot []byte            `cbor:"ClassicMerkleRoot,omitempty"`
	CurrentLinkCount  uint64            `cbor:"CurrentLinkCount"`
	Links             []Link            `cbor:"Links"`
	ParentHash        string            `cbor:"ParentHash"`
	AdditionalData    map[string]string `cbor:"AdditionalData,omitempty"`
	LeafCount         int               `cbor:"LeafCount"`
}

func toLeafWire(l *DagLeaf) *leafWire {
	return &leafWire{
		Hash:              l.Hash,
		ItemName:          l.ItemName,
		Type:              string(l.Type),
		ContentHash:       l.ContentHash,
		Content:           l.Content,
		HasContent:        l.HasContent,
		ClassicMerkleRoot: l.ClassicMerkleRoot,
		CurrentLinkCount:  uint64(l.CurrentLinkCount),
		Links:             l.Links,
		ParentHash:        l.ParentHash,
		AdditionalData:    l.AdditionalData,
		LeafCount:         l.LeafCount,
	}
}

func fromLeafWire(w *leafWire) *DagLeaf {
	return &DagLeaf{
		Hash:              w.Hash,
		ItemName:          w.ItemName,
		Type:              LeafType(w.Type),
		ContentHash:       w.ContentHash,
		Content:           w.Content,
		HasContent:        w.HasContent,
		ClassicMerkleRoot: w.ClassicMerkleRoot,
		CurrentLinkCount:  int(w.CurrentLinkCount),
		Links:             w.Links,
		ParentHash:        w.ParentHash,
		AdditionalData:    w.AdditionalData,
		LeafCount:         w.LeafCount,
	}
}

// MarshalCBOR implements cbor.Marshaler so a *DagLeaf embedded anywhere
// (including inside Dag.Leafs) always encodes via leafWire.
func (l *DagLeaf) MarshalCBOR() ([]byte, error) {
	return canonicalMode.Marshal(toLeafWire(l))
}

// UnmarshalCBOR implements cbor.Unmarshaler. Unknown keys are ignored by
// default (forward compatibility, §4.1); fxamacker/cbor's struct decode
// already does this for fields with no matching tag.
func (l *DagLeaf) UnmarshalCBOR(data []byte) error {
	var w leafWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	*l = *fromLeafWire(&w)
	return nil
}

// Serialize encodes the whole DAG to the canonical CBOR wire format
// (§6.1). This is the interoperable, byte-exact format: two conforming
// implementations given the same Dag must produce the same bytes.
func (d *Dag) Serialize() ([]byte, error) {
	w := wireDag{Root: d.Root, Leaves: d.Leafs, Labels: d.Labels}
	data, err := canonicalMode.Marshal(w)
	if err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("encoding dag: %w", err))
	}
	return data, nil
}

// DeserializeDag decodes a CBOR-encoded DAG produced by Serialize. It
// does not verify the DAG — Verify is a separate explicit step (§6).
func DeserializeDag(data []byte) (*Dag, error) {
	var w wireDag
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("decoding dag: %w", err))
	}
	return &Dag{Root: w.Root, Leafs: w.Leaves, Labels: w.Labels}, nil
}
