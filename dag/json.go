package dag

import jsoniter "github.com/json-iterator/go"

// jsonAPI is the JSON view's codec: json-iterator configured to behave
// like encoding/json, used only for the human/debug-facing view (§6.2).
// It is intentionally separate from the canonical CBOR codec in
// codec.go: JSON map-key order is not meaningful here and must never be
// relied on for hashing.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// leafJSON is the §6.2 JSON rendering of a leaf: byte slices as base64
// (jsoniter's default for []byte, matching encoding/json). Spec §6 pins
// the exact field names verbatim — Hash, ItemName, Type, ContentHash,
// Content, ClassicMerkleRoot, CurrentLinkCount, Links, ParentHash,
// AdditionalData — so the JSON tags stay PascalCase, not snake_case.
type leafJSON struct {
	Hash              string            `json:"Hash"`
	ItemName          string            `json:"ItemName"`
	Type              string            `json:"Type"`
	ContentHash       []byte            `json:"ContentHash,omitempty"`
	Content           []byte            `json:"Content,omitempty"`
	HasContent        bool              `json:"HasContent"`
	ClassicMerkleRoot []byte            `json:"ClassicMerkleRoot,omitempty"`
	CurrentLinkCount  int               `json:"CurrentLinkCount"`
	Links             []Link            `json:"Links,omitempty"`
	ParentHash        string            `json:"ParentHash,omitempty"`
	AdditionalData    map[string]string `json:"AdditionalData,omitempty"`
	LeafCount         int               `json:"LeafCount"`
}

func toLeafJSON(l *DagLeaf) *leafJSON {
	return &leafJSON{
		Hash:              l.Hash,
		ItemName:          l.ItemName,
		Type:              string(l.Type),
		ContentHash:       l.ContentHash,
		Content:           l.Content,
		HasContent:        l.HasContent,
		ClassicMerkleRoot: l.ClassicMerkleRoot,
		CurrentLinkCount:  l.CurrentLinkCount,
		Links:             l.Links,
		ParentHash:        l.ParentHash,
		AdditionalData:    l.AdditionalData,
		LeafCount:         l.LeafCount,
	}
}

// MarshalJSON implements json.Marshaler via jsonAPI rather than letting
// callers fall back to encoding/json's reflection over the bare struct,
// so the field names stay pinned to the §6.2 view even if DagLeaf grows
// internal-only fields later.
func (l *DagLeaf) MarshalJSON() ([]byte, error) {
	return jsonAPI.Marshal(toLeafJSON(l))
}

func (l *DagLeaf) UnmarshalJSON(data []byte) error {
	var j leafJSON
	if err := jsonAPI.Unmarshal(data, &j); err != nil {
		return err
	}
	*l = DagLeaf{
		Hash:              j.Hash,
		ItemName:          j.ItemName,
		Type:              LeafType(j.Type),
		ContentHash:       j.ContentHash,
		Content:           j.Content,
		HasContent:        j.HasContent,
		ClassicMerkleRoot: j.ClassicMerkleRoot,
		CurrentLinkCount:  j.CurrentLinkCount,
		Links:             j.Links,
		ParentHash:        j.ParentHash,
		AdditionalData:    j.AdditionalData,
		LeafCount:         j.LeafCount,
	}
	return nil
}

// dagJSON is the JSON view of a whole Dag.
type dagJSON struct {
	Root   string           `json:"root"`
	Leaves map[string]*DagLeaf `json:"leaves"`
	Labels map[string]int   `json:"labels,omitempty"`
}

func (d *Dag) MarshalJSON() ([]byte, error) {
	return jsonAPI.Marshal(&dagJSON{Root: d.Root, Leaves: d.Leafs, Labels: d.Labels})
}

func (d *Dag) UnmarshalJSON(data []byte) error {
	var j dagJSON
	if err := jsonAPI.Unmarshal(data, &j); err != nil {
		return err
	}
	d.Root = j.Root
	d.Leafs = j.Leaves
	d.Labels = j.Labels
	return nil
}
