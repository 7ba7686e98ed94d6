package dag

import (
	"fmt"

	"github.com/HORNET-Storage/scionic-merkletree/internal/logging"
)

// TransmissionPacket is one unit of a streamed DAG transfer (§4.6): a
// single leaf plus, for every non-root leaf, the Classic Merkle branch
// proving it belongs under its parent's ClassicMerkleRoot. The receiver
// never has to hold the whole DAG in memory to validate each arriving
// leaf against what it has seen so far.
type TransmissionPacket struct {
	Leaf   *DagLeaf
	Parent string // parent CID; empty for the root packet
	Branch *ClassicTreeBranch
}

// SerializableTransmissionPacket is the CBOR wire form of a
// TransmissionPacket (§6.1).
type SerializableTransmissionPacket struct {
	Leaf   *DagLeaf           `cbor:"leaf"`
	Parent string             `cbor:"parent,omitempty"`
	Branch *ClassicTreeBranch `cbor:"branch,omitempty"`
}

func (p *TransmissionPacket) ToSerializable() *SerializableTransmissionPacket {
	return &SerializableTransmissionPacket{Leaf: p.Leaf, Parent: p.Parent, Branch: p.Branch}
}

// TransmissionPacketFromSerializable reverses ToSerializable.
func TransmissionPacketFromSerializable(s *SerializableTransmissionPacket) *TransmissionPacket {
	return &TransmissionPacket{Leaf: s.Leaf, Parent: s.Parent, Branch: s.Branch}
}

// GetLeafSequence returns d's leaves as an ordered slice of transmission
// packets, breadth-first from the root, each non-root packet carrying
// the Classic Merkle branch its parent can verify it against (§4.6 step
// 1-2). A sender streams these in order; a receiver can validate each
// packet the moment it arrives using only the parent it already holds.
func GetLeafSequence(d *Dag) ([]*TransmissionPacket, error) {
	var packets []*TransmissionPacket

	err := d.IterateDag(func(leaf *DagLeaf, parent *DagLeaf) error {
		packet := &TransmissionPacket{Leaf: leaf}
		if parent != nil {
			packet.Parent = parent.Hash
			branch, err := parent.GetBranch(findLabel(parent, leaf.Hash))
			if err != nil {
				return err
			}
			packet.Branch = branch
		}
		packets = append(packets, packet)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packets, nil
}

func findLabel(parent *DagLeaf, childCID string) string {
	for _, link := range parent.Links {
		if link.Hash == childCID {
			return link.Label
		}
	}
	return ""
}

// StreamAssembler incrementally reconstructs a Dag from an ordered
// stream of TransmissionPackets, verifying each one against its already
// -received parent as it arrives (§4.6 steps 3-4) rather than waiting
// for the whole transfer and verifying at the end.
type StreamAssembler struct {
	dag          *Dag
	expectedRoot string
	leafStore    LeafStore
	logger       logging.Logger
}

// NewStreamAssembler returns a StreamAssembler that verifies incoming
// packets against root and keeps accepted leaves in its in-memory Dag,
// also writing each one to store when store is non-nil.
func NewStreamAssembler(root string, store LeafStore, logger logging.Logger) *StreamAssembler {
	return &StreamAssembler{
		dag:          NewDag(root),
		expectedRoot: root,
		leafStore:    store,
		logger:       logger,
	}
}

// ApplyTransmissionPacket verifies and, on success, incorporates packet
// into the assembler's in-progress Dag. The first packet applied must be
// the root (Parent == ""); every later packet's Parent must already be
// known.
func (a *StreamAssembler) ApplyTransmissionPacket(packet *TransmissionPacket) error {
	if packet == nil || packet.Leaf == nil {
		return newErr(KindFormat, "", fmt.Errorf("nil packet or leaf"))
	}
	leaf := packet.Leaf

	if packet.Parent == "" {
		if leaf.Hash != a.expectedRoot {
			return newErr(KindHashMismatch, leaf.Hash, fmt.Errorf("root packet cid does not match expected root %s", a.expectedRoot))
		}
		if err := leaf.VerifyRootLeaf(); err != nil {
			return err
		}
		a.dag.Root = leaf.Hash
		a.store(leaf)
		a.logf("accepted root leaf %s", leaf.Hash)
		return nil
	}

	parent, ok := a.dag.Leafs[packet.Parent]
	if !ok {
		return newErr(KindUnknownParent, leaf.Hash, fmt.Errorf("parent %s not yet received", packet.Parent))
	}
	if packet.Branch == nil {
		return newErr(KindProofInvalid, leaf.Hash, fmt.Errorf("non-root packet missing classic merkle branch"))
	}
	if err := parent.VerifyBranch(packet.Branch); err != nil {
		return err
	}
	// VerifyBranch only replays parent's own already-stored Links[idx]
	// hash against its ClassicMerkleRoot; it never looks at leaf.Hash.
	// Tie the branch to the leaf actually being applied, the same way
	// VerifyPartial does, so a sender cannot supply a valid branch/label
	// pair for a different position and have it accepted for this leaf.
	idx, err := parent.indexForLabel(packet.Branch.Label)
	if err != nil {
		return err
	}
	if parent.Links[idx].Hash != leaf.Hash {
		return newErr(KindLinkMismatch, leaf.Hash, fmt.Errorf("branch label %q does not name this leaf under parent %s", packet.Branch.Label, parent.Hash))
	}
	if err := leaf.VerifyLeaf(parent); err != nil {
		return err
	}

	a.store(leaf)
	a.logf("accepted leaf %s under parent %s", leaf.Hash, parent.Hash)
	return nil
}

func (a *StreamAssembler) store(leaf *DagLeaf) {
	a.dag.Leafs[leaf.Hash] = leaf
	if a.leafStore != nil {
		_ = a.leafStore.PutLeaf(leaf.Hash, leaf)
	}
}

func (a *StreamAssembler) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debugf(format, args...)
	}
}

// Dag returns the assembler's in-progress (or, once every leaf named by
// the root's LeafCount has arrived, complete) Dag.
func (a *StreamAssembler) Dag() *Dag {
	return a.dag
}

// Complete reports whether the assembler has received as many leaves as
// the root claims the whole DAG contains.
func (a *StreamAssembler) Complete() bool {
	return a.dag.ExpectedLeafCount() > 0 && len(a.dag.Leafs) >= a.dag.ExpectedLeafCount()
}
