package dag

import "fmt"

// LeafStore persists leaves outside of an in-memory Dag, keyed by CID. A
// concrete implementation (e.g. store/boltstore) backs long-lived DAGs
// that should not be held entirely in memory between transmission
// packets (SPEC_FULL.md §4, "pluggable leaf/content store").
type LeafStore interface {
	PutLeaf(cidStr string, leaf *DagLeaf) error
	GetLeaf(cidStr string) (*DagLeaf, error)
	HasLeaf(cidStr string) (bool, error)
}

// ContentStore persists leaf content separately from the structural DAG,
// keyed by content hash, so a Builder run with WithSeparateContent can
// keep DagLeaf.Content empty and look content up on demand.
type ContentStore interface {
	PutContent(contentHash []byte, content []byte) error
	GetContent(contentHash []byte) ([]byte, error)
}

// MemoryLeafStore is an in-memory LeafStore, used by default and in
// tests; it is never the right choice for a process that must survive
// restarts, which is what store/boltstore is for.
type MemoryLeafStore struct {
	leaves map[string]*DagLeaf
}

func NewMemoryLeafStore() *MemoryLeafStore {
	return &MemoryLeafStore{leaves: make(map[string]*DagLeaf)}
}

func (s *MemoryLeafStore) PutLeaf(cidStr string, leaf *DagLeaf) error {
	s.leaves[cidStr] = leaf
	return nil
}

func (s *MemoryLeafStore) GetLeaf(cidStr string) (*DagLeaf, error) {
	leaf, ok := s.leaves[cidStr]
	if !ok {
		return nil, newErr(KindUnknownParent, cidStr, fmt.Errorf("leaf not found"))
	}
	return leaf, nil
}

func (s *MemoryLeafStore) HasLeaf(cidStr string) (bool, error) {
	_, ok := s.leaves[cidStr]
	return ok, nil
}

// MemoryContentStore is an in-memory ContentStore counterpart to
// MemoryLeafStore, keyed by the raw content hash bytes.
type MemoryContentStore struct {
	content map[string][]byte
}

func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{content: make(map[string][]byte)}
}

func (s *MemoryContentStore) PutContent(contentHash []byte, content []byte) error {
	s.content[string(contentHash)] = content
	return nil
}

func (s *MemoryContentStore) GetContent(contentHash []byte) ([]byte, error) {
	content, ok := s.content[string(contentHash)]
	if !ok {
		return nil, fmt.Errorf("content not found for hash %x", contentHash)
	}
	return content, nil
}

// NewEmptyDagStoreWithOptions returns a fresh, empty LeafStore/ContentStore
// pair for callers that want the pluggable-store interfaces without a
// persistent backend — e.g. exercising WithSeparateContent in tests. Name
// and shape are grounded in the teacher's NewEmptyDagStoreWithOptions
// constructor (lib/stores/store.go call sites in testing/helpers).
func NewEmptyDagStoreWithOptions() (LeafStore, ContentStore) {
	return NewMemoryLeafStore(), NewMemoryContentStore()
}
