package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/puzpuzpuz/xsync/v3"
)

// builtLeaf bundles a constructed leaf with its own CID and the flat list
// of every leaf in its subtree (itself included), so parent construction
// can wire Links without re-walking the tree.
type builtLeaf struct {
	cid      string
	leaf     *DagLeaf
	subtree  []*DagLeaf
	children []*builtLeaf
}

// CreateDag builds a Dag from the file or directory at path using
// DefaultConfig.
func CreateDag(path string) (*Dag, error) {
	return CreateDagWithConfig(path, DefaultConfig())
}

// CreateDagWithConfig builds a Dag from the file or directory at path,
// following the construction algorithm of spec §4.4: leaves are built
// bottom-up so that every CID exists before the parent that references
// it is hashed, chunking large files at cfg.ChunkSize, and finally
// stamping the root leaf's AdditionalData (and, if requested, a
// timestamp) once the whole tree is known.
func CreateDagWithConfig(path string, cfg BuilderConfig) (*Dag, error) {
	cfg = applyOptions(cfg)
	cfg.infof("building dag from %s", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, newErr(KindIO, "", fmt.Errorf("stat %s: %w", path, err))
	}

	built, err := buildPath(path, info, cfg)
	if err != nil {
		return nil, err
	}

	root := built.leaf
	if cfg.IncludeTimestamp || len(cfg.AdditionalData) > 0 {
		if root.AdditionalData == nil {
			root.AdditionalData = make(map[string]string)
		}
		for k, v := range cfg.AdditionalData {
			root.AdditionalData[k] = v
		}
		if cfg.IncludeTimestamp {
			root.AdditionalData["timestamp"] = timestampNow()
		}
		cid, err := LeafCID(root)
		if err != nil {
			return nil, newErr(KindFormat, "", fmt.Errorf("computing root cid: %w", err))
		}
		built.cid = cid
		root.Hash = cid
	}

	d := assembleDag(built)
	cfg.infof("built dag root=%s leaves=%d", d.Root, len(d.Leafs))
	return d, nil
}

// assembleDag flattens a builtLeaf tree into a Dag, fixing up each
// leaf's ParentHash now that every CID in the tree is final. ParentHash
// is excluded from the CID pre-image (codec.go), so setting it after
// the fact never invalidates a leaf's already-computed CID.
func assembleDag(root *builtLeaf) *Dag {
	d := &Dag{Root: root.cid, Leafs: make(map[string]*DagLeaf, len(root.subtree))}
	fixupParents(root, "")
	for _, leaf := range root.subtree {
		d.Leafs[leaf.Hash] = leaf
	}
	return d
}

func fixupParents(b *builtLeaf, parentCID string) {
	b.leaf.ParentHash = parentCID
	b.leaf.LeafCount = len(b.subtree)
	for _, child := range b.children {
		fixupParents(child, b.cid)
	}
}

func buildPath(path string, info os.FileInfo, cfg BuilderConfig) (*builtLeaf, error) {
	if info.IsDir() {
		return buildDirectory(path, cfg)
	}
	return buildFile(path, cfg)
}

func buildFile(path string, cfg BuilderConfig) (*builtLeaf, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr(KindIO, "", fmt.Errorf("reading %s: %w", path, err))
	}

	mtype := mimetype.Detect(content)
	if err := cfg.MimeTypePolicy(mtype.String()); err != nil {
		return nil, newErr(KindIO, "", fmt.Errorf("%s: %w", path, err))
	}

	name := filepath.Base(path)

	if len(content) <= cfg.ChunkSize {
		return buildLeafFromContent(name, FileLeafType, content, cfg)
	}

	chunks := splitChunks(content, cfg.ChunkSize)
	chunkBuilts := make([]*builtLeaf, len(chunks))

	if cfg.Parallelism > 1 {
		if err := buildChunksParallel(chunks, name, cfg, chunkBuilts); err != nil {
			return nil, err
		}
	} else {
		for i, c := range chunks {
			b, err := buildLeafFromContent("", ChunkLeafType, c, cfg)
			if err != nil {
				return nil, err
			}
			cfg.debugf("built chunk %d/%d of %s: %s (%d bytes)", i+1, len(chunks), name, b.cid, len(c))
			chunkBuilts[i] = b
		}
	}

	links := make([]Link, len(chunkBuilts))
	childCIDs := make([]string, len(chunkBuilts))
	subtree := make([]*DagLeaf, 0, len(chunkBuilts)+1)
	for i, c := range chunkBuilts {
		links[i] = Link{Label: fmt.Sprintf("%d", i+1), Hash: c.cid}
		childCIDs[i] = c.cid
		subtree = append(subtree, c.subtree...)
	}

	leaf := &DagLeaf{
		ItemName:          name,
		Type:              FileLeafType,
		CurrentLinkCount:  len(links),
		Links:             links,
		ClassicMerkleRoot: classicMerkleRoot(childCIDs),
	}
	if err := leaf.validateStructure(); err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("%s: %w", path, err))
	}

	cidStr, err := LeafCID(leaf)
	if err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("computing cid for %s: %w", path, err))
	}
	leaf.Hash = cidStr
	cfg.infof("built chunked file leaf %s (%d chunks)", cidStr, len(chunkBuilts))

	full := &builtLeaf{cid: cidStr, leaf: leaf, children: chunkBuilts}
	full.subtree = append([]*DagLeaf{leaf}, subtree...)
	return full, nil
}

func buildChunksParallel(chunks [][]byte, name string, cfg BuilderConfig, out []*builtLeaf) error {
	results := xsync.NewMapOf[int, *builtLeaf]()
	errs := xsync.NewMapOf[int, error]()

	sem := make(chan struct{}, cfg.Parallelism)
	var wg sync.WaitGroup
	for i, c := range chunks {
		i, c := i, c
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			b, err := buildLeafFromContent("", ChunkLeafType, c, cfg)
			if err != nil {
				errs.Store(i, err)
				return
			}
			cfg.debugf("built chunk %d/%d of %s: %s (%d bytes)", i+1, len(chunks), name, b.cid, len(c))
			results.Store(i, b)
		}()
	}
	wg.Wait()

	var firstErr error
	errs.Range(func(_ int, err error) bool {
		if firstErr == nil {
			firstErr = err
		}
		return true
	})
	if firstErr != nil {
		return firstErr
	}

	for i := range chunks {
		b, _ := results.Load(i)
		out[i] = b
	}
	return nil
}

func buildLeafFromContent(name string, typ LeafType, content []byte, cfg BuilderConfig) (*builtLeaf, error) {
	leaf := &DagLeaf{
		ItemName:    name,
		Type:        typ,
		Content:     content,
		HasContent:  true,
		ContentHash: sha256Sum(content),
	}
	if cfg.SeparateContent && cfg.ContentStore != nil {
		if err := cfg.ContentStore.PutContent(leaf.ContentHash, content); err != nil {
			return nil, newErr(KindIO, "", fmt.Errorf("storing content for %s: %w", name, err))
		}
		leaf.Content = nil
	}
	if err := leaf.validateStructure(); err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("%s: %w", name, err))
	}

	cidStr, err := LeafCID(leaf)
	if err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("computing cid for %s: %w", name, err))
	}
	leaf.Hash = cidStr
	cfg.debugf("built %s leaf %s %q (%d bytes)", typ, cidStr, name, len(content))

	return &builtLeaf{cid: cidStr, leaf: leaf, subtree: []*DagLeaf{leaf}}, nil
}

func buildDirectory(path string, cfg BuilderConfig) (*builtLeaf, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, newErr(KindIO, "", fmt.Errorf("reading dir %s: %w", path, err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	children := make([]*builtLeaf, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, newErr(KindIO, "", fmt.Errorf("stat %s: %w", e.Name(), err))
		}
		child, err := buildPath(filepath.Join(path, e.Name()), info, cfg)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	links := make([]Link, len(children))
	childCIDs := make([]string, len(children))
	subtree := make([]*DagLeaf, 0)
	for i, c := range children {
		links[i] = Link{Label: fmt.Sprintf("%d", i+1), Hash: c.cid}
		childCIDs[i] = c.cid
		subtree = append(subtree, c.subtree...)
	}

	leaf := &DagLeaf{
		ItemName:          filepath.Base(path),
		Type:              DirectoryLeafType,
		CurrentLinkCount:  len(links),
		Links:             links,
		ClassicMerkleRoot: classicMerkleRoot(childCIDs),
	}
	if err := leaf.validateStructure(); err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("%s: %w", path, err))
	}

	cidStr, err := LeafCID(leaf)
	if err != nil {
		return nil, newErr(KindFormat, "", fmt.Errorf("computing cid for %s: %w", path, err))
	}
	leaf.Hash = cidStr
	cfg.infof("built directory leaf %s %q (%d entries)", cidStr, leaf.ItemName, len(children))

	full := &builtLeaf{cid: cidStr, leaf: leaf, children: children}
	full.subtree = append([]*DagLeaf{leaf}, subtree...)
	return full, nil
}

func splitChunks(content []byte, size int) [][]byte {
	chunks := make([][]byte, 0, (len(content)+size-1)/size)
	for i := 0; i < len(content); i += size {
		end := i + size
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, content[i:end])
	}
	return chunks
}

// DagBuilder assembles a Dag leaf-by-leaf for callers that already have
// leaves in hand (e.g. reconstructing from a non-filesystem source)
// rather than walking a path, mirroring the teacher's
// CreateDagBuilder/AddLeaf/BuildDag call sequence.
type DagBuilder struct {
	leaves map[string]*DagLeaf
	order  []string
}

func CreateDagBuilder() *DagBuilder {
	return &DagBuilder{leaves: make(map[string]*DagLeaf)}
}

// AddLeaf stores leaf, wiring it under parent if parent is non-nil. leaf
// must already carry its final Hash (computed via LeafCID); AddLeaf does
// not compute hashes, since the caller controls construction order.
func (b *DagBuilder) AddLeaf(leaf *DagLeaf, parent *DagLeaf) error {
	if leaf.Hash == "" {
		return newErr(KindFormat, "", fmt.Errorf("leaf %q has no hash", leaf.ItemName))
	}
	if parent != nil {
		leaf.ParentHash = parent.Hash
	}
	if _, exists := b.leaves[leaf.Hash]; !exists {
		b.order = append(b.order, leaf.Hash)
	}
	b.leaves[leaf.Hash] = leaf
	return nil
}

// BuildDag finalizes the builder into a Dag rooted at root. root must
// already have been added via AddLeaf.
func (b *DagBuilder) BuildDag(root *DagLeaf) (*Dag, error) {
	if _, ok := b.leaves[root.Hash]; !ok {
		return nil, newErr(KindOrphanLeaf, root.Hash, fmt.Errorf("root not added to builder"))
	}
	d := &Dag{Root: root.Hash, Leafs: make(map[string]*DagLeaf, len(b.leaves))}
	for _, h := range b.order {
		d.Leafs[h] = b.leaves[h]
	}
	for _, leaf := range d.Leafs {
		leaf.LeafCount = countReachable(d, leaf.Hash)
	}
	return d, nil
}

func countReachable(d *Dag, from string) int {
	seen := make(map[string]bool)
	var walk func(h string)
	walk = func(h string) {
		if seen[h] {
			return
		}
		seen[h] = true
		leaf, ok := d.Leafs[h]
		if !ok {
			return
		}
		for _, link := range leaf.Links {
			walk(link.Hash)
		}
	}
	walk(from)
	return len(seen)
}
