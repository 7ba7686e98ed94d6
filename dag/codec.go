// Package dag implements the Scionic Merkle Tree: a content-addressed,
// verifiable representation of a filesystem subtree that carries both a
// DAG-style content hash per node and a Classic Merkle root over each
// node's ordered children.
package dag

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"
	mh "github.com/multiformats/go-multihash"
)

// canonicalEncMode returns the CBOR encode mode used for every byte that
// ever feeds a hash. fxamacker/cbor's CTAP2 canonical options sort map
// keys by pure bytewise lexicographic order of the encoded key bytes —
// unlike cbor.CanonicalEncOptions' RFC 7049 "shortest key first" rule —
// which is exactly the ordering spec §4.1 requires. Relying on the
// library's own canonical mode, rather than hand-sorting map entries,
// is what makes two independent implementations byte-identical as long
// as both use a CTAP2-conformant CBOR library.
func canonicalEncMode() cbor.EncMode {
	opts := cbor.CTAP2EncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		// CTAP2EncOptions() is a fixed, library-validated literal; it can
		// only fail to compile into an EncMode if the cbor package itself
		// is broken.
		panic(fmt.Sprintf("scionic-merkletree: invalid canonical cbor options: %v", err))
	}
	return mode
}

var canonicalMode = canonicalEncMode()

// linksToWire converts a leaf's ordered Links into the canonical wire
// shape: an array of 2-element [label, hash] arrays. This must stay a
// slice, never a map, because map keys get lexicographically resorted
// under canonical encoding — which would scramble "10" before "2" and
// destroy the child order the Merkle tree and the Links sequence share.
func linksToWire(links []Link) []interface{} {
	out := make([]interface{}, len(links))
	for i, l := range links {
		out[i] = [2]string{l.Label, l.Hash}
	}
	return out
}

// leafPreimageMap builds the map that gets canonically encoded and
// hashed to derive a leaf's CID. ParentHash is deliberately never
// included: a leaf's CID is computed bottom-up, before its parent (and
// therefore the leaf's own ParentHash value) exists, so verification
// must reproduce that same parent-less encoding regardless of what
// ParentHash the leaf carries once the tree is complete. See DESIGN.md
// for how this resolves spec §9's open question.
func leafPreimageMap(l *DagLeaf) map[string]interface{} {
	m := map[string]interface{}{
		"Hash":             "",
		"ItemName":         l.ItemName,
		"Type":             string(l.Type),
		"CurrentLinkCount": uint64(l.CurrentLinkCount),
		"Links":            linksToWire(l.Links),
	}
	if len(l.ContentHash) > 0 {
		m["ContentHash"] = l.ContentHash
	}
	if l.HasContent {
		// A leaf can carry content that is present but zero-length (a
		// genuinely empty self-contained file, spec §3 invariant 6's
		// first branch): the byte string must still be encoded (CBOR
		// major type 2, empty form 0x40), not treated as absent the way
		// a structural leaf with no content at all is. Normalize a nil
		// Content (e.g. moved out to a ContentStore) to a non-nil empty
		// slice so it always encodes as a byte string, never as CBOR
		// null.
		content := l.Content
		if content == nil {
			content = []byte{}
		}
		m["Content"] = content
	}
	if len(l.ClassicMerkleRoot) > 0 {
		m["ClassicMerkleRoot"] = l.ClassicMerkleRoot
	}
	if len(l.AdditionalData) > 0 {
		m["AdditionalData"] = l.AdditionalData
	}
	return m
}

// encodeLeafForHash returns the canonical CBOR bytes hashed to derive or
// verify a leaf's CID.
func encodeLeafForHash(l *DagLeaf) ([]byte, error) {
	return canonicalMode.Marshal(leafPreimageMap(l))
}

// computeCID hashes encoded with SHA-256 and formats the digest as a
// CIDv1 string: raw binary codec (0x55), SHA-256 multihash, default
// (base32, multibase prefix "b") textual form — which is exactly what
// cid.Cid.String() produces for a CIDv1, matching the teacher's own
// lib/cid/cid.go pattern of building a cid.Prefix and calling Sum, here
// pinned to the raw codec instead of DagPb so the digest covers exactly
// our canonical bytes and nothing else.
func computeCID(encoded []byte) (string, error) {
	pref := cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}
	c, err := pref.Sum(encoded)
	if err != nil {
		return "", fmt.Errorf("computing CID: %w", err)
	}
	return c.String(), nil
}

// LeafCID computes the CID a leaf would carry: the CID of its canonical
// hash pre-image (§4.1). It does not mutate l.
func LeafCID(l *DagLeaf) (string, error) {
	encoded, err := encodeLeafForHash(l)
	if err != nil {
		return "", fmt.Errorf("encoding leaf: %w", err)
	}
	return computeCID(encoded)
}

// ParseCID decodes a CID string produced by this package back into a
// cid.Cid, explicitly checking its multibase prefix is base32 — the
// only encoding this package ever emits (cid.Prefix.Sum's default
// textual form) — rather than accepting whatever multibase a malformed
// or foreign CID string happens to declare.
func ParseCID(s string) (cid.Cid, error) {
	enc, data, err := mbase.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("decoding cid %q: %w", s, err)
	}
	if enc != mbase.Base32 {
		return cid.Undef, fmt.Errorf("cid %q uses multibase encoding %q, want base32", s, enc)
	}
	c, err := cid.Cast(data)
	if err != nil {
		return cid.Undef, fmt.Errorf("casting cid %q: %w", s, err)
	}
	return c, nil
}

// sha256Sum is a small helper wrapping crypto/sha256 for chunk/file
// ContentHash computation, kept here next to the rest of the hashing
// surface rather than scattered across builder.go and verify.go.
func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// sortedKeys returns m's keys in ascending byte order, for iterating a Go
// map such as AdditionalData deterministically outside of CBOR encoding.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
