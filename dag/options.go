package dag

import (
	"time"

	"github.com/HORNET-Storage/scionic-merkletree/internal/logging"
)

// DefaultChunkSize is the default boundary at which the Builder splits a
// file's content into chunk leaves (§4.4 step 2): 2 MiB.
const DefaultChunkSize = 2 << 20

// MimeTypePolicy decides whether a file's content may be ingested, given
// its detected MIME type. It is the hook adapted from the teacher's
// upload-time mimetype.Detect + IsMimeTypePermitted check (SPEC_FULL.md
// §3); returning a non-nil error aborts the build with that leaf's path
// named in the error.
type MimeTypePolicy func(mimeType string) error

// AllowAllMimeTypes is the default MimeTypePolicy: every MIME type is
// permitted.
func AllowAllMimeTypes(string) error { return nil }

// BuilderConfig controls how CreateDagWithConfig walks and splits input.
type BuilderConfig struct {
	// ChunkSize is the maximum size of a chunk leaf's Content.
	ChunkSize int

	// IncludeTimestamp stamps the root leaf's AdditionalData with a
	// "timestamp" key (RFC3339) at build time, per §4.4 step 6.
	IncludeTimestamp bool

	// AdditionalData is merged into the root leaf's AdditionalData.
	AdditionalData map[string]string

	// MimeTypePolicy gates which file content may be ingested.
	MimeTypePolicy MimeTypePolicy

	// SeparateContent routes leaf content through a ContentStore instead
	// of embedding it in DagLeaf.Content, keeping the structural DAG
	// (hashes and links) small and independently cacheable (SPEC_FULL.md
	// §4, "content/structural splitting").
	SeparateContent bool
	ContentStore    ContentStore

	// Parallelism caps how many goroutines chunk-hash and CID-compute
	// concurrently. 0 means sequential.
	Parallelism int

	Logger logging.Logger
}

// Option configures a BuilderConfig.
type Option func(*BuilderConfig)

// DefaultConfig returns the Builder's zero-value-safe defaults.
func DefaultConfig() BuilderConfig {
	return BuilderConfig{
		ChunkSize:      DefaultChunkSize,
		MimeTypePolicy: AllowAllMimeTypes,
	}
}

// ParallelConfig returns a BuilderConfig tuned for concurrent builds:
// default chunk size with Parallelism set to 8 chunk-hashing goroutines. This
// mirrors the teacher's merkle_dag.ParallelConfig() convenience
// constructor used throughout its DAG-building test helpers.
func ParallelConfig() BuilderConfig {
	cfg := DefaultConfig()
	cfg.Parallelism = 8
	return cfg
}

func WithChunkSize(size int) Option {
	return func(c *BuilderConfig) { c.ChunkSize = size }
}

func WithTimestamp() Option {
	return func(c *BuilderConfig) { c.IncludeTimestamp = true }
}

func WithAdditionalData(data map[string]string) Option {
	return func(c *BuilderConfig) {
		if c.AdditionalData == nil {
			c.AdditionalData = make(map[string]string, len(data))
		}
		for k, v := range data {
			c.AdditionalData[k] = v
		}
	}
}

func WithMimeTypePolicy(policy MimeTypePolicy) Option {
	return func(c *BuilderConfig) { c.MimeTypePolicy = policy }
}

func WithSeparateContent(store ContentStore) Option {
	return func(c *BuilderConfig) {
		c.SeparateContent = true
		c.ContentStore = store
	}
}

func WithParallelism(n int) Option {
	return func(c *BuilderConfig) { c.Parallelism = n }
}

func WithLogger(l logging.Logger) Option {
	return func(c *BuilderConfig) { c.Logger = l }
}

func applyOptions(cfg BuilderConfig, opts ...Option) BuilderConfig {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MimeTypePolicy == nil {
		cfg.MimeTypePolicy = AllowAllMimeTypes
	}
	return cfg
}

func (c *BuilderConfig) logger() logging.Logger {
	return c.Logger
}

// debugf and infof are the Builder's log call sites: a nil Logger (the
// zero value) simply discards output, matching logging.Logger's
// documented nil-safety contract.
func (c *BuilderConfig) debugf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Debugf(format, args...)
	}
}

func (c *BuilderConfig) infof(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Infof(format, args...)
	}
}

func timestampNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
