package embedstore

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/melodex/embedstore/annindex"
	"github.com/melodex/embedstore/blobstore"
	"github.com/melodex/embedstore/codec"
	"github.com/melodex/embedstore/internal/compress"
	"github.com/melodex/embedstore/wal"
)

const (
	// DefaultSearchLimit is the result count used when a search names
	// no limit.
	DefaultSearchLimit = 10
)

// Compression selects the algorithm applied to WAL records and cold
// snapshot files.
type Compression uint8

const (
	// NoCompression stores everything raw.
	NoCompression = Compression(compress.None)
	// CompressionLZ4 favors append speed; a good fit for the WAL.
	CompressionLZ4 = Compression(compress.LZ4)
	// CompressionZSTD favors ratio; a good fit for snapshots.
	CompressionZSTD = Compression(compress.ZSTD)
)

type options struct {
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	dataDir          string
	blobStore        blobstore.BlobStore
	compression      compress.Type
	walEnabled       bool
	walOptions       []func(*wal.Options)
	indexOptions     []func(*annindex.BuildOptions)
	ingestLimit      rate.Limit
	ingestBurst      int
}

// Option configures Open behavior.
type Option func(*options)

// WithCodec configures the codec used for manifest encoding.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithDataDir enables persistence under the given directory: cold
// snapshots and the manifest go to a local blob store rooted there,
// and the hot-tier WAL lives alongside them. Without a data dir (and
// without WithBlobStore) the store is purely in-memory.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithBlobStore persists cold snapshots and the manifest to the given
// blob store instead of the data directory. Combine with WithDataDir
// to keep the WAL local while snapshots go to object storage.
func WithBlobStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = bs
	}
}

// WithCompression selects the compression applied to cold snapshots
// and WAL records. Defaults to NoCompression.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = compress.Type(c)
	}
}

// WithWAL enables the hot-tier write-ahead log. Requires WithDataDir.
// Embeddings are costly to recompute, so logging unpromoted hot writes
// is usually worth the extra write per upsert.
func WithWAL(optFns ...func(*wal.Options)) Option {
	return func(o *options) {
		o.walEnabled = true
		o.walOptions = optFns
	}
}

// WithIndexOptions tunes ANN index construction during promotion.
//
// Example:
//
//	embedstore.WithIndexOptions(func(o *annindex.BuildOptions) {
//	    o.ListCount = 64
//	    o.ProbeCount = 8
//	})
func WithIndexOptions(optFns ...func(*annindex.BuildOptions)) Option {
	return func(o *options) {
		o.indexOptions = append(o.indexOptions, optFns...)
	}
}

// WithIngestLimit rate-limits upserts to the given sustained rate and
// burst. Keeps a bulk re-tagging run from starving interactive
// queries. Zero limit means unlimited.
func WithIngestLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.ingestLimit = limit
		o.ingestBurst = burst
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		compression:      compress.None,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// SearchOption configures a single search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	limit    int
	minScore float32
}

// WithLimit caps the number of results. Values are clamped to
// [1, 100]; the default is DefaultSearchLimit.
func WithLimit(limit int) SearchOption {
	return func(o *searchOptions) {
		o.limit = limit
	}
}

// WithMinScore drops results whose cosine score falls below the
// threshold. The default of 0 keeps non-negative matches only; pass -1
// to keep everything.
func WithMinScore(minScore float32) SearchOption {
	return func(o *searchOptions) {
		o.minScore = minScore
	}
}

func applySearchOptions(optFns []SearchOption) searchOptions {
	o := searchOptions{
		limit:    DefaultSearchLimit,
		minScore: 0,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.limit < 1 {
		o.limit = 1
	}
	if o.limit > annindex.MaxLimit {
		o.limit = annindex.MaxLimit
	}
	return o
}
