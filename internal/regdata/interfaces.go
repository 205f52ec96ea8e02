package regdata

import (
	"context"
	"time"
)

// LKGStore holds the last-known-good snapshot per source.
type LKGStore interface {
	Get(ctx context.Context, sourceID string) (LKGEntry, bool, error)
	Put(ctx context.Context, entry LKGEntry) error
}

// AlertLog appends and queries operational alerts, keyed by source.
type AlertLog interface {
	Append(ctx context.Context, alert Alert) error
	Since(ctx context.Context, cutoff time.Time) ([]Alert, error)
}

// BackoffStore persists consecutive-failure counts per (source, category).
type BackoffStore interface {
	Get(ctx context.Context, sourceID string, category Category) (BackoffState, error)
	Record(ctx context.Context, state BackoffState) error
	List(ctx context.Context) ([]BackoffState, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes notification payloads to an operations channel.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a single URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ContextProvider supplies the per-source regulatory calendar snapshots.
type ContextProvider interface {
	Contexts(ctx context.Context) ([]SourceContext, error)
}

// SchemaProvider supplies the static extraction schema for a source.
type SchemaProvider interface {
	Schema(sourceID string) (ExtractionSchema, bool)
}

// Hasher computes digests for snapshot integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
