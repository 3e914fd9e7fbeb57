// Package storage persists backup, snapshot and diff artifacts.
//
// Two backends implement Adapter: LocalAdapter writes JSON files under a base
// directory, S3Adapter writes objects to an S3-compatible bucket. Every
// artifact is stored as an envelope
//
//	{ "metadata": { ...caller metadata, "savedAt": ..., "storage": ... }, "data": ... }
//
// The S3 backend additionally copies the metadata into object user-metadata so
// List can return it without downloading content. Callers must fall back to
// Load when Object.Metadata is nil.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
)

// Backend type names accepted by New.
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// Metadata is a flat string map stored alongside an artifact.
type Metadata map[string]string

// Get looks key up case-insensitively; object stores lower-case user-metadata keys.
func (m Metadata) Get(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Object is one List result. Metadata is nil unless requested and available.
type Object struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Metadata Metadata
}

// ListOptions tunes List.
type ListOptions struct {
	IncludeMetadata bool
}

// Adapter is the uniform artifact store.
type Adapter interface {
	// Save writes data with metadata to path, replacing any previous content.
	Save(ctx context.Context, path string, data any, md Metadata) error
	// Load decodes the data part of the artifact at path into out and returns its metadata.
	Load(ctx context.Context, path string, out any) (Metadata, error)
	// List returns the artifacts matching a glob pattern ("*" within a path
	// segment, "**" across segments), sorted by path.
	List(ctx context.Context, pattern string, opts ListOptions) ([]Object, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// Kind names the backend ("local" or "s3").
	Kind() string
}

type envelope struct {
	Metadata Metadata        `json:"metadata"`
	Data     json.RawMessage `json:"data"`
}

func encodeEnvelope(kind string, data any, md Metadata, now time.Time) ([]byte, Metadata, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("encode data: %w", err)
	}

	full := make(Metadata, len(md)+2)
	for k, v := range md {
		full[k] = v
	}
	full["savedAt"] = now.UTC().Format(time.RFC3339Nano)
	full["storage"] = kind

	content, err := json.MarshalIndent(envelope{Metadata: full, Data: payload}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode envelope: %w", err)
	}
	return content, full, nil
}

func decodeEnvelope(content []byte, out any) (Metadata, error) {
	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	if env.Metadata == nil {
		env.Metadata = Metadata{}
	}
	return env.Metadata, nil
}

func notFound(path string) error {
	return fmt.Errorf("%s: %w", path, common.ErrorNotFound)
}

// Options selects and configures a backend.
type Options struct {
	Type           string
	BasePath       string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// New returns the backend selected by opts.Type. An empty type means local.
func New(ctx context.Context, opts Options) (Adapter, error) {
	switch opts.Type {
	case "", TypeLocal:
		return NewLocalAdapter(opts.BasePath), nil
	case TypeS3:
		return NewS3Adapter(ctx, opts)
	default:
		return nil, fmt.Errorf("%q: %w", opts.Type, common.ErrUnknownStorageType)
	}
}
