// Package model contains domain models passed between layers.
package model

import "time"

// AssetKind distinguishes the two artifacts of a capture session.
type AssetKind string

const (
	AssetVideo AssetKind = "video"
	AssetImage AssetKind = "image"
)

// Valid reports whether k is a known kind.
func (k AssetKind) Valid() bool { return k == AssetVideo || k == AssetImage }

// Blob is an in-memory media artifact produced by capture.
type Blob struct {
	Data        []byte
	ContentType string
}

// Size returns the blob length in bytes.
func (b Blob) Size() int64 { return int64(len(b.Data)) }

// Empty reports whether the blob carries no data.
func (b Blob) Empty() bool { return len(b.Data) == 0 }

// UploadedAsset is the immutable record of a stored artifact.
type UploadedAsset struct {
	Kind       AssetKind `json:"kind"`
	RemoteRef  string    `json:"remote_ref"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}
