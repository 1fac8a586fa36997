// Package core defines the attachment storage abstraction shared by the blob
// backends.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores attachments below a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores attachments in an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps attachments in process memory (tests, dry runs).
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // small, flat key-value pairs
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the write-once object store used for report attachments. Put
// fails with ErrExists when the key is taken; Get and Head fail with
// ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned by Get and Head for a missing key.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists is returned by Put when the key already holds a blob.
	ErrExists = errors.New("blob: already exists")
	// ErrInvalidKey is returned for empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// CloneMetadata copies a metadata map; nil stays nil.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
