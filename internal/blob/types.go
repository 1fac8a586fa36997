// Package blob is the attachment storage entry point. It re-exports the core
// abstractions and selects a backend from configuration; other packages
// depend on blob.Store rather than on a concrete backend.
package blob

import (
	"calibtrack/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

// Backend errors.
var (
	ErrNotFound   = core.ErrNotFound
	ErrExists     = core.ErrExists
	ErrInvalidKey = core.ErrInvalidKey
)
