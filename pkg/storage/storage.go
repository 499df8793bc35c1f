// Package storage archives processed pricelist files per supplier.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about an archived pricelist file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	SupplierKey string    `json:"supplier_key"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"` // Internal storage path
	ArchivedAt  time.Time `json:"archived_at"`
}

// Storage defines the interface for pricelist archive operations
type Storage interface {
	// Archive stores a processed pricelist file and returns its metadata
	Archive(ctx context.Context, supplierKey string, filename string, r io.Reader) (*FileInfo, error)

	// List returns all archived files for a supplier
	List(ctx context.Context, supplierKey string) ([]*FileInfo, error)

	// GetInfo returns metadata for an archived file
	GetInfo(ctx context.Context, supplierKey string, fileID uuid.UUID) (*FileInfo, error)

	// GetReader returns a reader for an archived file
	GetReader(ctx context.Context, supplierKey string, fileID uuid.UUID) (io.ReadCloser, error)

	// Delete removes an archived file
	Delete(ctx context.Context, supplierKey string, fileID uuid.UUID) error
}
