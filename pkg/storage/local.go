package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage implements Storage using the local filesystem. Files are
// laid out as <base>/<supplier>/<id-prefix>_<name> with a JSON metadata
// sidecar under <base>/<supplier>/.meta/.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem archive
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Archive stores a processed pricelist file and returns its metadata
func (s *LocalStorage) Archive(ctx context.Context, supplierKey string, filename string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()

	supplierDir := filepath.Join(s.basePath, sanitizeFilename(supplierKey))
	if err := os.MkdirAll(supplierDir, 0755); err != nil {
		return nil, fmt.Errorf("create supplier directory: %w", err)
	}

	// UUID prefix keeps repeat deliveries of the same filename apart.
	safeFilename := sanitizeFilename(filename)
	storedFilename := fmt.Sprintf("%s_%s", fileID.String()[:8], safeFilename)
	filePath := filepath.Join(supplierDir, storedFilename)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("write archive file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		SupplierKey: supplierKey,
		Name:        filename,
		Size:        size,
		Path:        storedFilename,
		ArchivedAt:  time.Now(),
	}

	if err := s.saveMetadata(supplierKey, fileID, info); err != nil {
		os.Remove(filePath)
		return nil, err
	}

	return info, nil
}

// List returns all archived files for a supplier
func (s *LocalStorage) List(ctx context.Context, supplierKey string) ([]*FileInfo, error) {
	metaDir := filepath.Join(s.basePath, sanitizeFilename(supplierKey), ".meta")
	if _, err := os.Stat(metaDir); os.IsNotExist(err) {
		return []*FileInfo{}, nil
	}

	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return nil, fmt.Errorf("list archive metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}

		info, err := s.GetInfo(ctx, supplierKey, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}

	return files, nil
}

// GetInfo returns metadata for an archived file
func (s *LocalStorage) GetInfo(ctx context.Context, supplierKey string, fileID uuid.UUID) (*FileInfo, error) {
	metaPath := s.metaPath(supplierKey, fileID)

	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archived file not found: %s", fileID)
		}
		return nil, fmt.Errorf("read archive metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse archive metadata: %w", err)
	}

	return &info, nil
}

// GetReader returns a reader for an archived file
func (s *LocalStorage) GetReader(ctx context.Context, supplierKey string, fileID uuid.UUID) (io.ReadCloser, error) {
	info, err := s.GetInfo(ctx, supplierKey, fileID)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(s.basePath, sanitizeFilename(supplierKey), info.Path)
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open archived file: %w", err)
	}

	return f, nil
}

// Delete removes an archived file
func (s *LocalStorage) Delete(ctx context.Context, supplierKey string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, supplierKey, fileID)
	if err != nil {
		return err
	}

	filePath := filepath.Join(s.basePath, sanitizeFilename(supplierKey), info.Path)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete archived file: %w", err)
	}

	os.Remove(s.metaPath(supplierKey, fileID))
	return nil
}

func (s *LocalStorage) metaPath(supplierKey string, fileID uuid.UUID) string {
	return filepath.Join(s.basePath, sanitizeFilename(supplierKey), ".meta", fileID.String()+".json")
}

func (s *LocalStorage) saveMetadata(supplierKey string, fileID uuid.UUID, info *FileInfo) error {
	metaDir := filepath.Join(s.basePath, sanitizeFilename(supplierKey), ".meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive metadata: %w", err)
	}

	metaPath := filepath.Join(metaDir, fileID.String()+".json")
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("write archive metadata: %w", err)
	}

	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
