// Package storage keeps deliverable files. Objects are addressed by a
// storage path that is stored verbatim on the deliverable version.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured size limit
	ErrTooLarge = errors.New("file exceeds maximum upload size")
	// ErrNotFound is returned when a storage path does not exist
	ErrNotFound = errors.New("file not found")
)

// Object describes a stored file
type Object struct {
	Path        string
	Size        int64
	ContentType string
}

// Storage defines the interface for file storage operations
type Storage interface {
	Upload(ctx context.Context, prefix, filename, contentType string, data io.Reader) (*Object, error)
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewStorage creates a storage backend from configuration.
// "local" writes under LocalBasePath; "cloud" or "azure" uses Azure Blob Storage.
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	maxBytes := cfg.MaxUploadSizeMB * 1024 * 1024
	switch cfg.Mode {
	case "local", "":
		return NewLocalStorage(cfg.LocalBasePath, maxBytes)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, maxBytes, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// ObjectPath builds a unique path under prefix that keeps the file extension
func ObjectPath(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+ext)
}

// limitReader fails with ErrTooLarge once more than max bytes were read
type limitReader struct {
	r     io.Reader
	max   int64
	count int64
}

func newLimitReader(r io.Reader, max int64) *limitReader {
	return &limitReader{r: r, max: max}
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.count += int64(n)
	if l.max > 0 && l.count > l.max {
		return n, ErrTooLarge
	}
	return n, err
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
	maxBytes int64
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, maxBytes: maxBytes}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, prefix, filename, contentType string, data io.Reader) (*Object, error) {
	storagePath := ObjectPath(prefix, filename)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storagePath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, newLimitReader(data, s.maxBytes))
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrTooLarge) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Object{Path: storagePath, Size: size, ContentType: contentType}, nil
}

func (s *LocalStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(storagePath)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(storagePath))); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
