package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"MarketPulse/internal/services/forecast"
	"MarketPulse/pkg/logger"
)

// FileModelStore keeps one artifact file per product plus a
// <base>_metadata.json sidecar.
type FileModelStore struct {
	dir  string
	opts storeOptions
}

func NewFileModelStore(dir string, opts ...StoreOption) (*FileModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileModelStore{dir: dir, opts: newStoreOptions(opts)}, nil
}

// PathFor is the artifact path used by Save and Load for a product.
func (f *FileModelStore) PathFor(productID string) string {
	return filepath.Join(f.dir, safeName(productID)+".json")
}

// MetadataPath derives the sidecar path of an artifact path.
func MetadataPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_metadata.json"
}

func (f *FileModelStore) Save(_ context.Context, s *forecast.State) (bool, error) {
	if s == nil {
		return false, persistenceError("", "save", errors.New("nil state"))
	}
	return f.SaveTo(s, f.PathFor(s.ProductID))
}

func (f *FileModelStore) Load(_ context.Context, productID string) (*forecast.State, bool, error) {
	return f.LoadFrom(productID, f.PathFor(productID))
}

// SaveTo writes the artifact and its metadata to path. It returns false
// without an error when an existing artifact validated clearly better.
func (f *FileModelStore) SaveTo(s *forecast.State, path string) (bool, error) {
	if !s.Trained() {
		return false, &forecast.Error{Kind: forecast.ErrPrecondition, ProductID: s.ProductID, Op: "save", Detail: "state is not trained"}
	}
	if existing, ok := f.existingValMAE(s.ProductID, path); ok && f.opts.refuse(s.ProductID, existing, s.Metrics.ValMAE) {
		return false, nil
	}

	now := f.opts.now()
	data, err := encodeArtifact(s, now)
	if err != nil {
		return false, persistenceError(s.ProductID, "encode artifact", err)
	}
	meta, err := json.MarshalIndent(metadataFor(s, now), "", "  ")
	if err != nil {
		return false, persistenceError(s.ProductID, "encode metadata", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return false, persistenceError(s.ProductID, "write artifact", err)
	}
	if err := writeFileAtomic(MetadataPath(path), meta); err != nil {
		return false, persistenceError(s.ProductID, "write metadata", err)
	}

	f.opts.log.Info("artifact saved",
		logger.String("product_id", s.ProductID),
		logger.String("path", path),
		logger.String("mode", string(s.Mode)),
		logger.Float64("val_mae", s.Metrics.ValMAE))
	return true, nil
}

// LoadFrom restores the artifact at path. A missing file is (nil, false, nil);
// an unreadable or incompatible one is (nil, false, err).
func (f *FileModelStore) LoadFrom(productID, path string) (*forecast.State, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistenceError(productID, "read artifact", err)
	}
	s, err := decodeArtifact(data, productID)
	if err != nil {
		f.opts.log.Warn("artifact unusable",
			logger.String("product_id", productID),
			logger.String("path", path),
			logger.Error(err))
		return nil, false, err
	}
	return s, true, nil
}

func (f *FileModelStore) Close() error { return nil }

// existingValMAE reads the guard input from the sidecar, falling back to the
// artifact itself. Unreadable artifacts never block a save.
func (f *FileModelStore) existingValMAE(productID, path string) (float64, bool) {
	if b, err := os.ReadFile(MetadataPath(path)); err == nil {
		var m Metadata
		if json.Unmarshal(b, &m) == nil {
			return m.ValMAE, true
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	s, err := decodeArtifact(b, productID)
	if err != nil {
		return 0, false
	}
	return s.Metrics.ValMAE, true
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// safeName maps a product id onto a single path element.
func safeName(productID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, productID)
}
