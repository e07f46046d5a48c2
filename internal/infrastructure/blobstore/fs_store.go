package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
)

const metaSuffix = ".meta.json"

// FSStore keeps blob objects under basePath using the object key as relative path.
// Each object has a sidecar metadata file next to it.
type FSStore struct {
	basePath string
}

func NewFSStore(basePath string) *FSStore {
	return &FSStore{basePath: basePath}
}

func (s *FSStore) Put(ctx context.Context, key string, body []byte, meta blob.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat blob %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create blob dir for %s: %w", key, err)
	}

	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode blob metadata %s: %w", key, err)
	}
	if err := writeAtomic(target+metaSuffix, encoded); err != nil {
		return fmt.Errorf("write blob metadata %s: %w", key, err)
	}
	if err := writeAtomic(target, body); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, blob.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, blob.Metadata{}, err
	}
	target, err := s.path(key)
	if err != nil {
		return nil, blob.Metadata{}, err
	}

	body, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, blob.Metadata{}, fmt.Errorf("get %s: %w", key, blob.ErrObjectNotFound)
		}
		return nil, blob.Metadata{}, fmt.Errorf("read blob %s: %w", key, err)
	}

	var meta blob.Metadata
	raw, err := os.ReadFile(target + metaSuffix)
	switch {
	case err == nil:
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &meta); err != nil {
			return nil, blob.Metadata{}, fmt.Errorf("decode blob metadata %s: %w", key, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, blob.Metadata{}, fmt.Errorf("read blob metadata %s: %w", key, err)
	}
	return body, meta, nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return true, nil
}

func (s *FSStore) path(key string) (string, error) {
	if s == nil {
		return "", errors.New("blob store not configured")
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

func writeAtomic(target string, data []byte) error {
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
