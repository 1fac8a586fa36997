// Package fs stores attachments as files below a root directory. Each blob
// has a JSON sidecar (`<file>.meta`) holding its content type, metadata and
// checksum.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"calibtrack/internal/blob/core"
)

// DefaultRoot is used when no root directory is configured.
const DefaultRoot = "attachments"

const metaSuffix = ".meta"

// Store implements core.Store on the local filesystem.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Root returns the directory blobs are written under.
func (s *Store) Root() string { return s.root }

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// cleanKey rejects keys that are empty, absolute, traversing or that collide
// with the sidecar naming.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, metaSuffix) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	clean := path.Clean(filepath.ToSlash(key))
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
		}
	}
	return clean, nil
}

func (s *Store) paths(key string) (string, string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	data := filepath.Join(s.root, filepath.FromSlash(k))
	return data, data + metaSuffix, nil
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (m sidecar) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     core.CloneMetadata(m.Metadata),
		LastModified: m.CreatedAt,
	}
}

// Put streams r into a temp file next to the target and renames it into
// place once fully written.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return core.Info{}, fmt.Errorf("put %s: %w", key, core.ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".upload-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("write %s: %w", key, err)
	}

	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		CreatedAt:   s.now(),
	}
	if err := writeSidecar(metaPath, meta); err != nil {
		return core.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		_ = os.Remove(metaPath)
		return core.Info{}, err
	}
	return meta.info(key), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	meta, err := readSidecar(metaPath)
	if err != nil {
		return core.Info{}, nil, notFound("get", key, err)
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return core.Info{}, nil, notFound("get", key, err)
	}
	return meta.info(key), file, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dataPath); err != nil {
		return core.Info{}, notFound("head", key, err)
	}
	meta, err := readSidecar(metaPath)
	if err != nil {
		return core.Info{}, notFound("head", key, err)
	}
	return meta.info(key), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List walks the root and returns every blob whose key starts with prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readSidecar(p)
		if err != nil {
			return err
		}
		infos = append(infos, meta.info(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func notFound(op, key string, err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, key, core.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}

func writeSidecar(p string, m sidecar) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o644)
}

func readSidecar(p string) (sidecar, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return sidecar{}, err
	}
	var m sidecar
	if err := json.Unmarshal(b, &m); err != nil {
		return sidecar{}, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	return m, nil
}
