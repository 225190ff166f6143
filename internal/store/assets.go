// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidAssetPath is returned for names or model paths that would
// escape the asset root.
var ErrInvalidAssetPath = errors.New("store: invalid asset path")

// Asset is an uploaded file on its way into an AssetStore.
type Asset struct {
	Filename string
	Body     io.Reader
}

// AssetStore keeps uploaded model files under <root>/<owner>/<file>.
type AssetStore struct {
	root string
}

// NewAssetStore returns a store rooted at dir.
func NewAssetStore(dir string) *AssetStore {
	return &AssetStore{root: dir}
}

// Root returns the directory assets are served from.
func (s *AssetStore) Root() string { return s.root }

// Save writes body as filename for owner and returns its public model path,
// "/<owner>/<filename>". Only the base name of filename is used.
func (s *AssetStore) Save(owner, filename string, body io.Reader) (string, error) {
	name := filepath.Base(filepath.FromSlash(filename))
	if !validSegment(owner) || !validSegment(name) {
		return "", ErrInvalidAssetPath
	}

	dir := filepath.Join(s.root, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close asset: %w", err)
	}
	return path.Join("/", owner, name), nil
}

// Remove deletes the file behind modelPath and its owner directory once it
// is empty. A missing file is not an error.
func (s *AssetStore) Remove(modelPath string) error {
	full, err := s.resolve(modelPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}

	dir := filepath.Dir(full)
	if dir == filepath.Clean(s.root) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read asset dir: %w", err)
	}
	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove asset dir: %w", err)
		}
	}
	return nil
}

// RemoveAll deletes every asset belonging to owner.
func (s *AssetStore) RemoveAll(owner string) error {
	if !validSegment(owner) {
		return ErrInvalidAssetPath
	}
	if err := os.RemoveAll(filepath.Join(s.root, owner)); err != nil {
		return fmt.Errorf("remove assets for %s: %w", owner, err)
	}
	return nil
}

// Exists reports whether modelPath names a stored file.
func (s *AssetStore) Exists(modelPath string) bool {
	full, err := s.resolve(modelPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

func (s *AssetStore) resolve(modelPath string) (string, error) {
	clean := path.Clean("/" + modelPath)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidAssetPath
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && s != string(filepath.Separator) &&
		!strings.ContainsAny(s, `/\`)
}
