package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"nlsbundle/internal/bundle"
)

// ErrBuildFailed wraps errors returned by a cache builder. They are not I/O failures of the cache.
var ErrBuildFailed = errors.New("bundle build failed")

// BuildFunc produces a bundle for a cache miss. A nil bundle with a nil error means
// nothing is available for the identity; the result is neither cached nor an error.
type BuildFunc func() (bundle.Bundle, error)

// Recorder receives cache events.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheCorruption()
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheHit()        {}
func (noopRecorder) RecordCacheMiss()       {}
func (noopRecorder) RecordCacheCorruption() {}

// CacheManager persists assembled bundles as {root}/{identity}-{hash}.json.
type CacheManager struct {
	fs       afero.Fs
	root     string
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// NewCacheManager creates a cache rooted at root. recorder may be nil.
func NewCacheManager(fsys afero.Fs, root string, logger *zap.Logger, recorder Recorder) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &CacheManager{
		fs:       fsys,
		root:     root,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Root returns the cache root directory.
func (cm *CacheManager) Root() string {
	return cm.root
}

// EntryPath returns the cache file for identity and hash.
func (cm *CacheManager) EntryPath(identity, hash string) string {
	return filepath.Join(cm.root, identity+"-"+hash+".json")
}

// ReadOrBuild returns the cached bundle for identity and hash, building and persisting it on a miss.
// A corrupted entry is removed and the rebuilt bundle is returned without being written back.
// Builder errors are wrapped in ErrBuildFailed; any other error is a cache I/O failure.
func (cm *CacheManager) ReadOrBuild(identity, hash string, build BuildFunc) (bundle.Bundle, error) {
	path := cm.EntryPath(identity, hash)

	cached, err := bundle.ReadBundle(cm.fs, path)
	switch {
	case err == nil && cached != nil:
		cm.recorder.RecordCacheHit()
		cm.touch(path)
		return cached, nil

	case err == nil || isCorruption(err):
		cm.recorder.RecordCacheCorruption()
		cm.logger.Warn("Removing corrupted bundle cache entry",
			zap.String("path", path),
			zap.Error(err))
		if removeErr := cm.fs.Remove(path); removeErr != nil {
			cm.logger.Debug("Failed to remove corrupted cache entry",
				zap.String("path", path),
				zap.Error(removeErr))
		}
		return cm.build(build)

	case errors.Is(err, fs.ErrNotExist):
		cm.recorder.RecordCacheMiss()
		built, buildErr := cm.build(build)
		if buildErr != nil || built == nil {
			return nil, buildErr
		}
		if writeErr := cm.Write(identity, hash, built); writeErr != nil {
			return nil, writeErr
		}
		return built, nil

	default:
		return nil, fmt.Errorf("read bundle cache %s: %w", path, err)
	}
}

// Write persists b for identity and hash. An existing entry is never overwritten.
func (cm *CacheManager) Write(identity, hash string, b bundle.Bundle) error {
	if err := cm.fs.MkdirAll(cm.root, 0o755); err != nil {
		return fmt.Errorf("create cache root %s: %w", cm.root, err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	path := cm.EntryPath(identity, hash)
	if _, ok := cm.fs.(*afero.OsFs); ok {
		return cm.publishLinked(path, data)
	}
	return cm.publishExclusive(path, data)
}

func (cm *CacheManager) build(build BuildFunc) (bundle.Bundle, error) {
	built, err := build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	return built, nil
}

func (cm *CacheManager) touch(path string) {
	now := cm.now()
	if err := cm.fs.Chtimes(path, now, now); err != nil {
		cm.logger.Debug("Failed to touch cache entry", zap.String("path", path), zap.Error(err))
	}
}

// publishLinked writes to a temp file and hard-links it into place, so readers never see a partial entry.
func (cm *CacheManager) publishLinked(path string, data []byte) error {
	tmp, err := afero.TempFile(cm.fs, cm.root, ".nls-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = cm.fs.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			cm.logger.Debug("Bundle cache entry already written", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("publish cache file %s: %w", path, err)
	}
	return nil
}

func (cm *CacheManager) publishExclusive(path string, data []byte) error {
	f, err := cm.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			cm.logger.Debug("Bundle cache entry already written", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("create cache file %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	return f.Close()
}

func isCorruption(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
