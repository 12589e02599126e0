// Package resolver turns a module file into a localize function by resolving the message
// bundle it belongs to.
package resolver

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"nlsbundle/internal/bundle"
	"nlsbundle/internal/core"
	"nlsbundle/internal/locale"
	"nlsbundle/internal/store"
)

// InjectedContext names a module file relative to the configured directory hint.
type InjectedContext struct {
	RelativeFilePath string
}

// Resolver resolves message bundles for module files and hands out localize functions.
// Resolutions are remembered per bundle directory until the configuration changes.
type Resolver struct {
	mutex        sync.RWMutex
	fs           afero.Fs
	logger       *zap.Logger
	metrics      *Metrics
	options      core.Options
	translations bundle.TranslationsConfig
	cache        *store.CacheManager
	locales      *locale.Resolver
	resolutions  *store.ResolutionStore
	group        singleflight.Group
	epoch        uint64
	pseudo       atomic.Bool

	directoryStrategies []strategy
	fileStrategy        strategy
}

// New creates a resolver. metrics may be nil.
func New(config *core.Config, fsys afero.Fs, logger *zap.Logger, metrics *Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	opts := config.NLS
	if opts.BundleFormat == core.BundleFormatStandalone {
		opts.LanguagePackSupport = false
	}

	r := &Resolver{
		fs:          fsys,
		logger:      logger,
		metrics:     metrics,
		options:     opts,
		locales:     locale.NewResolver(opts.Language, opts.CacheLanguageResolution, config.Resolver.LocaleMemoSize),
		resolutions: store.NewResolutionStore(config.Resolver.MaxResolutions, store.DefaultFalsePositiveRate),
		directoryStrategies: []strategy{
			languagePackStrategy{},
			inBoxStrategy{},
			defaultSynthesisStrategy{},
		},
		fileStrategy: singleFileStrategy{},
	}
	r.pseudo.Store(opts.Pseudo())
	r.validateLocale()
	r.loadTranslations()
	r.configureCache()

	return r
}

// Configure merges patch into the active options. Changes that affect resolution start a new
// epoch: every remembered bundle and locale resolution is forgotten.
func (r *Resolver) Configure(patch core.Patch) *Resolver {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous := r.options
	if !patch.Apply(&r.options) {
		return r
	}

	r.epoch++
	r.resolutions.Clear()
	r.locales.Reset(r.options.Language, r.options.CacheLanguageResolution)
	r.pseudo.Store(r.options.Pseudo())
	r.metrics.RecordEpoch()
	r.metrics.SetResolvedBundles(0)

	if previous.Locale != r.options.Locale {
		r.validateLocale()
	}
	if previous.TranslationsConfigFile != r.options.TranslationsConfigFile {
		r.loadTranslations()
	}
	if previous.CacheRoot != r.options.CacheRoot {
		r.configureCache()
	}

	r.logger.Debug("Configuration changed",
		zap.Uint64("epoch", r.epoch),
		zap.String("locale", r.options.Locale),
		zap.String("language", r.options.Language),
		zap.String("message_format", string(r.options.MessageFormat)),
		zap.Bool("language_pack_support", r.options.LanguagePackSupport))
	return r
}

// Options returns a copy of the active options.
func (r *Resolver) Options() core.Options {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.options
}

// Pseudo reports whether pseudo-localization is active.
func (r *Resolver) Pseudo() bool {
	return r.pseudo.Load()
}

// Localize returns the dev-mode localize function, which formats the supplied message.
func (r *Resolver) Localize() LocalizeFunc {
	return r.devLocalize
}

// Resolved returns the number of bundle directories remembered in the current epoch.
func (r *Resolver) Resolved() int {
	return r.resolutions.Size()
}

// LoadContext resolves ctx.RelativeFilePath against the directory hint and loads its bundle.
func (r *Resolver) LoadContext(ctx InjectedContext) (LocalizeFunc, error) {
	if ctx.RelativeFilePath == "" {
		return r.devLocalize, nil
	}

	file := ctx.RelativeFilePath
	if hint := r.Options().DirNameHint; hint != "" && !filepath.IsAbs(file) {
		file = filepath.Join(hint, file)
	}
	return r.LoadMessageBundle(file)
}

// Module is the outcome of resolving a module file: its messages, or the fixed result
// every lookup returns when resolution degraded.
type Module struct {
	File     string
	Name     string
	Messages []string
	Fallback string
}

// LoadMessageBundle returns the localize function for the module file. An empty file yields
// the dev-mode function. The returned function is always usable; a non-nil error reports a
// cache I/O failure, which is not remembered and is retried on the next call.
func (r *Resolver) LoadMessageBundle(file string) (LocalizeFunc, error) {
	if file == "" {
		return r.devLocalize, nil
	}

	module, err := r.ResolveModule(file)
	if module.Fallback != "" {
		return constantLocalize(module.Fallback), err
	}
	return r.scopedLocalize(module.File, module.Messages), nil
}

// ResolveModule resolves the messages of a module file. Strategies are tried in order:
// the bundle of the enclosing metadata directory, then the per-module sibling file.
func (r *Resolver) ResolveModule(file string) (Module, error) {
	start := time.Now()
	defer func() { r.metrics.RecordResolutionTime(time.Since(start)) }()

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	file = bundle.StripExt(file)

	if r.options.MessageFormat.UsesBundles() {
		module, err := r.loadFromBundle(file)
		if err != nil {
			return Module{File: file, Fallback: LoadFailed}, err
		}
		if module != nil {
			return *module, nil
		}
	}

	req := &request{file: file, module: filepath.Base(file)}
	if r.fileStrategy.applies(r, req) {
		result, err := r.fileStrategy.attempt(r, req)
		switch {
		case errors.Is(err, bundle.ErrUnsupportedFormat):
			r.metrics.RecordResolution(StrategySingleFile, OutcomeError)
			return Module{File: file, Name: req.module, Fallback: UnsupportedFormat}, nil
		case err != nil:
			r.metrics.RecordResolution(StrategySingleFile, OutcomeError)
			return Module{File: file, Name: req.module, Fallback: LoadFailed}, err
		case result != nil:
			r.metrics.RecordResolution(StrategySingleFile, OutcomeHit)
			return Module{File: file, Name: req.module, Messages: result[req.module]}, nil
		default:
			r.metrics.RecordResolution(StrategySingleFile, OutcomeMiss)
		}
	}

	r.logger.Error(fmt.Sprintf("Failed to load message bundle for file %s", file))
	return Module{File: file, Fallback: LoadFailed}, nil
}

// loadFromBundle looks file up in the bundle of its enclosing metadata directory.
// It returns nil when there is no such bundle.
func (r *Resolver) loadFromBundle(file string) (*Module, error) {
	headerFile, err := bundle.FindHeader(r.fs, file)
	if err != nil {
		r.logger.Warn("Failed to look up metadata header", zap.String("file", file), zap.Error(err))
		return nil, nil
	}
	if headerFile == "" {
		return nil, nil
	}

	dir := filepath.Dir(headerFile)
	resolution, err := r.resolveDirectory(dir, headerFile)
	if err != nil || resolution == nil {
		return nil, err
	}

	name := bundle.ModuleKey(dir, file)
	messages, ok := resolution.Bundle.Messages(name)
	if !ok {
		r.logger.Error(fmt.Sprintf("Messages for file %s not found. See console for details.", file),
			zap.String("module", name),
			zap.String("bundle", dir))
		return &Module{File: file, Name: name, Fallback: MessagesNotFound}, nil
	}
	return &Module{File: file, Name: name, Messages: messages}, nil
}

// resolveDirectory returns the remembered resolution of dir, resolving it on first use.
// Concurrent first uses share one resolution. A nil resolution is a remembered failure.
func (r *Resolver) resolveDirectory(dir, headerFile string) (*store.Resolution, error) {
	if resolution, found := r.resolutions.Get(dir); found {
		return resolution, nil
	}

	key := strconv.FormatUint(r.epoch, 10) + ":" + dir
	value, err, _ := r.group.Do(key, func() (any, error) {
		if resolution, found := r.resolutions.Get(dir); found {
			return resolution, nil
		}

		resolution, err := r.resolveBundle(dir, headerFile)
		if err != nil {
			return nil, err
		}
		r.resolutions.Put(dir, resolution)
		r.metrics.SetResolvedBundles(r.resolutions.Size())
		return resolution, nil
	})
	if err != nil {
		return nil, err
	}

	resolution, _ := value.(*store.Resolution)
	return resolution, nil
}

func (r *Resolver) resolveBundle(dir, headerFile string) (*store.Resolution, error) {
	header, err := bundle.ReadHeader(r.fs, headerFile)
	if err != nil {
		r.logger.Error("Failed to read header file", zap.String("path", headerFile), zap.Error(err))
		return nil, nil
	}

	req := &request{dir: dir, header: header}
	for _, s := range r.directoryStrategies {
		if !s.applies(r, req) {
			continue
		}

		result, err := s.attempt(r, req)
		if err != nil {
			r.metrics.RecordResolution(s.name(), OutcomeError)
			r.logger.Error("Failed to load nls bundle",
				zap.String("strategy", s.name()),
				zap.String("dir", dir),
				zap.Error(err))
			return nil, err
		}
		if result == nil {
			r.metrics.RecordResolution(s.name(), OutcomeMiss)
			continue
		}

		r.metrics.RecordResolution(s.name(), OutcomeHit)
		r.logger.Debug("Resolved message bundle",
			zap.String("strategy", s.name()),
			zap.String("dir", dir),
			zap.String("id", header.ID))
		return &store.Resolution{Header: *header, Bundle: result}, nil
	}

	r.logger.Warn("No strategy produced a message bundle", zap.String("dir", dir))
	return nil, nil
}

func (r *Resolver) validateLocale() {
	if err := locale.Validate(r.options.Locale); err != nil {
		r.logger.Warn("Locale is not a valid language tag, using it verbatim", zap.Error(err))
	}
}

// loadTranslations reads the translations config. When it cannot be read the corrupted
// marker is written, if its directory exists, so the host rebuilds its cache.
func (r *Resolver) loadTranslations() {
	r.translations = nil
	if r.options.TranslationsConfigFile == "" {
		return
	}

	translations, err := bundle.ReadTranslationsConfig(r.fs, r.options.TranslationsConfigFile)
	if err == nil {
		r.translations = translations
		return
	}

	r.logger.Warn("Failed to read translations config",
		zap.String("path", r.options.TranslationsConfigFile),
		zap.Error(err))

	marker := r.options.CorruptedFile
	if marker == "" {
		return
	}
	if exists, _ := afero.DirExists(r.fs, filepath.Dir(marker)); !exists {
		return
	}
	if err := afero.WriteFile(r.fs, marker, []byte("corrupted"), 0o644); err != nil {
		r.logger.Error("Failed to write corrupted marker", zap.String("path", marker), zap.Error(err))
	}
}

func (r *Resolver) configureCache() {
	r.cache = nil
	if r.options.CacheRoot == "" {
		return
	}
	r.cache = store.NewCacheManager(r.fs, r.options.CacheRoot, r.logger.Named("cache"), r.metrics)
}
