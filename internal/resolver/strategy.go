package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"nlsbundle/internal/bundle"
	"nlsbundle/internal/locale"
	"nlsbundle/internal/store"
)

// Strategy names, used as metric labels.
const (
	StrategyLanguagePack     = "languagePack"
	StrategyInBox            = "inBox"
	StrategyDefaultSynthesis = "defaultSynthesis"
	StrategySingleFile       = "singleFile"
)

// request is what a strategy sees of a lookup. Directory strategies use dir and header,
// the single-file strategy uses file and module.
type request struct {
	file   string
	module string
	dir    string
	header *bundle.Header
}

// strategy produces a bundle for a request. A nil bundle with a nil error is a miss.
// Any other error aborts the lookup; bundle.ErrUnsupportedFormat selects the unsupported-format
// lookup function.
type strategy interface {
	name() string
	applies(r *Resolver, req *request) bool
	attempt(r *Resolver, req *request) (bundle.Bundle, error)
}

// languagePackStrategy assembles a bundle from the installed language pack, through the disk cache.
type languagePackStrategy struct{}

func (languagePackStrategy) name() string { return StrategyLanguagePack }

func (languagePackStrategy) applies(r *Resolver, _ *request) bool {
	o := r.options
	return o.LanguagePackSupport &&
		r.translations != nil &&
		r.cache != nil &&
		o.LanguagePackID != "" &&
		o.TranslationsConfigFile != ""
}

func (languagePackStrategy) attempt(r *Resolver, req *request) (bundle.Bundle, error) {
	header := req.header
	result, err := r.cache.ReadOrBuild(header.ID, header.Hash, func() (bundle.Bundle, error) {
		location, ok := r.translations[header.ID]
		if !ok || location == "" {
			return nil, nil
		}
		pack, err := bundle.ReadTranslationPack(r.fs, location)
		if err != nil {
			return nil, err
		}
		metadata, err := bundle.ReadMetadata(r.fs, req.dir)
		if err != nil {
			return nil, err
		}
		return bundle.Assemble(metadata, pack.Contents, header.OutDir), nil
	})
	if errors.Is(err, store.ErrBuildFailed) {
		r.logger.Info("Load or create bundle failed",
			zap.String("id", header.ID),
			zap.Error(err))
		return nil, nil
	}
	return result, err
}

// inBoxStrategy reads the pre-built nls.bundle.<locale>.json shipped in the bundle directory.
type inBoxStrategy struct{}

func (inBoxStrategy) name() string { return StrategyInBox }

func (inBoxStrategy) applies(*Resolver, *request) bool { return true }

func (inBoxStrategy) attempt(r *Resolver, req *request) (bundle.Bundle, error) {
	candidate := findFile(r, locale.KindBundle, req.dir, func(loc string) string {
		return locale.BundleFile(req.dir, loc)
	})
	if candidate == "" {
		return nil, nil
	}

	result, err := bundle.ReadBundle(r.fs, candidate)
	if err != nil {
		r.logger.Info("Loading in the box message bundle failed",
			zap.String("path", candidate),
			zap.Error(err))
		return nil, nil
	}
	return result, nil
}

// defaultSynthesisStrategy emits the untranslated messages of the extraction metadata.
type defaultSynthesisStrategy struct{}

func (defaultSynthesisStrategy) name() string { return StrategyDefaultSynthesis }

func (defaultSynthesisStrategy) applies(*Resolver, *request) bool { return true }

func (defaultSynthesisStrategy) attempt(r *Resolver, req *request) (bundle.Bundle, error) {
	metadata, err := bundle.ReadMetadata(r.fs, req.dir)
	if err != nil {
		r.logger.Info("Generating default bundle from meta data failed",
			zap.String("dir", req.dir),
			zap.Error(err))
		return nil, nil
	}
	return bundle.DefaultBundle(metadata), nil
}

// singleFileStrategy reads the per-module sibling file <file>.nls.<locale>.json.
// The resulting bundle holds the module only; ErrUnsupportedFormat is passed through.
type singleFileStrategy struct{}

func (singleFileStrategy) name() string { return StrategySingleFile }

func (singleFileStrategy) applies(r *Resolver, _ *request) bool {
	return r.options.MessageFormat.UsesFiles()
}

func (singleFileStrategy) attempt(r *Resolver, req *request) (bundle.Bundle, error) {
	candidate := findFile(r, locale.KindSibling, req.file, func(loc string) string {
		return locale.SiblingFile(req.file, loc)
	})
	if candidate == "" {
		return nil, nil
	}

	single, err := bundle.ReadSingleFile(r.fs, candidate)
	switch {
	case err == nil:
		return bundle.Bundle{req.module: single.Messages}, nil
	case errors.Is(err, bundle.ErrUnsupportedFormat):
		r.logger.Error(fmt.Sprintf("String bundle '%s' uses an unsupported format.", req.file))
		return nil, err
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	default:
		r.logger.Error("Failed to load single file bundle",
			zap.String("path", candidate),
			zap.Error(err))
		return nil, nil
	}
}

// findFile resolves the most specific localized candidate for base, then the unlocalized
// default. It returns "" when neither exists.
func findFile(r *Resolver, kind locale.Kind, base string, name func(loc string) string) string {
	exists := func(path string) bool {
		ok, err := afero.Exists(r.fs, path)
		if err != nil {
			r.logger.Debug("Failed to stat candidate", zap.String("path", path), zap.Error(err))
		}
		return ok
	}

	if match, ok := r.locales.Resolve(kind, filepath.Clean(base), func(loc string) bool {
		return exists(name(loc))
	}); ok {
		return name(match)
	}
	if candidate := name(""); exists(candidate) {
		return candidate
	}
	return ""
}
