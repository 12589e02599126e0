package core

import (
	"fmt"
	"strings"
)

// PseudoLocale enables pseudo-localization of every formatted message.
const PseudoLocale = "pseudo"

// MessageFormat selects where messages are looked up.
type MessageFormat string

const (
	// MessageFormatFile reads per-module sibling files only.
	MessageFormatFile MessageFormat = "file"
	// MessageFormatBundle reads aggregated bundles only.
	MessageFormatBundle MessageFormat = "bundle"
	// MessageFormatBoth tries aggregated bundles first, then sibling files.
	MessageFormatBoth MessageFormat = "both"
)

// ParseMessageFormat converts a flag or config value into a MessageFormat.
func ParseMessageFormat(value string) (MessageFormat, error) {
	switch MessageFormat(strings.ToLower(value)) {
	case MessageFormatFile:
		return MessageFormatFile, nil
	case MessageFormatBundle:
		return MessageFormatBundle, nil
	case MessageFormatBoth:
		return MessageFormatBoth, nil
	default:
		return "", fmt.Errorf("unknown message format %q (expected file, bundle or both)", value)
	}
}

// UsesBundles reports whether aggregated bundles are consulted.
func (f MessageFormat) UsesBundles() bool {
	return f == MessageFormatBundle || f == MessageFormatBoth
}

// UsesFiles reports whether per-module sibling files are consulted.
func (f MessageFormat) UsesFiles() bool {
	return f == MessageFormatFile || f == MessageFormatBoth
}

// BundleFormat selects how aggregated bundles are produced.
type BundleFormat string

const (
	// BundleFormatStandalone uses the bundles shipped next to the code.
	BundleFormatStandalone BundleFormat = "standalone"
	// BundleFormatLanguagePack assembles bundles from installed language packs.
	BundleFormatLanguagePack BundleFormat = "languagePack"
)

// ParseBundleFormat converts a flag or config value into a BundleFormat.
func ParseBundleFormat(value string) (BundleFormat, error) {
	switch strings.ToLower(value) {
	case "standalone":
		return BundleFormatStandalone, nil
	case "languagepack", "language-pack":
		return BundleFormatLanguagePack, nil
	default:
		return "", fmt.Errorf("unknown bundle format %q (expected standalone or languagePack)", value)
	}
}

// Options is the active resolver configuration.
// Locale drives pseudo mode; Language is the locale used for file lookups.
type Options struct {
	Locale                  string
	Language                string
	CacheLanguageResolution bool
	MessageFormat           MessageFormat
	BundleFormat            BundleFormat
	LanguagePackSupport     bool
	LanguagePackID          string
	CacheRoot               string
	TranslationsConfigFile  string
	CorruptedFile           string
	DirNameHint             string
}

func DefaultOptions() Options {
	return Options{
		CacheLanguageResolution: true,
		MessageFormat:           MessageFormatBundle,
	}
}

// Pseudo reports whether pseudo-localization is active.
func (o Options) Pseudo() bool {
	return o.Locale == PseudoLocale
}

// Patch holds optional configuration updates; nil fields keep their prior value.
type Patch struct {
	Locale                  *string
	CacheLanguageResolution *bool
	MessageFormat           *MessageFormat
	BundleFormat            *BundleFormat
	LanguagePackSupport     *bool
	LanguagePackID          *string
	CacheRoot               *string
	TranslationsConfigFile  *string
	DirNameHint             *string
}

// Apply merges p into o. It reports whether previously resolved bundles are invalidated.
func (p Patch) Apply(o *Options) bool {
	before := *o

	if p.Locale != nil {
		o.Locale = strings.ToLower(*p.Locale)
		o.Language = o.Locale
	}
	if p.CacheLanguageResolution != nil {
		o.CacheLanguageResolution = *p.CacheLanguageResolution
	}
	if p.MessageFormat != nil {
		o.MessageFormat = *p.MessageFormat
	}
	if p.LanguagePackSupport != nil {
		o.LanguagePackSupport = *p.LanguagePackSupport
	}
	if p.LanguagePackID != nil {
		o.LanguagePackID = *p.LanguagePackID
	}
	if p.CacheRoot != nil {
		o.CacheRoot = *p.CacheRoot
	}
	if p.TranslationsConfigFile != nil {
		o.TranslationsConfigFile = *p.TranslationsConfigFile
	}
	if p.DirNameHint != nil {
		o.DirNameHint = *p.DirNameHint
	}
	if p.BundleFormat != nil {
		o.BundleFormat = *p.BundleFormat
		if o.BundleFormat == BundleFormatStandalone {
			o.LanguagePackSupport = false
		}
	}

	// A hint only affects how callers name files, not what resolves
	after := *o
	after.DirNameHint = before.DirNameHint
	return after != before
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
