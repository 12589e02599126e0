// Package locale computes locale fallback chains and resolves the most specific localized file.
package locale

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/language"
)

const (
	// Pseudo is the locale that turns on pseudo-localization.
	Pseudo = "pseudo"

	// DefaultMemoSize bounds the number of memoized resolutions.
	DefaultMemoSize = 512

	siblingDefaultSuffix = ".nls.json"
	bundleDefaultName    = "nls.bundle.json"
)

// Kind distinguishes the two candidate naming schemes sharing the fallback algorithm.
type Kind int

const (
	// KindSibling resolves per-file siblings: <base>.nls.<locale>.json.
	KindSibling Kind = iota
	// KindBundle resolves aggregated bundles: <dir>/nls.bundle.<locale>.json.
	KindBundle
)

// Chain returns the fallback chain for a locale, most specific first.
// "de-ch" yields ["de-ch", "de"]. Empty and pseudo locales have no chain.
func Chain(locale string) []string {
	if locale == "" || locale == Pseudo {
		return nil
	}

	var chain []string
	for locale != "" {
		chain = append(chain, locale)
		index := strings.LastIndex(locale, "-")
		if index <= 0 {
			break
		}
		locale = locale[:index]
	}
	return chain
}

// Resolve walks the fallback chain and returns the first candidate the probe accepts.
// ok is false when nothing matched and the unlocalized default should be used.
func Resolve(locale string, probe func(candidate string) bool) (match string, ok bool) {
	for _, candidate := range Chain(locale) {
		if probe(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// SiblingFile names the per-file sibling for a locale; an empty locale names the default.
func SiblingFile(base, locale string) string {
	if locale == "" {
		return base + siblingDefaultSuffix
	}
	return base + ".nls." + locale + ".json"
}

// BundleFile names the aggregated bundle in dir for a locale; an empty locale names the default.
func BundleFile(dir, locale string) string {
	if locale == "" {
		return filepath.Join(dir, bundleDefaultName)
	}
	return filepath.Join(dir, fmt.Sprintf("nls.bundle.%s.json", locale))
}

// Validate reports whether locale parses as a BCP 47 tag.
func Validate(locale string) error {
	if locale == "" || locale == Pseudo {
		return nil
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return nil
}

type memoKey struct {
	kind Kind
	base string
}

type memoEntry struct {
	locale string
	ok     bool
}

// Resolver memoizes fallback resolution per (kind, base) for the lifetime of a configuration epoch.
// The memo is bounded: once it holds size entries the least recently used winner is dropped
// and probed again on its next lookup.
type Resolver struct {
	mutex   sync.RWMutex
	locale  string
	caching bool
	memo    *lru.Cache[memoKey, memoEntry]
}

// NewResolver creates a resolver for locale. When caching is false every call probes again.
func NewResolver(locale string, caching bool, size int) *Resolver {
	if size <= 0 {
		size = DefaultMemoSize
	}
	memo, err := lru.New[memoKey, memoEntry](size)
	if err != nil {
		panic(fmt.Sprintf("locale memo: %v", err))
	}

	return &Resolver{
		locale:  locale,
		caching: caching,
		memo:    memo,
	}
}

// Reset switches the resolver to a new locale and forgets every memoized winner.
func (r *Resolver) Reset(locale string, caching bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.locale = locale
	r.caching = caching
	r.memo.Purge()
}

// Locale returns the locale resolutions are computed for.
func (r *Resolver) Locale() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.locale
}

// Resolve returns the winning locale for base, consulting the memo when caching is enabled.
func (r *Resolver) Resolve(kind Kind, base string, probe func(candidate string) bool) (string, bool) {
	r.mutex.RLock()
	locale, caching := r.locale, r.caching
	r.mutex.RUnlock()

	key := memoKey{kind: kind, base: base}
	if caching {
		if entry, found := r.memo.Get(key); found {
			return entry.locale, entry.ok
		}
	}

	match, ok := Resolve(locale, probe)
	if caching {
		r.memo.Add(key, memoEntry{locale: match, ok: ok})
	}
	return match, ok
}

// Len returns the number of memoized resolutions.
func (r *Resolver) Len() int {
	return r.memo.Len()
}
