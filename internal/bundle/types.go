// Package bundle reads extraction metadata, translation packs and message bundles, and
// assembles translated bundles from them.
package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

const (
	// HeaderFileName marks the root directory of a metadata bundle.
	HeaderFileName = "nls.metadata.header.json"
	// MetadataFileName holds the extracted messages and keys of every module.
	MetadataFileName = "nls.metadata.json"
)

var (
	// ErrMalformedMetadata is returned when a metadata entry has mismatched messages and keys.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// ErrUnsupportedFormat is returned for single-file bundles that are neither an array nor {messages, keys}.
	ErrUnsupportedFormat = errors.New("unsupported bundle format")
)

// Header describes a metadata bundle: its identity, metadata hash and the module prefix used in language packs.
type Header struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Hash   string `json:"hash"`
	OutDir string `json:"outDir"`
}

// KeyInfo is a message key, either a plain string or a {key, comment} pair.
type KeyInfo struct {
	Key     string
	Comment []string
}

// UnmarshalJSON accepts both "key" and {"key": "...", "comment": [...]}.
func (k *KeyInfo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		k.Comment = nil
		return json.Unmarshal(data, &k.Key)
	}

	var structured struct {
		Key     string          `json:"key"`
		Comment json.RawMessage `json:"comment"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return fmt.Errorf("key info: %w", err)
	}
	k.Key = structured.Key
	k.Comment = nil

	// Comments are a list in extracted metadata but a single string in hand-written files
	if len(structured.Comment) > 0 && string(structured.Comment) != "null" {
		var comments []string
		if err := json.Unmarshal(structured.Comment, &comments); err != nil {
			var comment string
			if err := json.Unmarshal(structured.Comment, &comment); err != nil {
				return fmt.Errorf("key info comment: %w", err)
			}
			comments = []string{comment}
		}
		k.Comment = comments
	}
	return nil
}

// MarshalJSON writes plain keys as strings and commented keys as objects.
func (k KeyInfo) MarshalJSON() ([]byte, error) {
	if k.Comment == nil {
		return json.Marshal(k.Key)
	}
	return json.Marshal(struct {
		Key     string   `json:"key"`
		Comment []string `json:"comment"`
	}{Key: k.Key, Comment: k.Comment})
}

// MetadataEntry holds the source-language messages of one module; Messages[i] belongs to Keys[i].
type MetadataEntry struct {
	Messages []string  `json:"messages"`
	Keys     []KeyInfo `json:"keys"`
}

// Metadata maps module identifiers to their extracted messages.
type Metadata map[string]MetadataEntry

// Validate checks that every entry has as many keys as messages.
func (m Metadata) Validate() error {
	for module, entry := range m {
		if len(entry.Messages) != len(entry.Keys) {
			return fmt.Errorf("%w: module %q has %d messages and %d keys",
				ErrMalformedMetadata, module, len(entry.Messages), len(entry.Keys))
		}
	}
	return nil
}

// TranslationPack is one language's translations: module key -> message key -> translation.
type TranslationPack struct {
	Version  string                       `json:"version"`
	Contents map[string]map[string]string `json:"contents"`
}

// TranslationsConfig maps bundle identities to the location of their translation pack.
type TranslationsConfig map[string]string

// Bundle maps module identifiers to positional messages.
type Bundle map[string][]string

// Messages returns the messages of module and whether the module is present. Keys match
// exactly first, then by canonical equivalence, so composed and decomposed spellings of
// the same name find each other.
func (b Bundle) Messages(module string) ([]string, bool) {
	if messages, ok := b[module]; ok {
		return messages, true
	}

	want := norm.NFC.String(module)
	for key, messages := range b {
		if norm.NFC.String(key) == want {
			return messages, true
		}
	}
	return nil, false
}

// SingleFile is the parsed content of a per-module sibling file.
type SingleFile struct {
	Messages []string
	Keys     []KeyInfo
}
