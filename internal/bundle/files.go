package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ReadJSON reads filename from fs and decodes it into v.
func ReadJSON(fs afero.Fs, filename string, v any) error {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}

// ReadHeader reads a metadata header file.
func ReadHeader(fs afero.Fs, filename string) (*Header, error) {
	var header Header
	if err := ReadJSON(fs, filename, &header); err != nil {
		return nil, err
	}
	return &header, nil
}

// ReadMetadata reads and validates nls.metadata.json from dir.
func ReadMetadata(fs afero.Fs, dir string) (Metadata, error) {
	var metadata Metadata
	if err := ReadJSON(fs, filepath.Join(dir, MetadataFileName), &metadata); err != nil {
		return nil, err
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return metadata, nil
}

// ReadTranslationPack reads a language pack file.
func ReadTranslationPack(fs afero.Fs, filename string) (*TranslationPack, error) {
	var pack TranslationPack
	if err := ReadJSON(fs, filename, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// ReadTranslationsConfig reads the identity -> pack location mapping.
func ReadTranslationsConfig(fs afero.Fs, filename string) (TranslationsConfig, error) {
	var config TranslationsConfig
	if err := ReadJSON(fs, filename, &config); err != nil {
		return nil, err
	}
	return config, nil
}

// ReadBundle reads an aggregated bundle (nls.bundle.<locale>.json or a cache entry).
func ReadBundle(fs afero.Fs, filename string) (Bundle, error) {
	var b Bundle
	if err := ReadJSON(fs, filename, &b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadSingleFile reads a per-module sibling file, either a flat array or {messages, keys}.
func ReadSingleFile(fs afero.Fs, filename string) (*SingleFile, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, err
	}
	return ParseSingleFile(data)
}

// ParseSingleFile decodes the content of a per-module sibling file.
func ParseSingleFile(data []byte) (*SingleFile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []string
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, fmt.Errorf("parse message array: %w", err)
		}
		return &SingleFile{Messages: messages}, nil
	}

	var structured struct {
		Messages *[]string  `json:"messages"`
		Keys     *[]KeyInfo `json:"keys"`
	}
	if err := json.Unmarshal(trimmed, &structured); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("parse message file: %w", err)
	}
	if structured.Messages == nil || structured.Keys == nil {
		return nil, ErrUnsupportedFormat
	}
	return &SingleFile{Messages: *structured.Messages, Keys: *structured.Keys}, nil
}

// FindHeader walks up from the directory of file looking for the metadata header.
// It returns the header path, or "" when the filesystem root is reached without a match.
func FindHeader(fs afero.Fs, file string) (string, error) {
	dir := filepath.Dir(file)
	for {
		candidate := filepath.Join(dir, HeaderFileName)
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		if exists {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
