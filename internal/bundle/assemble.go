package bundle

import (
	"path/filepath"
	"strings"
)

// Assemble builds a bundle for every module in metadata. Translations for module m are looked up
// in contents under prefix+"/"+m; keys without a translation keep their extracted message, and
// modules without a pack entry pass through untranslated.
func Assemble(metadata Metadata, contents map[string]map[string]string, prefix string) Bundle {
	result := make(Bundle, len(metadata))
	for module, entry := range metadata {
		translations, ok := contents[packModuleKey(prefix, module)]
		if !ok || translations == nil {
			result[module] = entry.Messages
			continue
		}

		messages := make([]string, len(entry.Keys))
		for i, key := range entry.Keys {
			translated, found := translations[key.Key]
			if !found && i < len(entry.Messages) {
				translated = entry.Messages[i]
			}
			messages[i] = translated
		}
		result[module] = messages
	}
	return result
}

// DefaultBundle returns the untranslated messages of every module.
func DefaultBundle(metadata Metadata) Bundle {
	return Assemble(metadata, nil, "")
}

func packModuleKey(prefix, module string) string {
	if prefix == "" {
		return module
	}
	return prefix + "/" + module
}

// ModuleKey returns the module identifier of file inside bundleDir: the relative path with
// forward slashes. file is expected to be extension-less already.
func ModuleKey(bundleDir, file string) string {
	rel, err := filepath.Rel(bundleDir, file)
	if err != nil {
		rel = strings.TrimPrefix(file, bundleDir)
		rel = strings.TrimLeft(rel, `/\`)
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/")
}

// StripExt removes the file extension, if any. A leading dot names a hidden file, not an extension.
func StripExt(file string) string {
	ext := filepath.Ext(file)
	if ext == "" || ext == filepath.Base(file) {
		return file
	}
	return file[:len(file)-len(ext)]
}
