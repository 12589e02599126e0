package bundle

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestAssemble_TranslatesByKey(t *testing.T) {
	metadata := Metadata{
		"main": {Messages: []string{"Good day world"}, Keys: []KeyInfo{{Key: "greeting"}}},
	}

	translated := Assemble(metadata, map[string]map[string]string{
		"out/main": {"greeting": "Guten Tag Welt"},
	}, "out")
	if !reflect.DeepEqual(translated["main"], []string{"Guten Tag Welt"}) {
		t.Errorf("Expected translated message, got %v", translated["main"])
	}

	untranslated := Assemble(metadata, map[string]map[string]string{
		"out/main": {"farewell": "Auf Wiedersehen"},
	}, "out")
	if !reflect.DeepEqual(untranslated["main"], []string{"Good day world"}) {
		t.Errorf("Expected source message for missing key, got %v", untranslated["main"])
	}
}

func TestAssemble_PreservesOrderAndModules(t *testing.T) {
	metadata := Metadata{
		"a": {
			Messages: []string{"one", "two", "three"},
			Keys:     []KeyInfo{{Key: "k1"}, {Key: "k2", Comment: []string{"second"}}, {Key: "k3"}},
		},
		"b": {Messages: []string{"untouched"}, Keys: []KeyInfo{{Key: "x"}}},
	}
	contents := map[string]map[string]string{
		"a": {"k3": "drei", "k2": "zwei"},
	}

	result := Assemble(metadata, contents, "")

	if !reflect.DeepEqual(result["a"], []string{"one", "zwei", "drei"}) {
		t.Errorf("Unexpected messages for a: %v", result["a"])
	}
	if !reflect.DeepEqual(result["b"], []string{"untouched"}) {
		t.Errorf("Module without pack entry should pass through, got %v", result["b"])
	}
	if len(result) != len(metadata) {
		t.Errorf("Expected %d modules, got %d", len(metadata), len(result))
	}
}

func TestDefaultBundle(t *testing.T) {
	metadata := Metadata{"m": {Messages: []string{"a", "b"}, Keys: []KeyInfo{{Key: "1"}, {Key: "2"}}}}
	if result := DefaultBundle(metadata); !reflect.DeepEqual(result["m"], []string{"a", "b"}) {
		t.Errorf("DefaultBundle() = %v", result)
	}
}

func TestKeyInfo_UnmarshalJSON(t *testing.T) {
	var keys []KeyInfo
	data := `["plain", {"key": "withComment", "comment": ["first", "second"]}, {"key": "single", "comment": "one"}]`
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	expected := []KeyInfo{
		{Key: "plain"},
		{Key: "withComment", Comment: []string{"first", "second"}},
		{Key: "single", Comment: []string{"one"}},
	}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Unmarshal = %+v, expected %+v", keys, expected)
	}

	out, err := json.Marshal(keys[:2])
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `["plain",{"key":"withComment","comment":["first","second"]}]` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestReadMetadata_RejectsMismatchedLengths(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeFile(t, memFs, "/b/nls.metadata.json", `{"m": {"messages": ["a", "b"], "keys": ["k"]}}`)

	_, err := ReadMetadata(memFs, "/b")
	if !errors.Is(err, ErrMalformedMetadata) {
		t.Errorf("Expected ErrMalformedMetadata, got %v", err)
	}
}

func TestReadMetadata_NotFound(t *testing.T) {
	_, err := ReadMetadata(afero.NewMemMapFs(), "/missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestParseSingleFile(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    []string
		expectedErr error
	}{
		{name: "flat array", content: `["Guten Tag Welt"]`, expected: []string{"Guten Tag Welt"}},
		{
			name:     "structured",
			content:  `{"messages": ["Guten Tag Welt", "Auf Wiedersehen Welt"], "keys": ["a", "b"]}`,
			expected: []string{"Guten Tag Welt", "Auf Wiedersehen Welt"},
		},
		{name: "object without keys", content: `{"messages": ["x"]}`, expectedErr: ErrUnsupportedFormat},
		{name: "string document", content: `"hello"`, expectedErr: ErrUnsupportedFormat},
		{name: "null document", content: `null`, expectedErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseSingleFile([]byte(tt.content))
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("Expected error %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result.Messages, tt.expected) {
				t.Errorf("Messages = %v, expected %v", result.Messages, tt.expected)
			}
		})
	}

	if _, err := ParseSingleFile([]byte(`{"messages": [`)); err == nil || errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected a syntax error for truncated JSON, got %v", err)
	}
}

func TestFindHeader(t *testing.T) {
	memFs := afero.NewMemMapFs()
	header := filepath.Join("/ext", "out", HeaderFileName)
	writeFile(t, memFs, header, `{"id": "pub.ext", "hash": "abc", "outDir": "out"}`)

	found, err := FindHeader(memFs, filepath.Join("/ext", "out", "src", "deep", "main"))
	if err != nil {
		t.Fatalf("FindHeader failed: %v", err)
	}
	if found != header {
		t.Errorf("FindHeader() = %q, expected %q", found, header)
	}

	found, err = FindHeader(memFs, filepath.Join("/other", "main"))
	if err != nil || found != "" {
		t.Errorf("FindHeader() without header = %q, %v", found, err)
	}

	h, err := ReadHeader(memFs, header)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if h.ID != "pub.ext" || h.Hash != "abc" || h.OutDir != "out" {
		t.Errorf("Unexpected header: %+v", h)
	}
}

func TestModuleKey(t *testing.T) {
	tests := []struct {
		dir      string
		file     string
		expected string
	}{
		{dir: "/ext/out", file: "/ext/out/src/main", expected: "src/main"},
		{dir: "/ext/out", file: "/ext/out/extension", expected: "extension"},
		{dir: "/ext/out", file: "/ext/out/cafe\u0301", expected: "cafe\u0301"},
		{dir: "/ext/out", file: "/ext/out/localize.test", expected: "localize.test"},
	}

	for _, tt := range tests {
		if got := ModuleKey(tt.dir, tt.file); got != tt.expected {
			t.Errorf("ModuleKey(%q, %q) = %q, expected %q", tt.dir, tt.file, got, tt.expected)
		}
	}
}

func TestStripExt(t *testing.T) {
	if got := StripExt("/ext/out/main.js"); got != "/ext/out/main" {
		t.Errorf("StripExt() = %q", got)
	}
	if got := StripExt("/ext/v1.2/main"); got != "/ext/v1.2/main" {
		t.Errorf("StripExt() should only look at the last element, got %q", got)
	}
	if got := StripExt("/ext/out/.hidden"); got != "/ext/out/.hidden" {
		t.Errorf("StripExt() should keep hidden file names, got %q", got)
	}
	if got := StripExt("/ext/out/.hidden.js"); got != "/ext/out/.hidden" {
		t.Errorf("StripExt() = %q, expected /ext/out/.hidden", got)
	}
}

func TestBundleMessages_CanonicalEquivalence(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"
	b := Bundle{decomposed: {"hello"}, "main": {"main"}}

	tests := []struct {
		name   string
		module string
		found  bool
	}{
		{name: "exact decomposed", module: decomposed, found: true},
		{name: "composed spelling", module: composed, found: true},
		{name: "exact ascii", module: "main", found: true},
		{name: "missing", module: "other", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, ok := b.Messages(tt.module)
			if ok != tt.found {
				t.Fatalf("Messages(%q) found = %v, expected %v", tt.module, ok, tt.found)
			}
			if ok && len(messages) != 1 {
				t.Errorf("Messages(%q) = %v", tt.module, messages)
			}
		})
	}
}

func TestReadTranslationPackAndConfig(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeFile(t, memFs, "/packs/de.json", `{"version": "1.0", "contents": {"out/main": {"greeting": "Hallo"}}}`)
	writeFile(t, memFs, "/packs/config.json", `{"pub.ext": "/packs/de.json"}`)

	config, err := ReadTranslationsConfig(memFs, "/packs/config.json")
	if err != nil {
		t.Fatalf("ReadTranslationsConfig failed: %v", err)
	}
	pack, err := ReadTranslationPack(memFs, config["pub.ext"])
	if err != nil {
		t.Fatalf("ReadTranslationPack failed: %v", err)
	}
	if pack.Version != "1.0" || pack.Contents["out/main"]["greeting"] != "Hallo" {
		t.Errorf("Unexpected pack: %+v", pack)
	}
}
