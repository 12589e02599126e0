package core

import (
	"encoding/json"
	"strings"
)

// EnvConfig is the structured configuration a host passes through an environment variable.
// Fields are nil when absent or of the wrong type.
type EnvConfig struct {
	Locale                 *string
	AvailableLanguage      *string
	LanguagePackSupport    *bool
	LanguagePackID         *string
	TranslationsConfigFile *string
	CacheRoot              *string
	CorruptedFile          *string
}

// ParseEnvConfig decodes raw. Malformed JSON yields an empty config and wrongly typed fields
// are skipped, so defaults are retained.
func ParseEnvConfig(raw string) EnvConfig {
	var cfg EnvConfig
	if strings.TrimSpace(raw) == "" {
		return cfg
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return cfg
	}

	cfg.Locale = decodeField[string](fields, "locale")
	cfg.LanguagePackSupport = decodeField[bool](fields, "_languagePackSupport")
	cfg.LanguagePackID = decodeField[string](fields, "_languagePackId")
	cfg.TranslationsConfigFile = decodeField[string](fields, "_translationsConfigFile")
	cfg.CacheRoot = decodeField[string](fields, "_cacheRoot")
	cfg.CorruptedFile = decodeField[string](fields, "_corruptedFile")

	if languages := decodeField[map[string]json.RawMessage](fields, "availableLanguages"); languages != nil {
		cfg.AvailableLanguage = decodeField[string](*languages, "*")
	}
	return cfg
}

// Apply overlays the environment configuration onto o.
// An available language of "en" keeps the default messages.
func (e EnvConfig) Apply(o *Options) {
	if e.Locale != nil {
		o.Locale = strings.ToLower(*e.Locale)
	}
	switch {
	case e.AvailableLanguage == nil:
		o.Language = o.Locale
	case *e.AvailableLanguage != "en":
		o.Language = *e.AvailableLanguage
	}

	if e.LanguagePackSupport != nil {
		o.LanguagePackSupport = *e.LanguagePackSupport
	}
	if e.CacheRoot != nil {
		o.CacheRoot = *e.CacheRoot
	}
	if e.LanguagePackID != nil {
		o.LanguagePackID = *e.LanguagePackID
	}
	if e.TranslationsConfigFile != nil {
		o.TranslationsConfigFile = *e.TranslationsConfigFile
	}
	if e.CorruptedFile != nil {
		o.CorruptedFile = *e.CorruptedFile
	}
}

func decodeField[T any](fields map[string]json.RawMessage, name string) *T {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	// null decodes into the zero value without error
	if strings.TrimSpace(string(raw)) == "null" {
		return nil
	}
	return &value
}
