package main

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"nlsbundle/internal/core"
)

func resetViper(t *testing.T) {
	t.Helper()
	reset := func() {
		viper.Reset()
		if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
			t.Fatalf("Failed to bind flags: %v", err)
		}
	}
	reset()
	t.Cleanup(reset)
}

func TestBuildConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := buildConfig(func(string) string { return "" })
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.NLS.MessageFormat != core.MessageFormatBundle {
		t.Errorf("MessageFormat = %q, want %q", cfg.NLS.MessageFormat, core.MessageFormatBundle)
	}
	if cfg.Server.Port != core.DefaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, core.DefaultServerPort)
	}
	if cfg.Resolver.EnvVar != core.DefaultEnvVar {
		t.Errorf("Resolver.EnvVar = %q, want %q", cfg.Resolver.EnvVar, core.DefaultEnvVar)
	}
}

func TestBuildConfigFromEnvironment(t *testing.T) {
	resetViper(t)

	env := map[string]string{
		core.DefaultEnvVar: `{"locale":"DE-CH","availableLanguages":{"*":"de"},` +
			`"_languagePackSupport":true,"_languagePackId":"pack1","_cacheRoot":"/cache"}`,
	}
	cfg, err := buildConfig(func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.NLS.Locale != "de-ch" || cfg.NLS.Language != "de" {
		t.Errorf("Locale/Language = %q/%q, want de-ch/de", cfg.NLS.Locale, cfg.NLS.Language)
	}
	if !cfg.NLS.LanguagePackSupport || cfg.NLS.LanguagePackID != "pack1" || cfg.NLS.CacheRoot != "/cache" {
		t.Errorf("language pack options not applied: %+v", cfg.NLS)
	}
}

func TestBuildConfigFlagsOverrideEnvironment(t *testing.T) {
	resetViper(t)
	viper.Set("locale", "fr")
	viper.Set("message-format", "both")
	viper.Set("bundle-format", "standalone")
	viper.Set("dir-name-hint", "/ext/out")

	env := map[string]string{
		core.DefaultEnvVar: `{"locale":"de","_languagePackSupport":true}`,
	}
	cfg, err := buildConfig(func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.NLS.Locale != "fr" || cfg.NLS.Language != "fr" {
		t.Errorf("Locale/Language = %q/%q, want fr/fr", cfg.NLS.Locale, cfg.NLS.Language)
	}
	if cfg.NLS.MessageFormat != core.MessageFormatBoth {
		t.Errorf("MessageFormat = %q, want %q", cfg.NLS.MessageFormat, core.MessageFormatBoth)
	}
	if cfg.NLS.LanguagePackSupport {
		t.Error("standalone bundle format should disable language packs")
	}
	if cfg.NLS.DirNameHint != "/ext/out" {
		t.Errorf("DirNameHint = %q, want /ext/out", cfg.NLS.DirNameHint)
	}
	if cfg.Server.FileRoot != "/ext/out" {
		t.Errorf("Server.FileRoot = %q, want the directory hint", cfg.Server.FileRoot)
	}
}

func TestBuildConfigRejectsUnknownFormat(t *testing.T) {
	resetViper(t)
	viper.Set("message-format", "xml")

	if _, err := buildConfig(func(string) string { return "" }); err == nil {
		t.Fatal("buildConfig() should reject an unknown message format")
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := buildLogger(tt.level)
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("level %s should be disabled", tt.want-1)
			}
		})
	}
}

func TestFlagToEnvVar(t *testing.T) {
	if got := flagToEnvVar("language-pack-id"); got != "NLSCTL_LANGUAGE_PACK_ID" {
		t.Errorf("flagToEnvVar() = %q", got)
	}
}

func TestGenerateEnvExampleContent(t *testing.T) {
	content := generateEnvExampleContent(rootCmd)

	for _, want := range []string{
		"NLSCTL_LOCALE=",
		"NLSCTL_MESSAGE_FORMAT=bundle",
		"NLSCTL_SERVER_PORT=8080",
		"NLSCTL_LOG_LEVEL=info",
		"# LANGUAGE PACKS",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q", want)
		}
	}
}
