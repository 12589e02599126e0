package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# nlsctl Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: " + envPrefix + "_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	writeSection(&content, cmd, "RESOLUTION", []string{
		"locale", "message-format", "bundle-format", "dir-name-hint", "no-cache-language-resolution", "env-var",
	})
	writeSection(&content, cmd, "LANGUAGE PACKS", []string{
		"cache-root", "language-pack-id", "translations-config",
	})
	writeSection(&content, cmd, "SERVER", []string{"server-host", "server-port", "rate-limit", "file-root"})
	writeSection(&content, cmd, "LOGGING", []string{"log-level"})

	return content.String()
}

func writeSection(content *strings.Builder, cmd *cobra.Command, title string, flags []string) {
	content.WriteString("# " + title + "\n")
	for _, name := range flags {
		f := cmd.Root().PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "# %s\n%s=%s\n", f.Usage, flagToEnvVar(name), f.DefValue)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
