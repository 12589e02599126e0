// Package main provides the nlsctl CLI application entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"nlsbundle/internal/core"
	httpserver "nlsbundle/internal/http"
	"nlsbundle/internal/resolver"
)

const envPrefix = "NLSCTL"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nlsctl",
	Short: "nlsctl - message bundle resolution",
	Long: `nlsctl resolves localized message bundles for module files, from language packs,
shipped bundles, extraction metadata or per-file message files.`,
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
}

var localizeCmd = &cobra.Command{
	Use:   "localize <file> <index|key> [default-message] [args...]",
	Short: "Print one localized message",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runLocalize,
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <file>",
	Short: "Print the resolved messages of a module as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundle,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("locale", "", "locale to resolve messages for (pseudo enables pseudo-localization)")
	rootCmd.PersistentFlags().String("message-format", string(core.MessageFormatBundle), "message format (file, bundle, both)")
	rootCmd.PersistentFlags().String("bundle-format", "", "bundle format (standalone, languagePack)")
	rootCmd.PersistentFlags().String("cache-root", "", "directory of assembled language pack bundles")
	rootCmd.PersistentFlags().String("language-pack-id", "", "identifier of the installed language pack")
	rootCmd.PersistentFlags().String("translations-config", "", "file mapping bundle identities to language packs")
	rootCmd.PersistentFlags().String("dir-name-hint", "", "directory relative module files are resolved against")
	rootCmd.PersistentFlags().Bool("no-cache-language-resolution", false, "probe the file system on every lookup")
	rootCmd.PersistentFlags().String("env-var", core.DefaultEnvVar, "environment variable holding the structured host configuration")
	rootCmd.PersistentFlags().String("server-host", core.DefaultServerHost, "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", core.DefaultServerPort, "HTTP server port")
	rootCmd.PersistentFlags().Int("rate-limit", 0, "lookups per client and endpoint per minute (0 disables)")
	rootCmd.PersistentFlags().String("file-root", "", "directory HTTP lookups are confined to (default is --dir-name-hint)")
	rootCmd.PersistentFlags().Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(localizeCmd, bundleCmd, serveCmd)
	rootCmd.RunE = runRoot
}

func initConfig(_ *cobra.Command, _ []string) error {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cfg, err := buildConfig(os.Getenv)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	config = cfg
	logger = buildLogger(config.Log.Level)
	return nil
}

// buildConfig layers defaults, the structured host variable and explicitly set flags.
func buildConfig(getenv func(string) string) (*core.Config, error) {
	cfg := core.DefaultConfig()

	cfg.Resolver.EnvVar = viper.GetString("env-var")
	if cfg.Resolver.EnvVar != "" {
		core.ParseEnvConfig(getenv(cfg.Resolver.EnvVar)).Apply(&cfg.NLS)
	}

	patch, err := flagPatch()
	if err != nil {
		return nil, err
	}
	patch.Apply(&cfg.NLS)

	configureServer(cfg)
	return cfg, nil
}

func flagPatch() (core.Patch, error) {
	var patch core.Patch

	if viper.IsSet("locale") {
		patch.Locale = core.Ptr(viper.GetString("locale"))
	}
	if viper.IsSet("message-format") {
		format, err := core.ParseMessageFormat(viper.GetString("message-format"))
		if err != nil {
			return patch, err
		}
		patch.MessageFormat = &format
	}
	if viper.IsSet("bundle-format") && viper.GetString("bundle-format") != "" {
		format, err := core.ParseBundleFormat(viper.GetString("bundle-format"))
		if err != nil {
			return patch, err
		}
		patch.BundleFormat = &format
		if format == core.BundleFormatLanguagePack {
			patch.LanguagePackSupport = core.Ptr(true)
		}
	}
	if viper.IsSet("no-cache-language-resolution") {
		patch.CacheLanguageResolution = core.Ptr(!viper.GetBool("no-cache-language-resolution"))
	}

	stringFlags := map[string]**string{
		"cache-root":          &patch.CacheRoot,
		"language-pack-id":    &patch.LanguagePackID,
		"translations-config": &patch.TranslationsConfigFile,
		"dir-name-hint":       &patch.DirNameHint,
	}
	for flag, field := range stringFlags {
		if viper.IsSet(flag) {
			*field = core.Ptr(viper.GetString(flag))
		}
	}

	return patch, nil
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.RateLimitPerMinute = viper.GetInt("rate-limit")
	cfg.Server.FileRoot = viper.GetString("file-root")
	if cfg.Server.FileRoot == "" {
		cfg.Server.FileRoot = cfg.NLS.DirNameHint
	}
	cfg.Log.Level = viper.GetString("log-level")
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func newResolver(registry prometheus.Registerer) *resolver.Resolver {
	return resolver.New(config, afero.NewOsFs(), logger.Named("resolver"), resolver.NewMetrics(registry))
}

func runRoot(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	return cmd.Help()
}

func runLocalize(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	file, key := args[0], resolver.ParseKey(args[1])
	var message string
	if len(args) > 2 {
		message = args[2]
	}
	formatArgs := make([]any, 0, len(args))
	for _, arg := range args[min(len(args), 3):] {
		formatArgs = append(formatArgs, arg)
	}

	localize, err := newResolver(nil).LoadMessageBundle(file)
	if err != nil {
		return fmt.Errorf("load message bundle: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), localize(key, message, formatArgs...))
	return nil
}

func runBundle(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	module, err := newResolver(nil).ResolveModule(args[0])
	if err != nil {
		return fmt.Errorf("resolve module: %w", err)
	}
	if module.Fallback != "" {
		return errors.New(module.Fallback)
	}

	out, err := json.MarshalIndent(struct {
		Module   string   `json:"module"`
		Messages []string `json:"messages"`
	}{Module: module.Name, Messages: module.Messages}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode module: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger.Info("Starting nlsctl",
		zap.String("locale", config.NLS.Locale),
		zap.String("language", config.NLS.Language),
		zap.String("message_format", string(config.NLS.MessageFormat)),
		zap.Bool("language_pack_support", config.NLS.LanguagePackSupport))

	server := httpserver.NewServer(&config.Server, newResolver(registry), registry, logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("nlsctl started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("nlsctl stopped with error", zap.Error(err))
		return err
	}

	logger.Info("nlsctl stopped gracefully")
	return nil
}
