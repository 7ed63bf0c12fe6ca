// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the rule-harvester CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/internal/inference"
	"github.com/pdiddy/rule-harvester/internal/library"
	"github.com/pdiddy/rule-harvester/internal/logging"
	"github.com/pdiddy/rule-harvester/internal/secrets"
	"github.com/pdiddy/rule-harvester/internal/workflow"
	"github.com/pdiddy/rule-harvester/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	appName   = "rule-harvester"
	envPrefix = "RULE_HARVESTER"

	// apiKeyKey is the viper key bound to RULE_HARVESTER_API_KEY.
	apiKeyKey = "api_key"
)

// Loaded by the root command before any subcommand runs.
var (
	appCfg types.Config
	logger = zap.NewNop()
)

// rootCmd is the base command for the rule-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Extract structured rules from policy documents, one paragraph at a time",
	Long: `rule-harvester splits a policy document into paragraphs and asks a language
model to extract one rule (title and description) from each. Rules can be
reviewed, deleted, exported as JSON, and archived in a searchable local
library.

Start an interactive session with 'rule-harvester session policy.txt', or
process a whole file at once with 'rule-harvester extract policy.txt'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		appCfg = cfg

		l, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger = l.With(zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./rule-harvester.yaml or ~/.config/rule-harvester/rule-harvester.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "mirror the log to stderr")
	viper.BindPFlag("log.console", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// A .env in the working directory may carry RULE_HARVESTER_API_KEY.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	configure(viper.GetViper(), cfgFile)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configure sets search paths, environment binding and defaults on v.
func configure(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := stateDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv(apiKeyKey)

	setDefaults(v, types.DefaultConfig(stateDir()))
}

// stateDir is ~/.config/rule-harvester, or "" when the home directory is unknown.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// setDefaults registers every key so that environment variables and
// Unmarshal see them.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("inference.endpoint", d.Inference.Endpoint)
	v.SetDefault("inference.model", d.Inference.Model)
	v.SetDefault("inference.temperature", d.Inference.Temperature)
	v.SetDefault("inference.max_tokens", d.Inference.MaxTokens)
	v.SetDefault("inference.top_p", d.Inference.TopP)
	v.SetDefault("inference.timeout", d.Inference.Timeout)
	v.SetDefault("inference.requests_per_second", d.Inference.RequestsPerSecond)
	v.SetDefault("inference.burst", d.Inference.Burst)
	v.SetDefault("inference.cache_ttl", d.Inference.CacheTTL)
	v.SetDefault("credentials.dir", d.Credentials.Dir)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("library.dir", d.Library.Dir)
	v.SetDefault("library.max_results", d.Library.MaxResults)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
}

// loadConfig resolves the effective configuration from v.
func loadConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.DefaultConfig(stateDir())
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// credentials returns the key resolver: the environment wins over the
// stored key.
func credentials() secrets.Resolver {
	return secrets.Resolver{
		Store:    secrets.NewStore(appCfg.Credentials.Dir, logger),
		Override: viper.GetString(apiKeyKey),
	}
}

// newWorkflow wires the inference stack and the credential resolver.
func newWorkflow(keys secrets.Resolver) *workflow.Workflow {
	ext := inference.New(appCfg.Inference, logger)
	return workflow.New(ext, keys, workflow.WithLogger(logger))
}

func openLibrary() (*library.Store, error) {
	return library.NewStore(appCfg.Library, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
