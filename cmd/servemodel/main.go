package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/modelserve/modelserve/pkg/config"
	"github.com/modelserve/modelserve/pkg/config/definition"
	"github.com/modelserve/modelserve/pkg/logger"
)

var (
	flagConfig   string
	flagBackend  string
	flagModel    string
	flagLogLevel string
	flagLogJSON  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "servemodel",
		Short:         "Inspect and validate model serving configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a YAML configuration overlay")
	root.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "torch", "backend variant (torch, tensorrt, autodeploy)")
	root.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "model reference, overriding overlay and environment")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
	root.AddCommand(newValidateCmd(), newDumpCmd(), newDriftCmd(), newEnvCmd())
	return root
}

func commandContext(cmd *cobra.Command) context.Context {
	log := logger.New(&logger.Config{Level: logger.LogLevel(flagLogLevel), JSON: flagLogJSON})
	return logger.ContextWith(cmd.Context(), log)
}

func selectedVariant() (definition.Variant, error) {
	switch flagBackend {
	case "torch", "pytorch":
		return definition.VariantTorch, nil
	case "tensorrt", "trt":
		return definition.VariantEngine, nil
	case "autodeploy":
		return definition.VariantAutoDeploy, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected torch, tensorrt, or autodeploy)", flagBackend)
	}
}

func loaderOptions() []config.LoaderOption {
	var opts []config.LoaderOption
	if flagConfig != "" {
		opts = append(opts, config.WithOverlayFile(flagConfig))
	}
	return opts
}

// exportable is the slice of the aggregate surface the CLI needs.
type exportable interface {
	AsMap() (map[string]any, error)
}

// loadArgs runs the layered load for the selected variant and builds the
// finalized aggregate, returning it together with the loader for source
// inspection.
func loadArgs(ctx context.Context, variant definition.Variant) (exportable, *config.Loader, error) {
	l := config.NewLoader(variant, loaderOptions()...)
	raw, err := l.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if flagModel != "" {
		raw["model"] = flagModel
	}
	var args exportable
	switch variant {
	case definition.VariantEngine:
		args, err = config.NewEngineArgsFromMap(raw)
	case definition.VariantAutoDeploy:
		args, err = config.NewAutoDeployArgsFromMap(raw)
	default:
		args, err = config.NewTorchArgsFromMap(raw)
	}
	if err != nil {
		return nil, nil, err
	}
	return args, l, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load, validate, and finalize the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			variant, err := selectedVariant()
			if err != nil {
				return err
			}
			_, l, err := loadArgs(ctx, variant)
			if err != nil {
				return err
			}
			overridden := 0
			for _, src := range l.Sources() {
				if src != config.SourceDefault {
					overridden++
				}
			}
			logger.FromContext(ctx).Info("configuration valid",
				"backend", string(variant), "overridden_keys", overridden)
			return nil
		},
	}
}

func newDumpCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the finalized configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			variant, err := selectedVariant()
			if err != nil {
				return err
			}
			args, l, err := loadArgs(ctx, variant)
			if err != nil {
				return err
			}
			out, err := args.AsMap()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			if showSources {
				printSources(cmd, l.Sources())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "append per-key value sources")
	return cmd
}

func printSources(cmd *cobra.Command, sources map[string]config.SourceType) {
	keys := make([]string, 0, len(sources))
	for key, src := range sources {
		if src != config.SourceDefault {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	fmt.Fprintln(cmd.OutOrStdout(), "---")
	for _, key := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "# %s: %s\n", key, sources[key])
	}
}

func newDriftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-drift",
		Short: "Verify value-object defaults against the execution engine schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			if err := config.VerifyDefaults(); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("no drift against the execution engine schema")
			return nil
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List recognized environment variables for the selected backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			variant, err := selectedVariant()
			if err != nil {
				return err
			}
			for _, m := range config.GenerateEnvMappings(variant) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s -> %s\n", config.DefaultEnvPrefix, m.EnvVar, m.ConfigPath)
			}
			return nil
		},
	}
}
