package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/spf13/cobra"
)

func rootCmd(getenv func(string) string) *cobra.Command {
	opts := &globalOptions{getenv: getenv}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Synapse.IA procurement-document orchestrator",
		Long: `Synapse routes each message to one of the stage agents of the
procurement pipeline (PCA, DFD, ETP, TR, Contrato, Fiscalização, Checklist),
decodes the agent's structured reply and proposes the next stage.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&opts.pipeline, "pipeline", "", "Built-in pipeline (default, legacy)")
	flags.StringVar(&opts.promptFile, "prompts", "", "YAML file of stage prompts")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(
		chatCmd(opts),
		serveCmd(opts),
		stagesCmd(opts),
		decodeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// =============================================================================
// stages
// =============================================================================

func stagesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the stages of the configured pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pipeline: %s\n", registry.Name)
			for _, def := range registry.Definitions() {
				fmt.Fprintf(out, "%2d. %-13s %s\n", def.Order+1, def.Key, def.Title)
			}
			return nil
		},
	}
}

// =============================================================================
// decode
// =============================================================================

func decodeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a raw agent reply read from stdin",
		Long: `Runs the resilient decoder over a raw model reply (fenced or not,
with or without surrounding prose) and prints the record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			rec := decoder.Decode(string(raw))
			return writeRecord(cmd.OutOrStdout(), rec, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, markdown)")
	return cmd
}

func writeRecord(w io.Writer, rec decoder.Record, format string) error {
	switch strings.ToLower(format) {
	case "markdown", "md":
		_, err := fmt.Fprintln(w, decoder.Render(rec))
		return err
	case "json":
		out := map[string]any{
			"strategy": rec.Strategy,
			"degraded": rec.Degraded,
			"record":   decoder.ToNative(rec.Mapping()),
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown format '%s'. Must be one of: json, markdown", format)
	}
}
