// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tidesearch/pkg/logging"
)

var (
	verbosity string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "tidesearch",
	Short: "tidesearch - peptide-spectrum search engine",
	Long: `tidesearch matches tandem mass spectra against a peptide index.

Candidate peptides are selected by precursor mass and scored with XCorr or,
optionally, with exact p-values. Supported features:
- MS2, MGF and spectrum records input, optionally gzip or zstd compressed
- Mass, m/z and ppm precursor windows with isotope error correction
- Target/decoy output, concatenated or separate
- Peptide-centric reporting and cascade search over several indexes`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexCmd)

	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

// newLogger builds the logger selected by the persistent flags.
func newLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(verbosity)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(logFormat) {
	case "text":
		return logging.NewText(os.Stderr, level), nil
	case "json":
		return logging.NewJSON(os.Stderr, level), nil
	default:
		return nil, fmt.Errorf("invalid log format '%s', must be text or json", logFormat)
	}
}
