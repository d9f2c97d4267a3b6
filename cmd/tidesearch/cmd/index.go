package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/index"
	"github.com/ChrisMcGann/tidesearch/pkg/index/sqlite"
)

var (
	// Flags for index command
	peptideCSV  string
	indexOut    string
	decoyMethod string
	customMods  string
	overwrite   bool
)

func init() {
	indexCmd.Flags().StringVarP(&peptideCSV, "peptides", "i", "", "Peptide list CSV: sequence,protein[;protein...][,mods] (required)")
	indexCmd.Flags().StringVarP(&indexOut, "out", "o", "", "Output index database (required)")
	indexCmd.Flags().StringVar(&decoyMethod, "decoys", index.DecoyNone, "Decoy generation: none or peptide-reverse")
	indexCmd.Flags().StringVar(&customMods, "mods", "", "CSV of additional modification names and masses")
	indexCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing index")

	indexCmd.MarkFlagRequired("peptides")
	indexCmd.MarkFlagRequired("out")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build a SQLite peptide index",
	Long: `Build a peptide index from a CSV peptide list. Each line holds a sequence,
its protein accessions separated by semicolons and, optionally, modifications
in mass@position form separated by semicolons.

Examples:
  # Index peptides with reversed decoys
  tidesearch index --peptides peptides.csv --out peptides.db --decoys peptide-reverse`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

// peptideRow is one parsed line of the peptide list.
type peptideRow struct {
	sequence string
	proteins []string
	mods     []core.Modification
}

func runIndex(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	switch decoyMethod {
	case index.DecoyNone, index.DecoyPeptideReverse:
	default:
		return fmt.Errorf("invalid decoy method '%s', must be none or peptide-reverse", decoyMethod)
	}

	modDB := core.DefaultModDatabase()
	if customMods != "" {
		f, err := os.Open(customMods)
		if err != nil {
			return fmt.Errorf("failed to open modification file: %w", err)
		}
		err = modDB.LoadFromCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", customMods, err)
		}
	}

	rows, err := loadPeptideCSV(peptideCSV, modDB)
	if err != nil {
		return err
	}

	if _, err := os.Stat(indexOut); err == nil {
		if !overwrite {
			return fmt.Errorf("output index already exists: %s (use --overwrite)", indexOut)
		}
		if err := os.Remove(indexOut); err != nil {
			return fmt.Errorf("failed to remove existing index: %w", err)
		}
	}

	builder, err := sqlite.NewBuilder(indexOut, decoyMethod)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	decoys, palindromes := 0, 0
	for _, row := range rows {
		p, err := core.NewPeptide(0, row.sequence, row.mods, false, row.proteins)
		if err != nil {
			builder.Abort()
			return err
		}
		if _, err := builder.AddPeptide(p); err != nil {
			builder.Abort()
			return err
		}

		if decoyMethod != index.DecoyPeptideReverse {
			continue
		}
		d := p.Reversed()
		if d.Sequence == p.Sequence {
			palindromes++
			continue
		}
		if _, err := builder.AddPeptide(d); err != nil {
			builder.Abort()
			return err
		}
		decoys++
	}

	if err := builder.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize index: %w", err)
	}

	log.InfoContext(cmd.Context(), "index complete",
		"output", indexOut,
		"input_peptides", len(rows),
		"decoys", decoys,
		"skipped_decoys", palindromes,
	)
	return nil
}

// loadPeptideCSV reads a peptide list. A first line starting with
// "sequence" is treated as a header.
func loadPeptideCSV(path string, modDB *core.ModDatabase) ([]peptideRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var rows []peptideRow
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if lineNum == 1 && strings.HasPrefix(strings.ToLower(line), "sequence") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("line %d: expected 2 or 3 fields (sequence,protein[,mods]), got %d", lineNum, len(parts))
		}

		row := peptideRow{sequence: strings.ToUpper(strings.TrimSpace(parts[0]))}
		for _, acc := range strings.Split(parts[1], ";") {
			if acc = strings.TrimSpace(acc); acc != "" {
				row.proteins = append(row.proteins, acc)
			}
		}
		if row.sequence == "" || len(row.proteins) == 0 {
			return nil, fmt.Errorf("line %d: missing sequence or protein", lineNum)
		}

		if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			row.mods, err = modDB.ParseModString(strings.TrimSpace(parts[2]), row.sequence)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}
