package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medcase-generator/internal/casefile"
	"github.com/medcase-generator/internal/config"
	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/export"
	"github.com/medcase-generator/internal/logging"
	"github.com/medcase-generator/internal/service"
)

// version is set at build time via -ldflags.
var version = "dev"

type app struct {
	file     string
	tier     int
	strict   bool
	logLevel string

	logger  *logrus.Logger
	exports *service.ExportService
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "medcase",
		Short: "Render simulator exports from case bundle files",
		Long: "medcase builds the likelihood ratio matrix, prior probabilities and case summary\n" +
			"of a case bundle (JSON or YAML) exactly as the API server does.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.file, "file", "f", "", "case bundle file (JSON or YAML)")
	pf.IntVar(&a.tier, "tier", 0, "diagnostic tier for matrix columns and priors")
	pf.BoolVar(&a.strict, "strict", false, "exact bucket matching only")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(a.exportCmd(), a.validateCmd(), a.debugCmd(), a.summaryCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.file == "" {
		return fmt.Errorf("--file is required")
	}

	logger, _, err := logging.New(domain.LoggingConfig{Level: a.logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	a.logger = logger

	lite := config.LoadLiteConfig()
	a.exports = service.NewExportService(logger, lite.Matching())
	return nil
}

func (a *app) load() (*domain.Case, error) {
	return casefile.Load(a.file)
}

// matrixOptions leaves unset flags nil so the configured defaults apply.
func (a *app) matrixOptions(cmd *cobra.Command) service.MatrixOptions {
	var opts service.MatrixOptions
	if cmd.Flags().Changed("tier") {
		tier := a.tier
		opts.TierLevel = &tier
	}
	if cmd.Flags().Changed("strict") {
		strict := a.strict
		opts.Strict = &strict
	}
	return opts
}

func (a *app) exportTier(cmd *cobra.Command) int {
	if cmd.Flags().Changed("tier") {
		return a.tier
	}
	return service.DefaultExportTier
}

func (a *app) exportCmd() *cobra.Command {
	var (
		outDir string
		asZip  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the LR matrix (CSV and XLSX), priors and summary to a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.load()
			if err != nil {
				return err
			}
			tier := a.exportTier(cmd)
			opts := a.matrixOptions(cmd)

			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			var artifacts []export.Artifact
			if asZip {
				bundle, err := a.exports.ExportBundle(cmd.Context(), c, tier, opts.Strict)
				if err != nil {
					return err
				}
				artifacts = []export.Artifact{*bundle}
			} else {
				opts.TierLevel = &tier
				result, err := a.exports.ValidatedMatrix(c, opts)
				if err != nil {
					return err
				}
				priors, err := a.exports.Priors(c, tier)
				if err != nil {
					return err
				}
				artifacts, err = export.RenderArtifacts(cmd.Context(), export.Bundle{
					CaseID:           c.ID,
					TierLevel:        tier,
					Table:            result.Table,
					Priors:           priors,
					Details:          c.Details,
					PrimaryDiagnosis: c.PrimaryDiagnosis,
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, artifact := range artifacts {
				path := filepath.Join(outDir, artifact.Name)
				if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
					return fmt.Errorf("writing %s: %w", artifact.Name, err)
				}
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&asZip, "zip", false, "write a single zip bundle instead of separate files")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the LR matrix against the simulator's input requirements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.load()
			if err != nil {
				return err
			}
			result, err := a.exports.ValidateMatrix(c, a.matrixOptions(cmd))
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("LR matrix is invalid")
			}
			return nil
		},
	}
}

func (a *app) debugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Show how each LR record's bucket label was matched",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.load()
			if err != nil {
				return err
			}
			report, err := a.exports.DebugMatching(c, a.matrixOptions(cmd))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the plain-text case summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.load()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(a.exports.ExportSummary(c).Data)
			return err
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
