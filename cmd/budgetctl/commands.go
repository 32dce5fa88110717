package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/config"
	"budgetpulse/internal/exporter"
	"budgetpulse/internal/infrastructure"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/validation"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

var errInvalidDataset = errors.New("dataset is invalid")

type validationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type standardizeResult struct {
	Dataset   budget.RawDataset `json:"dataset"`
	Backfills []budget.Backfill `json:"backfills"`
}

type analysisResult struct {
	JobID        string                 `json:"job_id"`
	ReportPath   string                 `json:"report_path"`
	WorkbookPath string                 `json:"workbook_path,omitempty"`
	Summary      *operations.JobSummary `json:"summary"`
	Projection   budget.Projection      `json:"projection"`
	Risk         budget.RiskAssessment  `json:"risk"`
	Slabs        []budget.TaxSlab       `json:"tax_slabs"`
}

func analyzeCmd() *cobra.Command {
	var (
		outDir      string
		standardize bool
		noCharts    bool
		noWorkbook  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <dataset.json>",
		Short: "Run the full pipeline and write the PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			jobs := operations.ConfigFrom(cfg.Jobs)
			if cmd.Flags().Changed("standardize") {
				jobs.StandardizeOnInvalid = standardize
			}
			if noCharts {
				jobs.Visualize = false
			}
			if noWorkbook {
				jobs.ExportWorkbook = false
			}

			files := validation.NewFileValidator(cliLogger(cmd), cfg.Server.MaxUploadBytes)
			raw, err := readDataset(files, args[0])
			if err != nil {
				return err
			}
			if missing := raw.MissingSections(); len(missing) > 0 {
				return fmt.Errorf("missing required key in JSON: %s", missing[0])
			}

			workspace, err := filepath.Abs(outDir)
			if err != nil {
				return fmt.Errorf("failed to resolve output directory: %w", err)
			}
			if err := files.ValidateOutputDirectory(workspace); err != nil {
				return err
			}

			logger := cliLogger(cmd)
			registry, err := operations.NewPipelineRegistry(logger, &operations.StageOptions{Config: jobs})
			if err != nil {
				return err
			}
			manager := operations.NewManager(registry, nil, nil, logger)

			state := operations.NewPipelineState(uuid.NewString(), workspace, raw)
			if err := manager.Execute(cmd.Context(), state); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), analysisResult{
				JobID:        state.JobID,
				ReportPath:   state.ReportPath,
				WorkbookPath: state.WorkbookPath,
				Summary:      state.Summary(),
				Projection:   state.Projection,
				Risk:         state.Risk,
				Slabs:        state.Slabs,
			})
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "budgetpulse-report", "directory for the report, workbook and charts")
	cmd.Flags().BoolVar(&standardize, "standardize", false, "backfill invalid values instead of failing (overrides config)")
	cmd.Flags().BoolVar(&noCharts, "no-charts", false, "skip chart rendering")
	cmd.Flags().BoolVar(&noWorkbook, "no-workbook", false, "skip the XLSX workbook")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dataset.json>",
		Short: "Check a dataset against the budget schema",
		Long:  "Prints the first schema violation found. Exits non-zero when the dataset is invalid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loadDataset(cmd, args[0])
			if err != nil {
				return err
			}

			result := validationResult{Valid: true}
			if err := budget.Validate(raw); err != nil {
				result = validationResult{Error: err.Error()}
			}

			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Valid {
				return errInvalidDataset
			}
			return nil
		},
	}
}

func standardizeCmd() *cobra.Command {
	var withReport bool

	cmd := &cobra.Command{
		Use:   "standardize <dataset.json>",
		Short: "Backfill missing amounts and rates with section means",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loadDataset(cmd, args[0])
			if err != nil {
				return err
			}

			out, filled := budget.StandardizeWithReport(raw)
			if len(out) == 0 {
				cliLogger(cmd).Warn("dataset missing required sections, standardized to empty",
					slog.Any("missing", raw.MissingSections()))
			}

			if !withReport {
				return printJSON(cmd.OutOrStdout(), out)
			}
			if filled == nil {
				filled = []budget.Backfill{}
			}
			return printJSON(cmd.OutOrStdout(), standardizeResult{Dataset: out, Backfills: filled})
		},
	}

	cmd.Flags().BoolVar(&withReport, "report", false, "also list every backfilled value")
	return cmd
}

func projectCmd() *cobra.Command {
	var (
		format string
		bom    bool
	)

	cmd := &cobra.Command{
		Use:   "project <dataset.json>",
		Short: "Project next year's line items and indicators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != formatJSON && format != formatCSV {
				return fmt.Errorf("unsupported format %q (want %s or %s)", format, formatJSON, formatCSV)
			}

			raw, err := loadDataset(cmd, args[0])
			if err != nil {
				return err
			}

			projection, notes := budget.ProjectWithNotes(raw)
			logger := cliLogger(cmd)
			for _, note := range notes {
				logger.Warn("indicator not projected", slog.String("reason", note.Error()))
			}

			if format == formatCSV {
				return exporter.NewCSVWriter(cmd.OutOrStdout(), bom).WriteProjection(projection)
			}
			return printJSON(cmd.OutOrStdout(), projection)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format (json, csv)")
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger writes JSON logs to stderr: errors only unless --verbose
func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelError
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return infrastructure.WithComponent(infrastructure.NewLoggerWithWriter(cmd.ErrOrStderr(), level), "budgetctl")
}

// loadDataset reads a dataset with the upload size limit from config
func loadDataset(cmd *cobra.Command, path string) (budget.RawDataset, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return readDataset(validation.NewFileValidator(cliLogger(cmd), cfg.Server.MaxUploadBytes), path)
}

func readDataset(files *validation.FileValidator, path string) (budget.RawDataset, error) {
	data, err := files.ReadDataset(path)
	if err != nil {
		return nil, err
	}
	raw, err := budget.ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
