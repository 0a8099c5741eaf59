package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"property_appraisal/pkg/core/config"
	"property_appraisal/pkg/core/method"
	"property_appraisal/pkg/core/report"
	"property_appraisal/pkg/core/store"
	"property_appraisal/pkg/core/survey"
	"property_appraisal/pkg/core/utils"
	"property_appraisal/pkg/core/worksheet"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:          "appraise",
		Short:        "Property appraisal worksheets from market surveys",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			var err error
			cfg, err = config.Load(configPath)
			return err
		},
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Build a valuation worksheet and print its report",
		Long: `Loads the subject property and comparable surveys from a dataset file
(JSON or HJSON) or from Postgres, recomputes every derived cell of the chosen
method and prints the grid as Markdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppraisal(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect [report.html]",
		Short: "Print the final lines of a rendered HTML report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectReport(args[0], cmd.OutOrStdout())
		},
	}

	configPath string
	cfg        config.Config
	opts       runOptions
)

type runOptions struct {
	Method      string
	Surveys     string
	Property    string
	AppraisalID string
	UseDB       bool
	HTMLPath    string
	JSON        bool
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default $APPRAISAL_CONFIG or "+config.DefaultPath+")")

	runCmd.Flags().StringVarP(&opts.Method, "method", "m", string(method.KindSaleGrid), "valuation method: grid, direct or wqs")
	runCmd.Flags().StringVarP(&opts.Surveys, "surveys", "s", "", "survey dataset file")
	runCmd.Flags().StringVarP(&opts.Property, "property", "p", "", "subject property file, overrides the dataset's property")
	runCmd.Flags().BoolVar(&opts.UseDB, "db", false, "load the dataset from Postgres")
	runCmd.Flags().StringVar(&opts.AppraisalID, "appraisal", "", "appraisal id to load with --db")
	runCmd.Flags().StringVar(&opts.HTMLPath, "html", "", "also write the report as HTML to this file")
	runCmd.Flags().BoolVar(&opts.JSON, "json", false, "print the result and checks as JSON instead of Markdown")

	rootCmd.AddCommand(runCmd, inspectCmd)
}

func runAppraisal(ctx context.Context, cfg config.Config, o runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kind, err := method.ParseKind(o.Method)
	if err != nil {
		return err
	}

	dataset, err := loadDataset(ctx, cfg, o)
	if err != nil {
		return err
	}
	if o.Property != "" {
		p, err := loadProperty(o.Property)
		if err != nil {
			return err
		}
		dataset.Property = p
	}

	wsOpts := []worksheet.Option{}
	if cfg.StrictReads {
		wsOpts = append(wsOpts, worksheet.WithStrictReads())
	}
	ws, err := worksheet.New(kind, nil, cfg.Settings(kind), wsOpts...)
	if err != nil {
		return err
	}
	defer ws.Close()

	pass, err := ws.Load(dataset.Property, dataset.Surveys, qualitativeRows(cfg, dataset))
	if err != nil {
		return err
	}
	for _, f := range pass.Failures {
		log.Printf("[appraise] rule %s failed: %v", f.Target, f.Err)
	}

	md := report.Markdown(ws)
	if o.HTMLPath != "" {
		html, err := report.RenderHTML(md)
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.HTMLPath, []byte(html), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", o.HTMLPath, err)
		}
	}

	if o.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ID     string                 `json:"id"`
			Result worksheet.Result       `json:"result"`
			Checks *worksheet.CheckReport `json:"checks"`
		}{ws.ID.String(), ws.Result(), ws.Check(0)})
	}
	_, err = io.WriteString(out, md)
	return err
}

func loadDataset(ctx context.Context, cfg config.Config, o runOptions) (*survey.Dataset, error) {
	if !o.UseDB {
		if o.Surveys == "" {
			return nil, fmt.Errorf("--surveys is required unless --db is set")
		}
		return survey.Load(o.Surveys)
	}
	if o.AppraisalID == "" {
		return nil, fmt.Errorf("--appraisal is required with --db")
	}
	if err := store.InitDB(ctx, cfg.Database); err != nil {
		return nil, err
	}
	defer store.Close()
	return store.NewSurveyRepo(nil).Load(ctx, o.AppraisalID)
}

func loadProperty(path string) (survey.Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return survey.Property{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var p survey.Property
	if _, err := utils.DecodeLenient(string(data), &p); err != nil {
		return survey.Property{}, fmt.Errorf("failed to decode property %s: %w", path, err)
	}
	d := survey.Dataset{Property: p}
	if err := d.Validate(); err != nil {
		return survey.Property{}, err
	}
	return p, nil
}

// qualitativeRows prefers the dataset's factor list and takes labels from the
// settings file; without a list the configured rows are used.
func qualitativeRows(cfg config.Config, d *survey.Dataset) []method.QualitativeRow {
	configured := cfg.Rows()
	if len(d.QualitativeFactors) == 0 {
		return configured
	}
	labels := make(map[survey.Code]string, len(configured))
	for _, r := range configured {
		labels[r.Code] = r.Label
	}
	rows := method.RowsFromCodes(d.QualitativeFactors)
	for i := range rows {
		if l, ok := labels[rows[i].Code]; ok {
			rows[i].Label = l
		}
	}
	return rows
}

func inspectReport(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := report.ReadResult(f)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Final value:               %s\n", report.FormatValue(res.FinalValue))
	fmt.Fprintf(&b, "Rounded final value:       %s\n", report.FormatValue(res.RoundedFinalValue))
	fmt.Fprintf(&b, "Appraisal price:           %s\n", report.FormatValue(res.AppraisalPrice))
	fmt.Fprintf(&b, "Appraisal price (rounded): %s\n", report.FormatValue(res.AppraisalPriceRounded))
	_, err = io.WriteString(out, b.String())
	return err
}
