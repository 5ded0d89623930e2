package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/domain/types"
)

var reportHeader = []string{"Name", "ID", "Date", "Time", "Course", "Status"}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the reconciled attendance report of a course",
		Long: `Report reconciles the course roster with the attendance ledger for one
day: Present rows first, then Absent rows, each in roster order. It reads the
ledger configured under ledger.*, so it is only useful with a persistent store.`,
		RunE: runReport,
	}
	cmd.Flags().String("course", "", "Course id (required)")
	cmd.Flags().String("date", "", "Day in YYYY-MM-DD (default today)")
	cmd.Flags().String("format", "csv", "Output format: csv or json")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	format := mustGetString(cmd, "format")
	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}

	ctx := cmd.Context()
	comps, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	svc, err := newService(cfg, comps)
	if err != nil {
		return err
	}
	rep, err := svc.Report(ctx, mustGetString(cmd, "course"), mustGetString(cmd, "date"))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if path := mustGetString(cmd, "output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return writeReport(w, rep, format)
}

// writeReport renders rep as csv or json.
func writeReport(w io.Writer, rep types.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, row := range rep.Rows {
		if err := cw.Write([]string{row.Name, row.IdentityID, row.Date, row.Time, rep.CourseID, row.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
