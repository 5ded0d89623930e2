package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/adapters/roster"
	"github.com/okian/rollcall/internal/domain/model"
)

func newRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect and load the identity roster",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load a YAML roster file into the SQL roster",
		Args:  cobra.ExactArgs(1),
		RunE:  runRosterImport,
	}
	importCmd.Flags().String("driver", "", "SQL driver (default roster.driver)")
	importCmd.Flags().String("dsn", "", "SQL DSN (default roster.dsn)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List identities from the configured roster",
		RunE:  runRosterList,
	}
	listCmd.Flags().String("course", "", "Only identities enrolled in this course")

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}

func runRosterImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	identities, err := roster.ParseYAML(data)
	if err != nil {
		return err
	}

	driver, dsn := mustGetString(cmd, "driver"), mustGetString(cmd, "dsn")
	if driver == "" {
		driver = cfg.Roster.Driver
	}
	if dsn == "" {
		dsn = cfg.Roster.DSN
	}
	if dsn == "" {
		return fmt.Errorf("no roster dsn: set --dsn or roster.dsn")
	}

	db, err := roster.OpenDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Import(cmd.Context(), identities)
	if err != nil {
		return fmt.Errorf("import roster: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d identities\n", n)
	return nil
}

func runRosterList(cmd *cobra.Command, _ []string) error {
	c := &components{}
	defer func() { _ = c.Close() }()
	r, err := buildRoster(cfg.Roster, c)
	if err != nil {
		return err
	}

	var identities []model.Identity
	if course := mustGetString(cmd, "course"); course != "" {
		identities, err = r.Enrolled(cmd.Context(), course)
	} else {
		identities, err = r.All(cmd.Context())
	}
	if err != nil {
		return err
	}
	return writeRoster(cmd.OutOrStdout(), identities)
}

func writeRoster(w io.Writer, identities []model.Identity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOURSES\tIMAGE")
	for _, id := range identities {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id.ID, id.Name, strings.Join(id.Courses, ","), id.ImageRef)
	}
	return tw.Flush()
}
