package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/report"
)

func NewExportCmd(deps *Dependencies) *cobra.Command {
	var outPath string
	var overview bool

	cmd := &cobra.Command{
		Use:   "export [meeting-id]",
		Short: "Write a meeting's insights, or the overview of all meetings, to an xlsx workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if overview == (len(args) == 1) {
				return errors.New("give either a meeting id or --overview")
			}

			ctx := cmd.Context()
			a, err := deps.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var fill func(io.Writer) error
			if overview {
				meetings, err := a.Store.List(ctx, 0, 0)
				if err != nil {
					return fmt.Errorf("list meetings: %w", err)
				}
				ov := aggregator.Aggregate(meetings)
				cards := actionable.Generate(ov)
				fill = func(w io.Writer) error { return report.WriteOverview(w, ov, cards) }
				if outPath == "" {
					outPath = "meetings-overview.xlsx"
				}
			} else {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("meeting id must be an integer: %q", args[0])
				}
				m, err := a.Store.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("meeting %d: %w", id, err)
				}
				fill = func(w io.Writer) error { return report.WriteMeeting(w, m) }
				if outPath == "" {
					outPath = fmt.Sprintf("meeting-%d.xlsx", id)
				}
			}

			if err := writeFile(outPath, fill); err != nil {
				return err
			}
			newFormatter(cmd.OutOrStdout()).Success("Workbook saved: " + outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (default meeting-<id>.xlsx or meetings-overview.xlsx)")
	cmd.Flags().BoolVar(&overview, "overview", false, "Export the cross-meeting overview instead of a single meeting")

	return cmd
}
