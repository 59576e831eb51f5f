package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func NewAskCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <meeting-id> <question>",
		Short: "Answer a question from a processed meeting's transcript",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("meeting id must be an integer: %q", args[0])
			}
			question := strings.Join(args[1:], " ")

			ctx := cmd.Context()
			a, err := deps.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := meetingReady(ctx, a.Store.Get, id)
			if err != nil {
				return err
			}
			newFormatter(cmd.OutOrStdout()).Answer(question, a.Answerer.Answer(ctx, m.ID, question, a.Config.SearchTopK))
			return nil
		},
	}
}
