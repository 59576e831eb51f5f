package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"meeting-insights-go/internal/report"
	"meeting-insights-go/internal/types"
)

func NewProcessCmd(deps *Dependencies) *cobra.Command {
	var questions []string
	var exportPath string

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run the pipeline on a local recording and print the insights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := newFormatter(cmd.OutOrStdout())

			a, err := deps.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			src := args[0]
			// The pipeline deletes its input, so it works on a copy.
			path, err := copyToUploads(src, a.Config.UploadDir)
			if err != nil {
				return err
			}

			m, err := a.Store.Create(ctx, filepath.Base(src))
			if err != nil {
				os.Remove(path)
				return fmt.Errorf("create meeting: %w", err)
			}

			out.Info(fmt.Sprintf("Processing %s as meeting %d", filepath.Base(src), m.ID))
			res := a.Pipeline.Run(ctx, types.Job{MeetingID: m.ID, FilePath: path, EnqueuedAt: time.Now().UTC()})
			out.Processed(res)
			if res.Err != nil {
				return res.Err
			}

			m, err = a.Store.Get(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("reload meeting: %w", err)
			}
			out.Meeting(m)

			for _, q := range questions {
				out.Answer(q, a.Answerer.Answer(ctx, m.ID, q, a.Config.SearchTopK))
			}

			if exportPath != "" {
				if err := writeFile(exportPath, func(w io.Writer) error { return report.WriteMeeting(w, m) }); err != nil {
					return err
				}
				out.Success("Workbook saved: " + exportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to answer from the transcript once processing completes (repeatable)")
	cmd.Flags().StringVarP(&exportPath, "export", "o", "", "Write the insights workbook to this path")

	return cmd
}

func copyToUploads(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(dir, uuid.New().String()+filepath.Ext(src))
	if err := writeFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return "", err
	}
	return dst, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// meetingReady loads a meeting and insists it has finished processing.
func meetingReady(ctx context.Context, get func(context.Context, int64) (types.Meeting, error), id int64) (types.Meeting, error) {
	m, err := get(ctx, id)
	if err != nil {
		return types.Meeting{}, fmt.Errorf("meeting %d: %w", id, err)
	}
	if m.Status != types.StatusCompleted {
		return types.Meeting{}, fmt.Errorf("meeting %d is still processing (%s)", id, m.Status)
	}
	return m, nil
}
