package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/synapse/internal/dashboard"
	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/pipeline"
)

// NewRunsCmd создаёт группу команд для runs на сервере API.
func NewRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage runs on the API server",
	}

	cmd.AddCommand(
		newRunsListCmd(clientFn, outputFn),
		newRunsActiveCmd(clientFn, outputFn),
		newRunsStartCmd(clientFn, outputFn),
		newRunsShowCmd(clientFn, outputFn),
		newRunsSnapshotsCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "STATUS", "OUTCOME", "STEPS", "RETRIES", "CREATED"}

func runRow(r RunResponse) []string {
	return []string{r.ID, r.Status, r.Outcome, strconv.Itoa(r.Steps), strconv.Itoa(r.RetryCount), r.CreatedAt}
}

func newRunsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunsActiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List runs executing on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListActiveRuns()
			if err != nil {
				return err
			}

			headers := []string{"RUN_ID", "STEPS", "NODE", "RETRIES", "STATUS"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.RunID, strconv.Itoa(r.Steps), r.NodeID, strconv.Itoa(r.RetryCount), r.Status}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}
}

func newRunsStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	req := CreateRunRequest{UserStory: pipeline.DefaultStory, UseSamplePayload: true}
	var async bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a run on the server and stream its snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if async {
				run, err := client.EnqueueRun(req)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run queued: %s", run.ID))
				out.Print(runHeaders, [][]string{runRow(*run)}, run)
				return nil
			}

			// Имена узлов только для отображения
			names := map[string]string{}
			if p, err := client.GetPipeline(); err == nil {
				for _, n := range p.Nodes {
					names[n.ID] = n.Name
				}
			}
			renderer := dashboard.NewRenderer(nil, 0)

			run, err := client.StartRun(cmd.Context(), req, func(s SnapshotResponse) error {
				if out.JSONMode() {
					out.JSONLine(s)
					return nil
				}
				out.Text(renderer.Frame(frameFromResponse(s, names[s.NodeID])))
				out.Text("")
				return nil
			})
			if run != nil {
				if out.JSONMode() {
					out.JSONLine(run)
				} else {
					out.Text(renderer.Summary(domain.Record(run.Record), run.Steps, err))
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&req.UserStory, "story", req.UserStory, "User story to orchestrate")
	cmd.Flags().BoolVar(&req.UseSamplePayload, "sample-payload", req.UseSamplePayload, "Attach a sample work item payload")
	cmd.Flags().IntVar(&req.SimulateFailures, "simulate-failures", 0, "Number of initial backend attempts that fail tests")
	cmd.Flags().IntVar(&req.MaxSteps, "max-steps", 0, "Node visit limit (0 uses the server default)")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the run instead of streaming it")

	return cmd
}

func newRunsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "STATUS", "OUTCOME", "STEPS", "RETRIES", "DURATION", "ERROR"},
				[][]string{{
					run.ID, run.Status, run.Outcome,
					strconv.Itoa(run.Steps), strconv.Itoa(run.RetryCount),
					fmt.Sprintf("%dms", run.DurationMS), run.Error,
				}},
				run,
			)
			return nil
		},
	}
}

func newRunsSnapshotsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots RUN_ID",
		Short: "List snapshots of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			snaps, err := client.ListSnapshots(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP", "NODE", "CHANGED", "STATUS"}
			rows := make([][]string, len(snaps))
			for i, s := range snaps {
				rows[i] = []string{strconv.Itoa(s.Step), s.NodeID, strings.Join(s.Changed, ","), s.Status}
			}

			out.Print(headers, rows, snaps)
			return nil
		},
	}
}

func frameFromResponse(s SnapshotResponse, name string) dashboard.Frame {
	if name == "" {
		name = s.NodeID
	}
	return dashboard.Frame{
		Step:    s.Step,
		NodeID:  s.NodeID,
		Name:    name,
		Record:  domain.Record(s.Record),
		Changed: s.Changed,
	}
}
