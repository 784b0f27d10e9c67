package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/synapse/internal/config"
	"github.com/shaiso/synapse/internal/dashboard"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/pipeline"
)

// NewPipelineCmd создаёт команду, которая показывает граф агентов.
// По умолчанию описывается локальное определение с ceilings из engineCfg,
// с --remote — граф сервера API.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output, engineCfg config.EngineConfig) *cobra.Command {
	var remote bool
	defaults := LocalDefaults(engineCfg)
	file := defaults.PipelineFile

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Show the agent graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			var desc pipeline.Description
			if remote {
				resp, err := clientFn().GetPipeline()
				if err != nil {
					return err
				}
				desc = resp.Description()
			} else {
				p, err := loadPipeline(file, defaults.RetryCeiling, defaults.MaxSteps)
				if err != nil {
					return err
				}
				desc = p.Describe()
			}

			PrintPipeline(out, desc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Describe the pipeline of the API server")
	cmd.Flags().StringVar(&file, "pipeline-file", file, "HCL pipeline definition (built-in if empty)")

	return cmd
}

// PrintPipeline выводит граф: схему, затем таблицу переходов.
func PrintPipeline(out *Output, desc pipeline.Description) {
	if out.JSONMode() {
		out.JSON(desc)
		return
	}

	out.Text(dashboard.NewRenderer(nil, 0).Graph(desc, desc.Entry))
	out.Text(fmt.Sprintf("\nentry: %s   max_steps: %d   retry_ceiling: %d\n",
		desc.Entry, desc.MaxSteps, desc.RetryCeiling))

	headers := []string{"FROM", "TO", "DECISION", "RETRY"}
	rows := make([][]string, len(desc.Transitions))
	for i, t := range desc.Transitions {
		rows[i] = []string{t.From, t.To, string(t.Decision), strconv.FormatBool(t.Retry)}
	}
	out.Table(headers, rows)
}

// Description конвертирует ответ API в pipeline.Description.
func (p PipelineResponse) Description() pipeline.Description {
	desc := pipeline.Description{
		Entry:        p.Entry,
		MaxSteps:     p.MaxSteps,
		RetryCeiling: p.RetryCeiling,
		Nodes:        make([]pipeline.NodeInfo, len(p.Nodes)),
		Transitions:  make([]engine.Transition, len(p.Transitions)),
	}
	for i, n := range p.Nodes {
		desc.Nodes[i] = pipeline.NodeInfo{ID: n.ID, Name: n.Name}
	}
	for i, t := range p.Transitions {
		desc.Transitions[i] = engine.Transition{
			From:     t.From,
			To:       t.To,
			Decision: engine.Decision(t.Decision),
			Retry:    t.Retry,
		}
	}
	return desc
}
