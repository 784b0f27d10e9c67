package steps

import (
	"context"

	"github.com/shaiso/synapse/internal/domain"
)

// Сообщения о результате deployment.
const (
	DeployReadyMessage   = "✅ Deployment package ready: Dockerfile + FastAPI app + generated React component."
	DeploySkippedMessage = "⚠️ Deployment skipped: tests still failing after max retries. Hand-off to human reviewer."
)

// DeploymentEngine собирает артефакты или передаёт run человеку.
type DeploymentEngine struct{ agent }

// NewDeploymentEngine создаёт DeploymentEngine.
func NewDeploymentEngine() *DeploymentEngine {
	return &DeploymentEngine{agent{id: StepDeploymentEngine, name: "Deployment Engine"}}
}

// Handle заполняет deployment_status и outcome.
func (s *DeploymentEngine) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Preparing deployment artefacts")

	msg := DeployReadyMessage
	outcome := domain.OutcomeDeployed
	if rec.Contains(domain.FieldTestResults, MarkerFail) {
		msg = DeploySkippedMessage
		outcome = domain.OutcomeHandedOff
	}

	rec[domain.FieldDeploymentStatus] = msg
	rec[domain.FieldOutcome] = string(outcome)
	rec.AppendLog(msg)

	return rec, nil
}
