package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/optikit/optikit/pkg/contract"
	"github.com/optikit/optikit/pkg/tabular"
)

// Job lifecycle states as reported by the platform. Transitions are owned
// entirely by the platform; this client only observes them.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCanceled  = "canceled"
)

// Terminal reports whether a state ends the polling loop.
func Terminal(state string) bool {
	switch state {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// JobPayload is the execution request submitted against a deployment.
type JobPayload struct {
	SolveParameters map[string]any    `json:"solve_parameters,omitempty"`
	InputData       []tabular.Payload `json:"input_data"`
	OutputData      []OutputFilter    `json:"output_data"`
}

// OutputFilter selects which output collections the platform returns; the
// id is a vendor-side pattern.
type OutputFilter struct {
	ID string `json:"id"`
}

// JobStatus is one observation of a job.
type JobStatus struct {
	State   string
	Failure string
}

// CreateJob submits one execution request and returns the job identifier.
// This leg is deliberately not retried at the transport level: replaying a
// create on a transient failure could submit the same job twice.
func (c *Client) CreateJob(ctx context.Context, deploymentID string, payload JobPayload) (string, *contract.Error) {
	body, err := json.Marshal(map[string]any{
		"deployment":            map[string]string{"id": deploymentID},
		"decision_optimization": payload,
	})
	if err != nil {
		return "", contract.NewErrorf(contract.ErrorCodeInternalError, "encoding job request: %v", err)
	}

	raw, verr := c.doOnce(ctx, http.MethodPost, c.endpoint("/v4/deployment_jobs", nil), body)
	if verr != nil {
		return "", verr.as(contract.ErrorCodeJobExecution)
	}

	id := gjson.GetBytes(raw, "metadata.id").String()
	if id == "" {
		return "", contract.NewError(contract.ErrorCodeJobExecution, "job response carried no metadata.id")
	}
	return id, nil
}

// GetJobStatus fetches the current state of a job, with the vendor failure
// message when one is reported.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (JobStatus, *contract.Error) {
	raw, verr := c.do(ctx, http.MethodGet, c.endpoint("/v4/deployment_jobs/"+jobID, nil), nil, "")
	if verr != nil {
		return JobStatus{}, verr.as(contract.ErrorCodeJobExecution)
	}

	status := gjson.GetBytes(raw, "entity.decision_optimization.status")
	return JobStatus{
		State:   status.Get("state").String(),
		Failure: status.Get("failure.message").String(),
	}, nil
}

// GetJobOutput fetches the output tables of a completed job, in the same
// tabular shape inputs were submitted in.
func (c *Client) GetJobOutput(ctx context.Context, jobID string) ([]tabular.Table, *contract.Error) {
	raw, verr := c.do(ctx, http.MethodGet, c.endpoint("/v4/deployment_jobs/"+jobID, nil), nil, "")
	if verr != nil {
		return nil, verr.as(contract.ErrorCodeJobExecution)
	}

	var details struct {
		Entity struct {
			DecisionOptimization struct {
				OutputData []tabular.Payload `json:"output_data"`
			} `json:"decision_optimization"`
		} `json:"entity"`
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, contract.NewJobError(contract.ErrorCodeJobExecution, jobID, StateCompleted,
			"malformed job details: "+err.Error())
	}

	outputs := make([]tabular.Table, 0, len(details.Entity.DecisionOptimization.OutputData))
	for _, payload := range details.Entity.DecisionOptimization.OutputData {
		table, terr := tabular.FromPayload(payload)
		if terr != nil {
			return nil, contract.NewJobError(contract.ErrorCodeJobExecution, jobID, StateCompleted, terr.Message)
		}
		outputs = append(outputs, table)
	}
	return outputs, nil
}

// DeleteJob removes a finished job record from the platform.
func (c *Client) DeleteJob(ctx context.Context, jobID string) *contract.Error {
	endpoint := c.endpoint("/v4/deployment_jobs/"+jobID, nil)
	if _, verr := c.do(ctx, http.MethodDelete, endpoint, nil, ""); verr != nil {
		return verr.as(contract.ErrorCodeJobExecution)
	}
	return nil
}
