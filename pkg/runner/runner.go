// Package runner drives one job end-to-end: assemble the tabular payload,
// submit it against a deployment, poll at a fixed interval until a terminal
// state or the caller's timeout, then fetch the output tables. It keeps no
// state between invocations.
package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optikit/optikit/pkg/api"
	"github.com/optikit/optikit/pkg/contract"
	"github.com/optikit/optikit/pkg/tabular"
)

// JobAPI is the slice of the platform client the runner needs.
type JobAPI interface {
	CreateJob(ctx context.Context, deploymentID string, payload api.JobPayload) (string, *contract.Error)
	GetJobStatus(ctx context.Context, jobID string) (api.JobStatus, *contract.Error)
	GetJobOutput(ctx context.Context, jobID string) ([]tabular.Table, *contract.Error)
}

// Clock abstracts time for the polling loop so tests can drive it without
// real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Outcome tags the result of waiting on a job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Result is the tagged outcome of one wait. Outputs is set only for
// OutcomeCompleted; Failure carries the vendor message for OutcomeFailed.
type Result struct {
	Outcome   Outcome
	JobID     string
	LastState string
	Failure   string
	Outputs   []tabular.Table
}

// Runner submits and observes one job at a time.
type Runner struct {
	api      JobAPI
	clock    Clock
	interval time.Duration
	timeout  time.Duration
}

func New(jobAPI JobAPI, interval, timeout time.Duration) *Runner {
	return &Runner{api: jobAPI, clock: wallClock{}, interval: interval, timeout: timeout}
}

// WithClock replaces the wall clock. Used by tests.
func (r *Runner) WithClock(clock Clock) *Runner {
	r.clock = clock
	return r
}

// Submit builds the job payload from the input tables and creates the job.
// Row ordering is preserved; each table is validated at this boundary.
func (r *Runner) Submit(ctx context.Context, deploymentID string, inputs []tabular.Table, solveParameters map[string]any) (string, *contract.Error) {
	payloads, err := tabular.Payloads(inputs)
	if err != nil {
		return "", err
	}

	jobID, err := r.api.CreateJob(ctx, deploymentID, api.JobPayload{
		SolveParameters: solveParameters,
		InputData:       payloads,
		OutputData:      []api.OutputFilter{{ID: ".*\\.csv"}},
	})
	if err != nil {
		return "", err
	}
	logrus.Infof("Submitted job %s against deployment %s (%d input tables)", jobID, deploymentID, len(inputs))
	return jobID, nil
}

// Wait polls the job at the configured interval until it reaches a terminal
// state or the timeout elapses, and returns the tagged result. Exactly one
// terminal observation ends the loop; at most ceil(timeout/interval)+1
// status calls are made. Context cancellation stops polling without
// cancelling the remote job.
func (r *Runner) Wait(ctx context.Context, jobID string) (*Result, *contract.Error) {
	deadline := r.clock.Now().Add(r.timeout)
	lastState := ""

	for {
		status, err := r.api.GetJobStatus(ctx, jobID)
		if err != nil {
			err.JobID = jobID
			err.LastState = lastState
			return nil, err
		}
		lastState = status.State
		logrus.Debugf("Job %s is %s", jobID, status.State)

		switch {
		case status.State == api.StateCompleted:
			outputs, err := r.api.GetJobOutput(ctx, jobID)
			if err != nil {
				return nil, err
			}
			return &Result{Outcome: OutcomeCompleted, JobID: jobID, LastState: status.State, Outputs: outputs}, nil
		case api.Terminal(status.State):
			return &Result{Outcome: OutcomeFailed, JobID: jobID, LastState: status.State, Failure: status.Failure}, nil
		}

		if !r.clock.Now().Before(deadline) {
			return &Result{Outcome: OutcomeTimedOut, JobID: jobID, LastState: status.State}, nil
		}
		if err := r.clock.Sleep(ctx, r.interval); err != nil {
			return &Result{Outcome: OutcomeTimedOut, JobID: jobID, LastState: status.State}, nil
		}
	}
}

// Execute is Submit followed by Wait, with non-completed outcomes surfaced
// as errors per the workflow's propagation policy.
func (r *Runner) Execute(ctx context.Context, deploymentID string, inputs []tabular.Table, solveParameters map[string]any) ([]tabular.Table, *contract.Error) {
	jobID, err := r.Submit(ctx, deploymentID, inputs, solveParameters)
	if err != nil {
		return nil, err
	}

	result, err := r.Wait(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case OutcomeCompleted:
		return result.Outputs, nil
	case OutcomeFailed:
		message := result.Failure
		if message == "" {
			message = "platform reported state " + result.LastState
		}
		return nil, contract.NewJobError(contract.ErrorCodeJobExecution, jobID, result.LastState, message)
	default:
		return nil, contract.NewJobError(contract.ErrorCodeJobTimeout, jobID, result.LastState,
			"job did not reach a terminal state within "+r.timeout.String())
	}
}
