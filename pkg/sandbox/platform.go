// Package sandbox is an in-memory stand-in for the remote platform: token,
// model, deployment and job endpoints backed by process-local state. It
// exists for package tests and for local development via `optikit sandbox`.
// Job state transitions are scripted, not scheduled; nothing is persisted.
package sandbox

import (
	"sync"

	"github.com/google/uuid"

	"github.com/optikit/optikit/pkg/tabular"
)

type model struct {
	ID      string
	Name    string
	Type    string
	Content []byte
}

type deployment struct {
	ID      string
	ModelID string
}

type job struct {
	ID           string
	DeploymentID string
	States       []string
	StatusCalls  int
	Failure      string
	Outputs      []tabular.Payload
}

// Solver transforms submitted input tables into output tables. The default
// solver echoes inputs unchanged.
type Solver func(inputs []tabular.Table) []tabular.Table

// Platform holds the scriptable in-memory state.
type Platform struct {
	mu sync.Mutex

	apiKey       string
	spaceUID     string
	tokens       map[string]struct{}
	softwareSpec map[string]string
	hardware     map[string]struct{}
	models       map[string]*model
	deployments  map[string]*deployment
	jobs         map[string]*job

	jobStates []string
	failure   string
	solve     Solver
}

type Option func(*Platform)

// WithAPIKey makes the token endpoint reject any other key.
func WithAPIKey(key string) Option {
	return func(p *Platform) { p.apiKey = key }
}

// WithSpaceUID makes every scoped endpoint reject other spaces.
func WithSpaceUID(uid string) Option {
	return func(p *Platform) { p.spaceUID = uid }
}

// WithJobStates scripts the status sequence every new job moves through,
// one step per status call; the last state repeats.
func WithJobStates(states ...string) Option {
	return func(p *Platform) { p.jobStates = states }
}

// WithFailure sets the vendor failure message reported in a failed state.
func WithFailure(message string) Option {
	return func(p *Platform) { p.failure = message }
}

// WithSolver replaces the echo solver.
func WithSolver(solve Solver) Option {
	return func(p *Platform) { p.solve = solve }
}

// WithSoftwareSpec registers an additional resolvable specification name.
func WithSoftwareSpec(name string) Option {
	return func(p *Platform) { p.softwareSpec[name] = "sw-" + uuid.NewString() }
}

func New(opts ...Option) *Platform {
	p := &Platform{
		tokens:       map[string]struct{}{},
		softwareSpec: map[string]string{"do_22.1": "sw-" + uuid.NewString()},
		hardware:     map[string]struct{}{"XS": {}, "S": {}, "M": {}, "L": {}, "XL": {}},
		models:       map[string]*model{},
		deployments:  map[string]*deployment{},
		jobs:         map[string]*job{},
		jobStates:    []string{"queued", "running", "completed"},
	}
	p.solve = func(inputs []tabular.Table) []tabular.Table { return inputs }
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StatusCalls reports how often a job's status has been observed.
func (p *Platform) StatusCalls(jobID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j, ok := p.jobs[jobID]; ok {
		return j.StatusCalls
	}
	return 0
}

// ModelCount reports how many models are currently registered.
func (p *Platform) ModelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.models)
}

// DeploymentCount reports how many deployments currently exist.
func (p *Platform) DeploymentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deployments)
}
