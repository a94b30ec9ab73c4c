package sandbox

import (
	"errors"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/optikit/optikit/pkg/contract"
	"github.com/optikit/optikit/pkg/tabular"
)

// App assembles the fiber application serving the platform surface.
func (p *Platform) App() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *contract.Error
			if !errors.As(err, &e) {
				code := contract.ErrorCodeInternalError

				var f *fiber.Error
				if errors.As(err, &f) {
					switch f.Code {
					case fiber.StatusBadRequest:
						code = contract.ErrorCodeBadRequest
					case fiber.StatusNotFound:
						code = contract.ErrorCodeNotFound
					}
				}

				e = contract.NewError(code, err.Error())
			}

			var fn func(format string, args ...any)
			switch e.StatusCode() {
			case fiber.StatusBadRequest:
				fn = logrus.Infof
			case fiber.StatusNotFound:
				fn = logrus.Debugf
			default:
				fn = logrus.Errorf
			}
			fn("Error encountered in %s %s: %s", c.Method(), c.Path(), err)

			return c.Status(e.StatusCode()).JSON(e)
		},
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(logger.New(logger.Config{
		Format: "${status} - ${latency} ${method} ${path}\n",
		Output: logrus.StandardLogger().Writer(),
	}))

	app.Post("/v4/token", p.issueToken)

	scoped := app.Group("/v4", p.requireToken, p.requireSpace)
	scoped.Get("/software_specifications", p.findSoftwareSpec)
	scoped.Post("/models", p.createModel)
	scoped.Put("/models/:id/content", p.uploadModelContent)
	scoped.Delete("/models/:id", p.deleteModel)
	scoped.Post("/deployments", p.createDeployment)
	scoped.Delete("/deployments/:id", p.deleteDeployment)
	scoped.Post("/deployment_jobs", p.createJob)
	scoped.Get("/deployment_jobs/:id", p.getJob)
	scoped.Delete("/deployment_jobs/:id", p.deleteJob)

	return app
}

// Serve starts the platform on an ephemeral local port and returns its base
// URL plus a shutdown func.
func (p *Platform) Serve() (string, func() error, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	app := p.App()
	go func() {
		if err := app.Listener(ln); err != nil {
			logrus.Errorf("sandbox platform stopped: %v", err)
		}
	}()
	return "http://" + ln.Addr().String(), app.Shutdown, nil
}

// Listen runs the platform on addr until the process ends.
func (p *Platform) Listen(addr string) error {
	return p.App().Listen(addr)
}

func (p *Platform) issueToken(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"apikey"`
	}
	if err := c.BodyParser(&req); err != nil {
		return contract.NewError(contract.ErrorCodeBadRequest, err.Error())
	}
	if req.APIKey == "" || (p.apiKey != "" && req.APIKey != p.apiKey) {
		return contract.NewError(contract.ErrorCodeUnauthorized, "invalid api key")
	}

	token := uuid.NewString()
	p.mu.Lock()
	p.tokens[token] = struct{}{}
	p.mu.Unlock()

	return c.JSON(fiber.Map{"access_token": token, "token_type": "Bearer"})
}

func (p *Platform) requireToken(c *fiber.Ctx) error {
	const prefix = "Bearer "
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return contract.NewError(contract.ErrorCodeUnauthorized, "missing bearer token")
	}

	p.mu.Lock()
	_, ok := p.tokens[header[len(prefix):]]
	p.mu.Unlock()
	if !ok {
		return contract.NewError(contract.ErrorCodeUnauthorized, "unknown session token")
	}
	return c.Next()
}

func (p *Platform) requireSpace(c *fiber.Ctx) error {
	space := c.Query("space_id")
	if space == "" {
		return contract.NewError(contract.ErrorCodeBadRequest, "space_id query parameter is required")
	}
	if p.spaceUID != "" && space != p.spaceUID {
		return contract.NewErrorf(contract.ErrorCodeDeployment, "space %s does not exist", space)
	}
	return c.Next()
}

func (p *Platform) findSoftwareSpec(c *fiber.Ctx) error {
	name := c.Query("name")

	p.mu.Lock()
	id, ok := p.softwareSpec[name]
	p.mu.Unlock()

	resources := []fiber.Map{}
	if ok {
		resources = append(resources, fiber.Map{
			"metadata": fiber.Map{"id": id},
			"entity":   fiber.Map{"name": name},
		})
	}
	return c.JSON(fiber.Map{"resources": resources})
}

type createModelRequest struct {
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type" validate:"required"`
	SoftwareSpec struct {
		ID string `json:"id" validate:"required"`
	} `json:"software_spec"`
}

func (p *Platform) createModel(c *fiber.Ctx) error {
	var req createModelRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	m := &model{ID: "model-" + uuid.NewString(), Name: req.Name, Type: req.Type}
	p.mu.Lock()
	p.models[m.ID] = m
	p.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"metadata": fiber.Map{"id": m.ID}})
}

func (p *Platform) uploadModelContent(c *fiber.Ctx) error {
	id := c.Params("id")

	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.models[id]
	if !ok {
		return contract.NewErrorf(contract.ErrorCodeNotFound, "model %s does not exist", id)
	}
	m.Content = append([]byte(nil), c.Body()...)
	return c.SendStatus(fiber.StatusNoContent)
}

func (p *Platform) deleteModel(c *fiber.Ctx) error {
	id := c.Params("id")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.models[id]; !ok {
		return contract.NewErrorf(contract.ErrorCodeNotFound, "model %s does not exist", id)
	}
	delete(p.models, id)
	return c.SendStatus(fiber.StatusNoContent)
}

type createDeploymentRequest struct {
	Name  string `json:"name" validate:"required"`
	Asset struct {
		ID string `json:"id" validate:"required"`
	} `json:"asset"`
	HardwareSpec struct {
		Name     string `json:"name" validate:"required"`
		NumNodes int    `json:"num_nodes" validate:"min=1"`
	} `json:"hardware_spec"`
}

func (p *Platform) createDeployment(c *fiber.Ctx) error {
	var req createDeploymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.models[req.Asset.ID]
	if !ok {
		return contract.NewErrorf(contract.ErrorCodeDeployment, "asset %s does not exist", req.Asset.ID)
	}
	if len(m.Content) == 0 {
		return contract.NewErrorf(contract.ErrorCodeDeployment, "model %s has no content", m.ID)
	}
	if _, ok := p.hardware[req.HardwareSpec.Name]; !ok {
		return contract.NewErrorf(contract.ErrorCodeDeployment, "hardware_spec %s is not available", req.HardwareSpec.Name)
	}

	d := &deployment{ID: "dep-" + uuid.NewString(), ModelID: m.ID}
	p.deployments[d.ID] = d
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"metadata": fiber.Map{"id": d.ID}})
}

func (p *Platform) deleteDeployment(c *fiber.Ctx) error {
	id := c.Params("id")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.deployments[id]; !ok {
		return contract.NewErrorf(contract.ErrorCodeNotFound, "deployment %s does not exist", id)
	}
	delete(p.deployments, id)
	return c.SendStatus(fiber.StatusNoContent)
}

type createJobRequest struct {
	Deployment struct {
		ID string `json:"id" validate:"required"`
	} `json:"deployment"`
	DecisionOptimization struct {
		SolveParameters map[string]any    `json:"solve_parameters"`
		InputData       []tabular.Payload `json:"input_data"`
		OutputData      []struct {
			ID string `json:"id"`
		} `json:"output_data"`
	} `json:"decision_optimization"`
}

func (p *Platform) createJob(c *fiber.Ctx) error {
	var req createJobRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	inputs := make([]tabular.Table, 0, len(req.DecisionOptimization.InputData))
	for _, payload := range req.DecisionOptimization.InputData {
		table, terr := tabular.FromPayload(payload)
		if terr != nil {
			return terr
		}
		inputs = append(inputs, table)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.deployments[req.Deployment.ID]; !ok {
		return contract.NewErrorf(contract.ErrorCodeNotFound, "deployment %s does not exist", req.Deployment.ID)
	}

	outputs, terr := tabular.Payloads(p.solve(inputs))
	if terr != nil {
		return terr
	}

	j := &job{
		ID:           "job-" + uuid.NewString(),
		DeploymentID: req.Deployment.ID,
		States:       p.jobStates,
		Failure:      p.failure,
		Outputs:      outputs,
	}
	p.jobs[j.ID] = j
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"metadata": fiber.Map{"id": j.ID}})
}

func (p *Platform) getJob(c *fiber.Ctx) error {
	id := c.Params("id")

	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[id]
	if !ok {
		return contract.NewErrorf(contract.ErrorCodeNotFound, "job %s does not exist", id)
	}

	step := j.StatusCalls
	if step >= len(j.States) {
		step = len(j.States) - 1
	}
	j.StatusCalls++
	state := j.States[step]

	status := fiber.Map{"state": state}
	if state == "failed" && j.Failure != "" {
		status["failure"] = fiber.Map{"message": j.Failure}
	}

	do := fiber.Map{"status": status}
	if state == "completed" {
		do["output_data"] = j.Outputs
	}

	return c.JSON(fiber.Map{
		"metadata": fiber.Map{"id": j.ID},
		"entity":   fiber.Map{"decision_optimization": do},
	})
}

func (p *Platform) deleteJob(c *fiber.Ctx) error {
	id := c.Params("id")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[id]; !ok {
		return contract.NewErrorf(contract.ErrorCodeNotFound, "job %s does not exist", id)
	}
	delete(p.jobs, id)
	return c.SendStatus(fiber.StatusNoContent)
}

var validate = validator.New()

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return contract.NewError(contract.ErrorCodeBadRequest, err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return contract.NewError(contract.ErrorCodeBadRequest, err.Error())
	}
	return nil
}
