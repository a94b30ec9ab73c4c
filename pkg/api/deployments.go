package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/optikit/optikit/pkg/config"
	"github.com/optikit/optikit/pkg/contract"
)

// CreateDeployment binds a published model to a hardware specification
// inside the configured space and returns the deployment identifier.
// Repeated calls create redundant deployments; deduplication is the
// caller's concern.
func (c *Client) CreateDeployment(ctx context.Context, modelID, name string, hw config.HardwareSpec) (string, *contract.Error) {
	body, err := json.Marshal(map[string]any{
		"name":          name,
		"asset":         map[string]string{"id": modelID},
		"batch":         map[string]any{},
		"hardware_spec": hw,
	})
	if err != nil {
		return "", contract.NewErrorf(contract.ErrorCodeInternalError, "encoding deployment request: %v", err)
	}

	raw, verr := c.do(ctx, http.MethodPost, c.endpoint("/v4/deployments", nil), body, "application/json")
	if verr != nil {
		return "", verr.as(contract.ErrorCodeDeployment)
	}

	id := gjson.GetBytes(raw, "metadata.id").String()
	if id == "" {
		return "", contract.NewError(contract.ErrorCodeDeployment, "deployment response carried no metadata.id")
	}
	logrus.Infof("Created deployment %s for model %s", id, modelID)
	return id, nil
}

// DeleteDeployment removes a deployment. Jobs already submitted against it
// are owned by the platform and not touched here.
func (c *Client) DeleteDeployment(ctx context.Context, deploymentID string) *contract.Error {
	endpoint := c.endpoint("/v4/deployments/"+deploymentID, nil)
	if _, verr := c.do(ctx, http.MethodDelete, endpoint, nil, ""); verr != nil {
		return verr.as(contract.ErrorCodeDeployment)
	}
	return nil
}
