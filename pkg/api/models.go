package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/optikit/optikit/pkg/config"
	"github.com/optikit/optikit/pkg/contract"
)

// SoftwareSpecID resolves a software specification name (e.g. "do_22.1")
// to its identifier.
func (c *Client) SoftwareSpecID(ctx context.Context, name string) (string, *contract.Error) {
	query := url.Values{}
	query.Set("name", name)

	raw, verr := c.do(ctx, http.MethodGet, c.endpoint("/v4/software_specifications", query), nil, "")
	if verr != nil {
		return "", verr.as(contract.ErrorCodePublish)
	}

	id := gjson.GetBytes(raw, "resources.0.metadata.id").String()
	if id == "" {
		return "", contract.NewErrorf(contract.ErrorCodePublish, "software specification %q not found", name)
	}
	return id, nil
}

// CreateModel registers the model metadata and returns the published-model
// identifier. The artifact content is uploaded separately.
func (c *Client) CreateModel(ctx context.Context, manifest *config.Manifest, softwareSpecID string) (string, *contract.Error) {
	body, err := json.Marshal(map[string]any{
		"name":          manifest.Name,
		"type":          manifest.Type,
		"software_spec": map[string]string{"id": softwareSpecID},
		"tags":          manifest.Tags,
		"description":   manifest.Description,
	})
	if err != nil {
		return "", contract.NewErrorf(contract.ErrorCodeInternalError, "encoding model request: %v", err)
	}

	raw, verr := c.do(ctx, http.MethodPost, c.endpoint("/v4/models", nil), body, "application/json")
	if verr != nil {
		return "", verr.as(contract.ErrorCodePublish)
	}

	id := gjson.GetBytes(raw, "metadata.id").String()
	if id == "" {
		return "", contract.NewError(contract.ErrorCodePublish, "model response carried no metadata.id")
	}
	logrus.Infof("Published model %q as %s", manifest.Name, id)
	return id, nil
}

// UploadModelContent attaches the packaged model archive to a published
// model.
func (c *Client) UploadModelContent(ctx context.Context, modelID string, archive []byte) *contract.Error {
	endpoint := c.endpoint("/v4/models/"+modelID+"/content", nil)
	if _, verr := c.do(ctx, http.MethodPut, endpoint, archive, "application/gzip"); verr != nil {
		return verr.as(contract.ErrorCodePublish)
	}
	return nil
}

// DeleteModel removes a published model. Used when replacing a previous
// publication.
func (c *Client) DeleteModel(ctx context.Context, modelID string) *contract.Error {
	if _, verr := c.do(ctx, http.MethodDelete, c.endpoint("/v4/models/"+modelID, nil), nil, ""); verr != nil {
		return verr.as(contract.ErrorCodePublish)
	}
	return nil
}
