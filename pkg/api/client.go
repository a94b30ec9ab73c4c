// Package api is the authenticated client for the platform's v4 REST
// surface: model publication, deployments and deployment jobs. It owns the
// HTTP plumbing (token exchange, bounded transient retries, vendor error
// pass-through); the workflow around it lives in pkg/runner.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/optikit/optikit/pkg/config"
	"github.com/optikit/optikit/pkg/contract"
)

// Client is one authenticated handle on the platform, scoped to a single
// deployment space. It is read-only after construction and safe to share
// for the lifetime of a run.
type Client struct {
	baseURL string
	spaceID string
	token   string

	// retry transport for idempotent request legs; job creation goes
	// through plain so a transient failure can never submit twice.
	retry *retryablehttp.Client
	plain *http.Client
}

// NewClient exchanges the API key for a session token and returns the
// handle. The exchange is the first network call of any workflow; every
// configuration problem has already been rejected by config.Load.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, *contract.Error) {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 4
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 4 * time.Second
	retry.Logger = nil

	c := &Client{
		baseURL: cfg.URL,
		spaceID: cfg.SpaceUID,
		retry:   retry,
		plain:   &http.Client{Timeout: 30 * time.Second},
	}

	if err := c.authenticate(ctx, cfg.APIKey); err != nil {
		return nil, err
	}
	logrus.Debugf("Authenticated against %s (space %s)", c.baseURL, c.spaceID)
	return c, nil
}

func (c *Client) authenticate(ctx context.Context, apiKey string) *contract.Error {
	body, err := json.Marshal(map[string]string{"apikey": apiKey})
	if err != nil {
		return contract.NewErrorf(contract.ErrorCodeInternalError, "encoding token request: %v", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v4/token", body)
	if err != nil {
		return contract.NewErrorf(contract.ErrorCodeInternalError, "building token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.retry.Do(req)
	if err != nil {
		return contract.NewErrorf(contract.ErrorCodeUnauthorized, "token endpoint unreachable: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return contract.NewErrorf(contract.ErrorCodeUnauthorized, "reading token response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return contract.NewErrorf(contract.ErrorCodeUnauthorized,
			"token exchange rejected: %s", vendorMessage(resp.StatusCode, raw))
	}

	token := gjson.GetBytes(raw, "access_token").String()
	if token == "" {
		return contract.NewError(contract.ErrorCodeUnauthorized, "token response carried no access_token")
	}
	c.token = token
	return nil
}

// endpoint builds an absolute URL with the space_id scope attached.
func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("space_id", c.spaceID)
	return c.baseURL + path + "?" + query.Encode()
}

// do performs one request on the retrying transport and returns the
// response body, or the vendor error message on a non-2xx status.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, contentType string) ([]byte, *vendorError) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &vendorError{message: err.Error()}
	}
	c.decorate(req.Header, contentType)

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, &vendorError{message: err.Error()}
	}
	return readResponse(resp)
}

// doOnce is do without retries, for requests that must not be replayed.
func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte) ([]byte, *vendorError) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &vendorError{message: err.Error()}
	}
	c.decorate(req.Header, "application/json")

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, &vendorError{message: err.Error()}
	}
	return readResponse(resp)
}

func (c *Client) decorate(h http.Header, contentType string) {
	h.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
}

func readResponse(resp *http.Response) ([]byte, *vendorError) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &vendorError{message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &vendorError{status: resp.StatusCode, message: vendorMessage(resp.StatusCode, raw)}
	}
	return raw, nil
}

// vendorError is a platform-reported failure before it is classified into
// the stage it aborted.
type vendorError struct {
	status  int
	message string
}

// as classifies the failure under the given stage code, keeping the vendor
// message verbatim.
func (v *vendorError) as(code contract.ErrorCode) *contract.Error {
	if v.status == http.StatusUnauthorized {
		code = contract.ErrorCodeUnauthorized
	}
	return contract.NewError(code, v.message)
}

func vendorMessage(status int, raw []byte) string {
	if msg := gjson.GetBytes(raw, "message").String(); msg != "" {
		return msg
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return fmt.Sprintf("platform responded with status %d", status)
}
