// Package config loads the two local configuration documents the toolkit
// depends on: settings.json (deployment space plus workflow state) and
// auth.json (the platform API key). Both are required before any network
// call is made; every failure here is a CONFIGURATION_ERROR.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/optikit/optikit/pkg/contract"
)

const (
	settingsFile = "settings.json"
	authFile     = "auth.json"

	defaultURL          = "https://eu-de.ml.cloud.ibm.com"
	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// Settings mirrors settings.json. DeploymentID and ModelID are written back
// by the deploy stage so the execute stage can find them.
type Settings struct {
	SpaceUID     string   `json:"space_uid" validate:"required"`
	URL          string   `json:"url,omitempty"`
	ModelID      string   `json:"model_id,omitempty"`
	DeploymentID string   `json:"deployment_id,omitempty"`
	PollInterval Duration `json:"poll_interval,omitempty"`
	PollTimeout  Duration `json:"poll_timeout,omitempty"`
}

type auth struct {
	APIKey string `json:"api_key" validate:"required"`
}

// Config is the merged, validated configuration. It is constructed once at
// process start and passed by reference into each stage; there is no
// ambient credential state.
type Config struct {
	Settings
	APIKey string

	dir string
}

// Load reads settings.json and auth.json from dir and applies defaults.
func Load(dir string) (*Config, *contract.Error) {
	validate := validator.New()

	var settings Settings
	if err := loadJSON(filepath.Join(dir, settingsFile), &settings); err != nil {
		return nil, err
	}
	if err := validate.Struct(settings); err != nil {
		return nil, contract.NewErrorf(contract.ErrorCodeConfiguration,
			"%s is missing required key %q", settingsFile, "space_uid")
	}

	var a auth
	if err := loadJSON(filepath.Join(dir, authFile), &a); err != nil {
		return nil, err
	}
	if err := validate.Struct(a); err != nil {
		return nil, contract.NewErrorf(contract.ErrorCodeConfiguration,
			"%s is missing required key %q", authFile, "api_key")
	}

	if settings.URL == "" {
		settings.URL = defaultURL
	}
	if settings.PollInterval.Duration == 0 {
		settings.PollInterval.Duration = defaultPollInterval
	}
	if settings.PollTimeout.Duration == 0 {
		settings.PollTimeout.Duration = defaultPollTimeout
	}

	return &Config{Settings: settings, APIKey: a.APIKey, dir: dir}, nil
}

// StoreIDs persists the published model and deployment identifiers back
// into settings.json, so a later `run` picks them up.
func (c *Config) StoreIDs(modelID, deploymentID string) *contract.Error {
	c.ModelID = modelID
	c.DeploymentID = deploymentID

	raw, err := json.MarshalIndent(c.Settings, "", "  ")
	if err != nil {
		return contract.NewErrorf(contract.ErrorCodeConfiguration, "encoding %s: %v", settingsFile, err)
	}
	raw = append(raw, '\n')
	if err := os.WriteFile(filepath.Join(c.dir, settingsFile), raw, 0o600); err != nil {
		return contract.NewErrorf(contract.ErrorCodeConfiguration, "writing %s: %v", settingsFile, err)
	}
	return nil
}

func loadJSON(path string, out any) *contract.Error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return contract.NewErrorf(contract.ErrorCodeConfiguration,
			"missing configuration file %s: place it next to the CLI or pass --config-dir", filepath.Base(path))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return contract.NewErrorf(contract.ErrorCodeConfiguration,
			"malformed %s: %v", filepath.Base(path), err)
	}
	return nil
}
