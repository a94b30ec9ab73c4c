package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optikit/optikit/pkg/contract"
)

func writeFiles(t *testing.T, settings, auth string) string {
	t.Helper()
	dir := t.TempDir()
	if settings != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(settings), 0o600))
	}
	if auth != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.json"), []byte(auth), 0o600))
	}
	return dir
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeFiles(t, `{"space_uid": "space-1"}`, `{"api_key": "secret"}`)

	cfg, err := Load(dir)
	require.Nil(t, err)

	assert.Equal(t, "space-1", cfg.SpaceUID)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "https://eu-de.ml.cloud.ibm.com", cfg.URL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.PollTimeout.Duration)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	dir := writeFiles(t,
		`{"space_uid": "space-1", "poll_interval": "2s", "poll_timeout": "30s"}`,
		`{"api_key": "secret"}`)

	cfg, err := Load(dir)
	require.Nil(t, err)
	assert.Equal(t, 2*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 30*time.Second, cfg.PollTimeout.Duration)
}

func TestLoadFailsWithConfigurationError(t *testing.T) {
	scenarios := []struct {
		name     string
		settings string
		auth     string
	}{
		{name: "missing settings.json", settings: "", auth: `{"api_key": "k"}`},
		{name: "missing auth.json", settings: `{"space_uid": "s"}`, auth: ""},
		{name: "malformed settings.json", settings: `{"space_uid": `, auth: `{"api_key": "k"}`},
		{name: "malformed auth.json", settings: `{"space_uid": "s"}`, auth: `not json`},
		{name: "missing space_uid", settings: `{}`, auth: `{"api_key": "k"}`},
		{name: "missing api_key", settings: `{"space_uid": "s"}`, auth: `{}`},
		{name: "empty api_key", settings: `{"space_uid": "s"}`, auth: `{"api_key": ""}`},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			dir := writeFiles(t, scenario.settings, scenario.auth)
			cfg, err := Load(dir)
			require.NotNil(t, err)
			assert.Nil(t, cfg)
			assert.Equal(t, contract.ErrorCodeConfiguration, err.Code)
		})
	}
}

func TestStoreIDsWritesBackToSettings(t *testing.T) {
	dir := writeFiles(t, `{"space_uid": "space-1", "url": "http://localhost:9999"}`, `{"api_key": "k"}`)

	cfg, err := Load(dir)
	require.Nil(t, err)
	require.Nil(t, cfg.StoreIDs("model-1", "dep-1"))

	raw, rerr := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, rerr)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "model-1", stored["model_id"])
	assert.Equal(t, "dep-1", stored["deployment_id"])
	assert.Equal(t, "space-1", stored["space_uid"])
	assert.Equal(t, "http://localhost:9999", stored["url"])

	// a fresh Load sees the recorded ids
	reloaded, err := Load(dir)
	require.Nil(t, err)
	assert.Equal(t, "dep-1", reloaded.DeploymentID)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: CAR PRODUCTION
type: do-docplex_22.1
software_spec: do_22.1
tags: [sample, cars]
description: Optimize weekly car production under capacity constraints.
`), 0o600))

	manifest, err := LoadManifest(path)
	require.Nil(t, err)
	assert.Equal(t, "CAR PRODUCTION", manifest.Name)
	assert.Equal(t, "do-docplex_22.1", manifest.Type)
	// hardware spec defaults when omitted
	assert.Equal(t, "S", manifest.HardwareSpec.Name)
	assert.Equal(t, 1, manifest.HardwareSpec.NumNodes)
}

func TestLoadManifestRequiresSoftwareSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: X\ntype: do-docplex_22.1\n"), 0o600))

	_, err := LoadManifest(path)
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeConfiguration, err.Code)
}
