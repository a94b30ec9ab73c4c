package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optikit/optikit/pkg/config"
	"github.com/optikit/optikit/pkg/contract"
	"github.com/optikit/optikit/pkg/sandbox"
	"github.com/optikit/optikit/pkg/tabular"
)

func startPlatform(t *testing.T, opts ...sandbox.Option) (*sandbox.Platform, *config.Config) {
	t.Helper()

	platform := sandbox.New(opts...)
	baseURL, shutdown, err := platform.Serve()
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown() })

	cfg := &config.Config{APIKey: "test-key"}
	cfg.SpaceUID = "space-1"
	cfg.URL = baseURL
	cfg.PollInterval = config.Duration{Duration: 5 * time.Millisecond}
	cfg.PollTimeout = config.Duration{Duration: time.Second}
	return platform, cfg
}

func testManifest() *config.Manifest {
	return &config.Manifest{
		Name:         "CAR PRODUCTION",
		Type:         "do-docplex_22.1",
		SoftwareSpec: "do_22.1",
		HardwareSpec: config.HardwareSpec{Name: "S", NumNodes: 1},
	}
}

func writeModelSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.py")
	require.NoError(t, os.WriteFile(path, []byte("print('solve')\n"), 0o600))
	return path
}

func publish(t *testing.T, client *Client) string {
	t.Helper()
	ctx := context.Background()

	specID, err := client.SoftwareSpecID(ctx, "do_22.1")
	require.Nil(t, err)

	modelID, err := client.CreateModel(ctx, testManifest(), specID)
	require.Nil(t, err)

	archive, aerr := PackageModel(writeModelSource(t))
	require.NoError(t, aerr)
	require.Nil(t, client.UploadModelContent(ctx, modelID, archive))
	return modelID
}

func TestNewClientRejectsBadAPIKey(t *testing.T) {
	_, cfg := startPlatform(t, sandbox.WithAPIKey("the-real-key"))
	cfg.APIKey = "wrong"

	client, err := NewClient(context.Background(), cfg)
	require.NotNil(t, err)
	assert.Nil(t, client)
	assert.Equal(t, contract.ErrorCodeUnauthorized, err.Code)
}

func TestPublishAndDeployFlow(t *testing.T) {
	platform, cfg := startPlatform(t)
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.Nil(t, err)

	modelID := publish(t, client)
	assert.Equal(t, 1, platform.ModelCount())

	depID, err := client.CreateDeployment(ctx, modelID, "CAR PRODUCTION DEPLOYMENT", config.HardwareSpec{Name: "S", NumNodes: 1})
	require.Nil(t, err)
	assert.NotEmpty(t, depID)
	assert.Equal(t, 1, platform.DeploymentCount())

	// cleanup surface
	require.Nil(t, client.DeleteDeployment(ctx, depID))
	require.Nil(t, client.DeleteModel(ctx, modelID))
	assert.Equal(t, 0, platform.ModelCount())
	assert.Equal(t, 0, platform.DeploymentCount())
}

func TestSoftwareSpecLookupFailsAsPublishError(t *testing.T) {
	_, cfg := startPlatform(t)

	client, err := NewClient(context.Background(), cfg)
	require.Nil(t, err)

	_, err = client.SoftwareSpecID(context.Background(), "do_99.9")
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodePublish, err.Code)
}

func TestDeployWithInvalidHardwareSpecFailsBeforeAnyJob(t *testing.T) {
	platform, cfg := startPlatform(t)
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.Nil(t, err)

	modelID := publish(t, client)

	_, err = client.CreateDeployment(ctx, modelID, "BAD", config.HardwareSpec{Name: "XXL", NumNodes: 1})
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeDeployment, err.Code)
	assert.Contains(t, err.Message, "XXL")
	assert.Equal(t, 0, platform.DeploymentCount())
}

func TestCreateDeploymentRejectsUnknownSpace(t *testing.T) {
	_, cfg := startPlatform(t, sandbox.WithSpaceUID("space-1"))
	cfg.SpaceUID = "space-2"
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.Nil(t, err)

	_, err = client.CreateDeployment(ctx, "model-x", "NAME", config.HardwareSpec{Name: "S", NumNodes: 1})
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeDeployment, err.Code)
}

func TestJobStatusSequenceAndOutput(t *testing.T) {
	_, cfg := startPlatform(t)
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.Nil(t, err)

	modelID := publish(t, client)
	depID, err := client.CreateDeployment(ctx, modelID, "DEPLOYMENT", config.HardwareSpec{Name: "S", NumNodes: 1})
	require.Nil(t, err)

	input := tabular.Payload{ID: "t.csv", Fields: []string{"a", "b"}, Values: [][]any{{1.0, 2.0}, {3.0, 4.0}}}
	jobID, err := client.CreateJob(ctx, depID, JobPayload{
		InputData:  []tabular.Payload{input},
		OutputData: []OutputFilter{{ID: ".*\\.csv"}},
	})
	require.Nil(t, err)

	var status JobStatus
	for {
		status, err = client.GetJobStatus(ctx, jobID)
		require.Nil(t, err)
		if Terminal(status.State) {
			break
		}
	}
	assert.Equal(t, StateCompleted, status.State)

	outputs, err := client.GetJobOutput(ctx, jobID)
	require.Nil(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, []string{"a", "b"}, outputs[0].Columns)
	assert.Equal(t, [][]any{{1.0, 2.0}, {3.0, 4.0}}, outputs[0].Rows)

	require.Nil(t, client.DeleteJob(ctx, jobID))
}

func TestPackageModelProducesImportableEntry(t *testing.T) {
	archive, err := PackageModel(writeModelSource(t))
	require.NoError(t, err)
	assert.NotEmpty(t, archive)
	// gzip magic bytes
	assert.Equal(t, byte(0x1f), archive[0])
	assert.Equal(t, byte(0x8b), archive[1])
}
