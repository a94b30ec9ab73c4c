package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/optikit/optikit/pkg/contract"
)

// HardwareSpec is the compute allocation a deployment is bound to.
type HardwareSpec struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	NumNodes int    `yaml:"num_nodes" json:"num_nodes" validate:"min=1"`
}

// Manifest describes the model artifact to publish: its display name, the
// platform model type, the software specification the model runs under and
// the hardware allocation for its deployment.
type Manifest struct {
	Name         string       `yaml:"name" validate:"required"`
	Type         string       `yaml:"type" validate:"required"`
	SoftwareSpec string       `yaml:"software_spec" validate:"required"`
	HardwareSpec HardwareSpec `yaml:"hardware_spec"`
	Tags         []string     `yaml:"tags"`
	Description  string       `yaml:"description"`
}

// LoadManifest reads and validates a model.yaml manifest.
func LoadManifest(path string) (*Manifest, *contract.Error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, contract.NewErrorf(contract.ErrorCodeConfiguration, "missing model manifest %s", path)
	}

	manifest := Manifest{
		HardwareSpec: HardwareSpec{Name: "S", NumNodes: 1},
	}
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, contract.NewErrorf(contract.ErrorCodeConfiguration, "malformed model manifest %s: %v", path, err)
	}
	if err := validator.New().Struct(manifest); err != nil {
		return nil, contract.NewErrorf(contract.ErrorCodeConfiguration, "invalid model manifest %s: %v", path, err)
	}
	return &manifest, nil
}
