// Package crm builds the configured CRM backend.
package crm

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/fieldmap"
	"github.com/tanpawarit/chative-crm/crm/twenty"
	"github.com/tanpawarit/chative-crm/crm/zoho"
	configx "github.com/tanpawarit/chative-crm/pkg/config"
)

// Settings selects the backend. MappingDir overrides the embedded field
// mapping files.
type Settings struct {
	System     string `envconfig:"CRM_SYSTEM" default:"twenty"`
	MappingDir string `envconfig:"FIELD_MAPPING_DIR"`
}

// Systems lists the supported CRM_SYSTEM values.
func Systems() []string {
	return []string{twenty.System, zoho.System}
}

// LoadMapping reads the mapping of system from dir, or from the embedded
// files when dir is empty.
func LoadMapping(system, dir string) (*fieldmap.Mapping, error) {
	if strings.TrimSpace(dir) == "" {
		return fieldmap.Load(system)
	}
	return fieldmap.NewDirLoader(dir).Load(system)
}

// NewAdapter builds the adapter for s.System, reading its TWENTY_* or
// ZOHO_* configuration from the environment.
func NewAdapter(s Settings) (contractx.Adapter, error) {
	system := strings.ToLower(strings.TrimSpace(s.System))
	switch system {
	case twenty.System, zoho.System:
	default:
		return nil, fmt.Errorf("%w: unknown CRM_SYSTEM %q (use %s)", contractx.ErrConfig, s.System, strings.Join(Systems(), " or "))
	}

	mapping, err := LoadMapping(system, s.MappingDir)
	if err != nil {
		return nil, err
	}
	log.Info().Str("crm", system).Str("mapping_version", mapping.Version()).Msg("crm adapter configured")

	if system == zoho.System {
		cfg, err := configx.New[zoho.Config]("ZOHO")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrConfig, err)
		}
		return zoho.New(*cfg, zoho.WithMapping(mapping))
	}

	cfg, err := configx.New[twenty.Config]("TWENTY")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrConfig, err)
	}
	return twenty.New(*cfg, twenty.WithMapping(mapping))
}

// MustNewAdapter reads Settings from the environment and panics when the
// adapter cannot be built.
func MustNewAdapter() contractx.Adapter {
	settings := configx.MustNew[Settings]("")
	adapter, err := NewAdapter(*settings)
	if err != nil {
		panic(err)
	}
	return adapter
}
