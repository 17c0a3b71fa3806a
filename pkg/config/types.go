package config

import (
	"github.com/openfroyo/instrumenta/pkg/engine"
)

// Manifest is one YAML document describing a task.
type Manifest struct {
	// Kind selects the processor (e.g., "WriteFile").
	Kind string `yaml:"kind" validate:"required"`

	// Version selects the processor version.
	Version string `yaml:"version" validate:"required"`

	// Metadata names the task and limits where it runs.
	Metadata ManifestMetadata `yaml:"metadata"`

	// Spec is the processor input.
	Spec map[string]any `yaml:"spec" validate:"required"`
}

// ManifestMetadata extends the task metadata with a name shorthand. A
// non-empty Name becomes the ManifestName identifier unless one is given.
type ManifestMetadata struct {
	Name string `yaml:"name,omitempty"`

	engine.Metadata `yaml:",inline"`
}

// Task converts the manifest into an engine task.
func (m *Manifest) Task() *engine.Task {
	metadata := m.Metadata.Metadata.Clone()
	if m.Metadata.Name != "" && !hasManifestName(metadata) {
		metadata.Identifiers = append([]engine.Identifier{{
			Type: engine.IdentifierTypeManifestName,
			Key:  m.Metadata.Name,
		}}, metadata.Identifiers...)
	}
	return engine.NewTask(m.Kind, m.Version, m.Spec, metadata)
}

func hasManifestName(m engine.Metadata) bool {
	for _, id := range m.Identifiers {
		if id.Type == engine.IdentifierTypeManifestName {
			return true
		}
	}
	return false
}
