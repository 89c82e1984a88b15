package mongorest

import (
	"strings"

	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// ModelConfig declares one model served by the REST API: the collection
// backing it, the schema of its documents and the visibility of its fields.
type ModelConfig struct {
	Name       string `yaml:"name" json:"name"`
	Collection string `yaml:"collection" json:"collection"`
	// IDType is the type of the _id field. Defaults to objectid.
	IDType    schema.Type                  `yaml:"id_type" json:"id_type"`
	Fields    map[string]schema.Definition `yaml:"fields" json:"fields"`
	Private   []string                     `yaml:"private" json:"private"`
	Protected []string                     `yaml:"protected" json:"protected"`
	// ReadOnly disables the write endpoints of the model.
	ReadOnly bool `yaml:"read_only" json:"read_only"`
}

// Schema builds the model's schema from its field definitions.
func (m ModelConfig) Schema() (*schema.Schema, error) {
	return schema.FromDefinition(m.Name, m.Collection, m.IDType, m.Fields)
}

// Visibility returns the model's field visibility declaration.
func (m ModelConfig) Visibility() access.FieldVisibility {
	return access.FieldVisibility{
		Model:     m.Name,
		Private:   m.Private,
		Protected: m.Protected,
	}
}

// ModelConfigs is the list of models in the settings file.
type ModelConfigs []ModelConfig

func (c *ModelConfigs) SectionId() string { return "models" }

func (c *ModelConfigs) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	names := map[string]bool{}

	for idx := range *c {
		m := &(*c)[idx]
		if m.Name == "" {
			catcher.Errorf("model %d has no name", idx)
			continue
		}
		catcher.ErrorfWhen(names[m.Name], "model '%s' is declared more than once", m.Name)
		names[m.Name] = true

		if m.Collection == "" {
			m.Collection = strings.ToLower(m.Name) + "s"
		}
		if m.IDType == "" {
			m.IDType = schema.TypeObjectID
		}

		if _, err := m.Schema(); err != nil {
			catcher.Wrapf(err, "model '%s'", m.Name)
		}
	}

	return catcher.Resolve()
}

// Register builds every model's schema and visibility declaration into
// the registries, then checks that every reference names a registered
// model.
func (c ModelConfigs) Register(schemas *schema.Registry, visibility *access.Registry) error {
	for _, m := range c {
		s, err := m.Schema()
		if err != nil {
			return errors.Wrapf(err, "building schema for model '%s'", m.Name)
		}
		if err = schemas.Register(s); err != nil {
			return errors.Wrapf(err, "registering schema for model '%s'", m.Name)
		}
		if err = visibility.Register(m.Visibility()); err != nil {
			return errors.Wrapf(err, "registering visibility for model '%s'", m.Name)
		}
	}

	return errors.Wrap(schemas.CheckReferences(), "checking model references")
}

// Get returns the configuration of the named model.
func (c ModelConfigs) Get(name string) (ModelConfig, bool) {
	for _, m := range c {
		if m.Name == name {
			return m, true
		}
	}

	return ModelConfig{}, false
}
