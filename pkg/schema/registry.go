package schema

import (
	"fmt"
	"sync"

	"github.com/user/expdata"
)

// Conf is the per-action configuration of a custom model.
type Conf struct {
	// LinkWith names the foreign key field that attaches the model to a
	// subsession, group or player.
	LinkWith string `json:"link_with" yaml:"link_with"`
	// Fields is an allow-list of exported fields; all fields if empty.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	// ExcludeFields are removed from the exported fields.
	ExcludeFields []string `json:"exclude_fields,omitempty" yaml:"exclude_fields,omitempty"`
}

// CustomModel is an app-defined data model that can be attached to the
// standard hierarchy.
type CustomModel interface {
	Model() *Model
	// ExportConf returns the configuration for action, or false if the model
	// does not take part in it.
	ExportConf(action expdata.Action) (Conf, bool)
}

// StaticModel is a CustomModel with a fixed configuration per action.
type StaticModel struct {
	M     *Model
	Confs map[expdata.Action]Conf
}

func (s *StaticModel) Model() *Model {
	return s.M
}

func (s *StaticModel) ExportConf(action expdata.Action) (Conf, bool) {
	c, ok := s.Confs[action]
	return c, ok
}

// Registry holds the custom models of an app in declaration order.
type Registry struct {
	mu     sync.RWMutex
	models []CustomModel
	byName map[string]CustomModel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]CustomModel)}
}

// Register adds a custom model. Names must be unique and must not shadow a
// standard entity or the branch names used by the hierarchy.
func (r *Registry) Register(m CustomModel) error {
	model := m.Model()
	if model == nil {
		return fmt.Errorf("schema: custom model without schema")
	}
	if err := model.Validate(); err != nil {
		return err
	}
	if _, err := ParseEntity(model.Name); err == nil || model.Name == "apps" {
		return fmt.Errorf("%w: %s", ErrReservedName, model.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[model.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, model.Name)
	}
	r.byName[model.Name] = m
	r.models = append(r.models, m)
	return nil
}

// Lookup returns the custom model called name.
func (r *Registry) Lookup(name string) (CustomModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Models returns the registered models in declaration order.
func (r *Registry) Models() []CustomModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CustomModel(nil), r.models...)
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
