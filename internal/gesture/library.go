package gesture

import "fmt"

// Library owns all registered gesture definitions. Insertion order is
// preserved so that exports are deterministic.
type Library struct {
	defs  map[string]*Definition
	order []string
}

// Snapshot is the serializable form of a library: every definition with
// its templates, in registration order. It is the sole durable-storage
// boundary of the engine.
type Snapshot struct {
	Version     int           `json:"version"`
	Definitions []*Definition `json:"definitions"`
}

// SnapshotVersion is the current snapshot schema version.
const SnapshotVersion = 1

// NewLibrary creates an empty gesture library.
func NewLibrary() *Library {
	return &Library{
		defs: make(map[string]*Definition),
	}
}

// Register adds a definition to the library.
// Returns ErrDuplicateID if the id is already registered, or
// ErrInvalidInput if the definition is malformed.
func (l *Library) Register(def *Definition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}
	if _, ok := l.defs[def.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, def.ID)
	}

	l.defs[def.ID] = def
	l.order = append(l.order, def.ID)
	return nil
}

// Remove deletes a gesture by id. Removing an unknown id is a no-op.
func (l *Library) Remove(id string) {
	if _, ok := l.defs[id]; !ok {
		return
	}
	delete(l.defs, id)
	for i, existing := range l.order {
		if existing == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Get returns the definition for id, or false if it is not registered.
func (l *Library) Get(id string) (*Definition, bool) {
	def, ok := l.defs[id]
	return def, ok
}

// List returns all definitions in registration order.
func (l *Library) List() []*Definition {
	out := make([]*Definition, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.defs[id])
	}
	return out
}

// Len returns the number of registered gestures.
func (l *Library) Len() int {
	return len(l.order)
}

// AddTemplate appends a template to an existing DTW gesture.
// Returns ErrNotFound if the gesture is unknown.
func (l *Library) AddTemplate(id string, t *Template) error {
	def, ok := l.defs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if t == nil || len(t.Samples) == 0 {
		return fmt.Errorf("%w: empty template", ErrInvalidInput)
	}
	def.Templates = append(def.Templates, t)
	return nil
}

// RemoveTemplate deletes one template from a gesture by template id.
// Returns ErrNotFound if the gesture is unknown; removing an unknown
// template id is a no-op.
func (l *Library) RemoveTemplate(id, templateID string) error {
	def, ok := l.defs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	for i, t := range def.Templates {
		if t.ID == templateID {
			def.Templates = append(def.Templates[:i], def.Templates[i+1:]...)
			return nil
		}
	}
	return nil
}

// Export returns a deep-copied snapshot of the library in
// registration order.
func (l *Library) Export() Snapshot {
	s := Snapshot{
		Version:     SnapshotVersion,
		Definitions: make([]*Definition, 0, len(l.order)),
	}
	for _, id := range l.order {
		s.Definitions = append(s.Definitions, l.defs[id].clone())
	}
	return s
}

// Import atomically replaces the library contents with the snapshot.
// The snapshot is fully validated before any mutation; on failure the
// library is unchanged and ErrImportRejected is returned.
func (l *Library) Import(s Snapshot) error {
	seen := make(map[string]bool, len(s.Definitions))
	for i, def := range s.Definitions {
		if def == nil {
			return fmt.Errorf("%w: definition %d is nil", ErrImportRejected, i)
		}
		if err := validateDefinition(def); err != nil {
			return fmt.Errorf("%w: definition %q: %v", ErrImportRejected, def.ID, err)
		}
		if seen[def.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrImportRejected, def.ID)
		}
		seen[def.ID] = true
	}

	l.defs = make(map[string]*Definition, len(s.Definitions))
	l.order = l.order[:0]
	for _, def := range s.Definitions {
		imported := def.clone()
		l.defs[imported.ID] = imported
		l.order = append(l.order, imported.ID)
	}
	return nil
}

// validateDefinition checks that a definition is well formed: a DTW
// gesture needs at least one non-empty template, a threshold gesture
// needs a rule with a positive minimum peak.
func validateDefinition(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidInput)
	}
	if def.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if def.MaxDistance < 0 {
		return fmt.Errorf("%w: negative max distance", ErrInvalidInput)
	}
	if def.CooldownMs < 0 {
		return fmt.Errorf("%w: negative cooldown", ErrInvalidInput)
	}

	switch def.Classifier {
	case ClassifierDTW:
		if len(def.Templates) == 0 {
			return fmt.Errorf("%w: dtw gesture has no templates", ErrInvalidInput)
		}
		for i, t := range def.Templates {
			if t == nil || len(t.Samples) == 0 {
				return fmt.Errorf("%w: template %d is empty", ErrInvalidInput, i)
			}
		}
	case ClassifierThreshold:
		if def.Rule == nil {
			return fmt.Errorf("%w: threshold gesture has no rule", ErrInvalidInput)
		}
		if def.Rule.MinPeak <= 0 {
			return fmt.Errorf("%w: rule min peak must be positive", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown classifier %q", ErrInvalidInput, def.Classifier)
	}

	return nil
}
