package insight

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
)

// ErrDuplicateTemplate is returned when two templates share a name.
var ErrDuplicateTemplate = errors.New("duplicate insight template")

// Input is what a Generator sees for one tenant and one pipeline run.
type Input struct {
	TenantID    string
	RangeDays   int
	HorizonDays int
	MinPoints   int
	Now         time.Time

	Analyzer    *Analyzer
	Data        roles.DataSource
	Predictions roles.PredictionProvider // may be nil
}

// Generator produces at most one insight. Returning nil, nil means the
// template has nothing to report (for example, not enough data).
type Generator interface {
	Generate(ctx context.Context, in Input) (*analytics.Insight, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, in Input) (*analytics.Insight, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, in Input) (*analytics.Insight, error) {
	return f(ctx, in)
}

// Template is a named, independently failing analysis unit.
type Template struct {
	Name        string
	Description string
	Cadence     analytics.Cadence
	Priority    analytics.Priority
	Generator   Generator
}

// TemplateRegistry is an immutable, ordered set of templates keyed by name.
type TemplateRegistry struct {
	templates []Template
	byName    map[string]int
}

// NewTemplateRegistry validates templates and returns a registry preserving
// their order.
func NewTemplateRegistry(templates ...Template) (*TemplateRegistry, error) {
	r := &TemplateRegistry{
		templates: make([]Template, 0, len(templates)),
		byName:    make(map[string]int, len(templates)),
	}
	for _, t := range templates {
		switch {
		case t.Name == "":
			return nil, errors.New("insight template has no name")
		case t.Generator == nil:
			return nil, fmt.Errorf("insight template %q has no generator", t.Name)
		case !t.Priority.Valid():
			return nil, fmt.Errorf("insight template %q: invalid priority %q", t.Name, t.Priority)
		case !t.Cadence.Valid():
			return nil, fmt.Errorf("insight template %q: invalid cadence %q", t.Name, t.Cadence)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.Name)
		}
		r.byName[t.Name] = len(r.templates)
		r.templates = append(r.templates, t)
	}
	return r, nil
}

// Get returns the template with the given name.
func (r *TemplateRegistry) Get(name string) (Template, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Template{}, false
	}
	return r.templates[i], true
}

// All returns a copy of every registered template in registration order.
func (r *TemplateRegistry) All() []Template {
	return slices.Clone(r.templates)
}

// Len returns the number of registered templates.
func (r *TemplateRegistry) Len() int {
	return len(r.templates)
}

// Filter returns the templates matching every non-empty criterion: name in
// types, exactly priority, exactly cadence. Unknown type names match nothing.
func (r *TemplateRegistry) Filter(types []string, priority analytics.Priority, cadence analytics.Cadence) []Template {
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		if len(types) > 0 && !slices.Contains(types, t.Name) {
			continue
		}
		if priority != "" && t.Priority != priority {
			continue
		}
		if cadence != "" && t.Cadence != cadence {
			continue
		}
		out = append(out, t)
	}
	return out
}
