package classify

import (
	"github.com/mvp-joe/flowscope/internal/config"
)

// Classifier applies the external and mutation rule tables.
type Classifier struct {
	external Table
	mutation Table
}

// New creates a classifier from explicit tables.
func New(external, mutation Table) *Classifier {
	return &Classifier{external: external, mutation: mutation}
}

// Default creates a classifier with the built-in tables.
func Default() *Classifier {
	return New(DefaultExternalRules(), DefaultMutationRules())
}

// FromConfig creates a classifier with the built-in tables extended by the
// configured rules.
func FromConfig(cfg *config.ClassifyConfig) (*Classifier, error) {
	external, err := compileRules(cfg.ExternalRules)
	if err != nil {
		return nil, err
	}
	mutation, err := compileRules(cfg.MutationRules)
	if err != nil {
		return nil, err
	}
	return New(
		DefaultExternalRules().Extend(external...),
		DefaultMutationRules().Extend(mutation...),
	), nil
}

func compileRules(rules []config.RuleConfig) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for _, rc := range rules {
		r, err := NewRule(rc.Name, Category(rc.Category), rc.Pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// External returns the first external rule matching the callee name, its
// receiver expression, or the project-relative resolved file.
func (c *Classifier) External(callee, receiver, resolvedRel string) (Rule, bool) {
	return c.external.First(callee, receiver, resolvedRel)
}

// IsExternal reports whether a call leaves the traceable code.
func (c *Classifier) IsExternal(callee, receiver, resolvedRel string) bool {
	_, ok := c.External(callee, receiver, resolvedRel)
	return ok
}

// MutatesData reports whether the callee name looks like a mutation.
func (c *Classifier) MutatesData(callee string) bool {
	_, ok := c.mutation.First(callee)
	return ok
}

// ExternalRules returns the external table.
func (c *Classifier) ExternalRules() Table {
	return c.external
}

// MutationRules returns the mutation table.
func (c *Classifier) MutationRules() Table {
	return c.mutation
}
