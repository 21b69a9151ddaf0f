package plugin

import (
	"slices"
	"strings"
)

// ModelCatalog is the list of known model identifiers plus the current
// selection. Both plugin settings embed it.
type ModelCatalog struct {
	Model  string   `json:"model" yaml:"model"`
	Models []string `json:"models" yaml:"models"`
}

// Contains reports whether model is in the list.
func (c *ModelCatalog) Contains(model string) bool {
	return slices.Contains(c.Models, model)
}

// Add appends model and selects it. Blank and duplicate names are rejected
// and leave the catalog unchanged.
func (c *ModelCatalog) Add(model string) bool {
	if strings.TrimSpace(model) == "" || c.Contains(model) {
		return false
	}
	c.Models = append(c.Models, model)
	c.Model = model
	return true
}

// Delete removes model. When model is the current selection, the first other
// model becomes selected, or the selection is cleared if none remain.
func (c *ModelCatalog) Delete(model string) bool {
	idx := slices.Index(c.Models, model)
	if idx < 0 {
		return false
	}
	if c.Model == model {
		c.Model = ""
		for _, m := range c.Models {
			if m != model {
				c.Model = m
				break
			}
		}
	}
	c.Models = slices.Delete(c.Models, idx, idx+1)
	return true
}

// Resolve returns the trimmed selection, or fallback when it is blank.
func (c *ModelCatalog) Resolve(fallback string) string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return fallback
}

// Clone returns a deep copy.
func (c ModelCatalog) Clone() ModelCatalog {
	return ModelCatalog{Model: c.Model, Models: slices.Clone(c.Models)}
}
