// Package form holds the validation error shared by user-facing forms.
package form

import (
	"sort"
	"strings"
)

// ValidationError reports missing or malformed user input, keyed by field.
// The form stays editable; callers render one message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Checker accumulates field errors.
type Checker struct {
	fields map[string]string
}

// Required records an error when value is blank.
func (c *Checker) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.Add(field, "is required")
	}
}

// Add records an error for field. The first message per field wins.
func (c *Checker) Add(field, msg string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	if _, ok := c.fields[field]; !ok {
		c.fields[field] = msg
	}
}

// Has reports whether field already has an error.
func (c *Checker) Has(field string) bool {
	_, ok := c.fields[field]
	return ok
}

// Err returns a *ValidationError when any field failed, nil otherwise.
func (c *Checker) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: c.fields}
}
