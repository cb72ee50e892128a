package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// parameterNamePattern is the identifier grammar shared with template placeholders.
var parameterNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parameter is a named, ordered list of candidate values that can be
// substituted into a template placeholder of the same name.
//
// A parameter with no values is legal; it simply contributes nothing when a
// template is expanded and its placeholder stays unresolved.
type Parameter struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Values    []string  `json:"values"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewParameter creates a new Parameter with a fresh ID and timestamps.
// Returns an error if the name is not identifier-like.
func NewParameter(name string, values []string) (*Parameter, error) {
	now := time.Now().UTC()
	p := &Parameter{
		ID:        uuid.New(),
		Name:      name,
		Values:    copyValues(values),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks that the parameter has an ID and an identifier-like name.
func (p *Parameter) Validate() error {
	if p.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}

	if !IsValidParameterName(p.Name) {
		return NewValidationError("name", "must match [A-Za-z_][A-Za-z0-9_]*", ErrInvalidParameterName)
	}

	return nil
}

// Update replaces the parameter's name and values and bumps UpdatedAt.
func (p *Parameter) Update(name string, values []string) error {
	if !IsValidParameterName(name) {
		return NewValidationError("name", "must match [A-Za-z_][A-Za-z0-9_]*", ErrInvalidParameterName)
	}

	p.Name = name
	p.Values = copyValues(values)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsValidParameterName reports whether name can be referenced from a template.
func IsValidParameterName(name string) bool {
	return parameterNamePattern.MatchString(name)
}

// ParseValues splits comma-separated input into trimmed, non-empty values.
func ParseValues(input string) []string {
	parts := strings.Split(input, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// FormatValues joins values for display.
func FormatValues(values []string) string {
	return strings.Join(values, ", ")
}

func copyValues(values []string) []string {
	if values == nil {
		return []string{}
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
