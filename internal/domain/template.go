package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Template is the stored prompt text containing zero or more {{name}}
// placeholders. Placeholders are only ever resolved at expansion time; the
// content is kept exactly as written.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTemplate creates a new Template with a fresh ID and timestamps.
func NewTemplate(name, content string) (*Template, error) {
	now := time.Now().UTC()
	t := &Template{
		ID:        uuid.New(),
		Name:      name,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks that the template has an ID, a name and some content.
func (t *Template) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}

	if strings.TrimSpace(t.Name) == "" {
		return NewValidationError("name", "cannot be empty", ErrEmptyName)
	}

	if strings.TrimSpace(t.Content) == "" {
		return NewValidationError("content", "cannot be empty", ErrEmptyContent)
	}

	return nil
}

// Replace swaps the template's name and content for new text.
// Generations created earlier keep the variants they captured.
func (t *Template) Replace(name, content string) error {
	updated := *t
	updated.Name = name
	updated.Content = content
	if err := updated.Validate(); err != nil {
		return err
	}

	t.Name = name
	t.Content = content
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Variant is one fully resolved instantiation of a template for a specific
// assignment of parameter values. Variants are derived data: they are
// recomputed from the template and the current parameter values, and only
// persisted as the snapshot a Generation captured at creation time.
type Variant struct {
	ID         string            `json:"id"`
	TemplateID uuid.UUID         `json:"template_id"`
	Content    string            `json:"content"`
	Parameters map[string]string `json:"parameters"`
}
