package variant

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// Resolver looks up the current values of a parameter by name.
// The boolean is false when no parameter with that name exists.
type Resolver func(name string) ([]string, bool)

// MapResolver adapts a plain map to a Resolver.
func MapResolver(values map[string][]string) Resolver {
	return func(name string) ([]string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

// ParameterResolver builds a Resolver over a list of parameters.
func ParameterResolver(params []*domain.Parameter) Resolver {
	byName := make(map[string][]string, len(params))
	for _, p := range params {
		byName[p.Name] = p.Values
	}
	return MapResolver(byName)
}

type usable struct {
	name   string
	values []string
}

// usableParameters returns the placeholders that resolve to at least one
// value, in first-seen order. Everything else stays literal in the output.
func usableParameters(content string, resolve Resolver) []usable {
	params := make([]usable, 0)
	for _, name := range Extract(content) {
		values, ok := resolve(name)
		if !ok || len(values) == 0 {
			continue
		}
		params = append(params, usable{name: name, values: values})
	}
	return params
}

// Count returns how many variants Expand would produce.
func Count(content string, resolve Resolver) int {
	total := 1
	for _, p := range usableParameters(content, resolve) {
		total *= len(p.values)
	}
	return total
}

// VariantID formats the stable ID of the index-th variant of a template.
func VariantID(templateID uuid.UUID, index int) string {
	return fmt.Sprintf("%s-variant-%d", templateID, index)
}

// Expand produces every resolved variant of content.
//
// Variants are emitted in odometer order: the last usable parameter changes
// fastest. When no placeholder resolves to a value, a single variant equal
// to the content is returned with an empty assignment.
func Expand(templateID uuid.UUID, content string, resolve Resolver) []domain.Variant {
	params := usableParameters(content, resolve)

	if len(params) == 0 {
		return []domain.Variant{{
			ID:         VariantID(templateID, 0),
			TemplateID: templateID,
			Content:    content,
			Parameters: map[string]string{},
		}}
	}

	total := 1
	for _, p := range params {
		total *= len(p.values)
	}

	variants := make([]domain.Variant, 0, total)
	indices := make([]int, len(params))

	for index := 0; index < total; index++ {
		assignment := make(map[string]string, len(params))
		for i, p := range params {
			assignment[p.name] = p.values[indices[i]]
		}

		variants = append(variants, domain.Variant{
			ID:         VariantID(templateID, index),
			TemplateID: templateID,
			Content:    substitute(content, assignment),
			Parameters: assignment,
		})

		// advance the odometer
		for i := len(indices) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(params[i].values) {
				break
			}
			indices[i] = 0
		}
	}

	return variants
}

// substitute replaces every assigned placeholder in a single pass, so a
// value that itself looks like a placeholder is never expanded again.
func substitute(content string, assignment map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := token[2 : len(token)-2]
		if v, ok := assignment[name]; ok {
			return v
		}
		return token
	})
}
