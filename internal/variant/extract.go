package variant

import "regexp"

// placeholderPattern matches {{identifier}} tokens. Anything that does not
// fit the identifier grammar is left alone as literal text.
var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Extract returns the distinct placeholder names in content, in order of
// first appearance.
func Extract(content string) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})

	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// Report splits the placeholders in content into names the resolver knows
// and names it does not.
type Report struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// Validate checks each placeholder in content against the resolver.
// A parameter that exists but has no values still counts as valid.
func Validate(content string, resolve Resolver) Report {
	report := Report{Valid: []string{}, Invalid: []string{}}
	for _, name := range Extract(content) {
		if _, ok := resolve(name); ok {
			report.Valid = append(report.Valid, name)
		} else {
			report.Invalid = append(report.Invalid, name)
		}
	}
	return report
}
