// Package render substitutes variables into application source files before
// they are parsed or deployed. This is part of the Functional Core - no I/O.
package render

import (
	"errors"
	"regexp"
	"sort"

	"github.com/compose-spec/compose-go/v2/template"
)

// =============================================================================
// Renderer Boundary
// =============================================================================

// Renderer turns one raw source file into its deployable text. The engine
// touches templating only through this interface.
type Renderer interface {
	Render(fileName, content string, vars map[string]string) (string, error)
}

// ComposeRenderer is the default Renderer: compose-style interpolation
// supporting ${VAR}, ${VAR:-default}, ${VAR:?message} and $$ escaping.
// Unset optional variables substitute the empty string.
type ComposeRenderer struct{}

// NewComposeRenderer creates the default renderer.
func NewComposeRenderer() *ComposeRenderer {
	return &ComposeRenderer{}
}

func (r *ComposeRenderer) Render(fileName, content string, vars map[string]string) (string, error) {
	out, err := template.Substitute(content, func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
	if err != nil {
		return "", classify(fileName, err)
	}
	return out, nil
}

// classify maps compose-go substitution failures onto our error taxonomy.
func classify(fileName string, err error) error {
	var missing *template.MissingRequiredError
	if errors.As(err, &missing) {
		return NewTemplateError(fileName, missing.Error(), ErrMissingVariable)
	}
	var invalid *template.InvalidTemplateError
	if errors.As(err, &invalid) {
		return NewTemplateError(fileName, "invalid variable syntax", ErrBadTemplate)
	}
	return NewTemplateError(fileName, err.Error(), err)
}

// =============================================================================
// Placeholder Inventory
// =============================================================================

// variablePlaceholderRegex matches ${VAR_NAME}, ${VAR_NAME:-default} and the
// other braced forms. Used for reporting, not for substitution.
var variablePlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::?[-+?][^}]*)?\}`)

// ExtractVariables returns the unique placeholder names referenced in content,
// sorted. Escaped occurrences ($${X}) are still reported; callers use this for
// preview output only.
func ExtractVariables(content string) []string {
	seen := make(map[string]bool)
	for _, match := range variablePlaceholderRegex.FindAllStringSubmatch(content, -1) {
		seen[match[1]] = true
	}
	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}
