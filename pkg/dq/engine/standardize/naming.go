// Package standardize implements the standardization stage: field renaming
// to a configured naming convention, per-cell type coercion against the
// schema, and data-dictionary derivation. Standardization always runs on
// the cleansed batch and produces the final batch version of a run.
package standardize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

var titler = cases.Title(language.Und, cases.NoLower)

// tokenize splits a field name into lowercase word tokens. It splits on
// underscores, hyphens, spaces, and lower-to-upper case boundaries, and
// keeps digit runs attached to the preceding token. Tokenizing an already
// transformed name yields the same tokens, which makes every naming
// transform idempotent.
func tokenize(name string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r):
			// Boundary at lower->Upper and at the last upper of an
			// acronym run (HTTPServer -> http, server).
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				flush()
			} else if i > 0 && unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				flush()
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// TransformName rewrites one field name into the given convention. Names
// already in the target convention pass through unchanged.
func TransformName(name string, convention config.NamingConvention) string {
	tokens := tokenize(name)
	if len(tokens) == 0 {
		return name
	}

	switch convention {
	case config.NamingCamelCase:
		var b strings.Builder
		b.WriteString(tokens[0])
		for _, t := range tokens[1:] {
			b.WriteString(titler.String(t))
		}
		return b.String()
	case config.NamingPascalCase:
		var b strings.Builder
		for _, t := range tokens {
			b.WriteString(titler.String(t))
		}
		return b.String()
	default:
		return strings.Join(tokens, "_")
	}
}

// NamingPlan maps every schema field to its transformed name, in schema
// order. Unchanged names still appear in the plan.
func NamingPlan(schema model.Schema, convention config.NamingConvention) map[string]string {
	plan := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		plan[f.Name] = TransformName(f.Name, convention)
	}
	return plan
}

// CheckCollisions rejects a naming plan in which two distinct source fields
// map to the same target name. Collisions are a configuration error and are
// detected before any record is touched.
func CheckCollisions(schema model.Schema, plan map[string]string) error {
	seen := make(map[string]string, len(plan))
	for _, f := range schema.Fields {
		target := plan[f.Name]
		if prev, ok := seen[target]; ok {
			return exception.NewConfigErrorf(moduleName, "pipeline.naming_convention",
				"fields %q and %q both map to %q", prev, f.Name, target)
		}
		seen[target] = f.Name
	}
	return nil
}
