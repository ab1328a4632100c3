// Package nav implements path-template routing and guarded navigation for
// the pondctl admin shell.
package nav

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled route template. Placeholders (":name") match one or
// more non-slash characters; everything else matches literally. Matching is
// anchored and whole-string: trailing slashes are significant.
type Pattern struct {
	template string
	re       *regexp.Regexp
	params   []string
}

var placeholderName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compile turns a route template into a Pattern.
func Compile(template string) (*Pattern, error) {
	if template == "" || !strings.HasPrefix(template, "/") {
		return nil, fmt.Errorf("nav: template %q must start with /", template)
	}

	var sb strings.Builder
	var params []string
	sb.WriteString("^")
	for i, seg := range strings.Split(template, "/") {
		if i > 0 {
			sb.WriteString("/")
		}
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			if !placeholderName.MatchString(name) {
				return nil, fmt.Errorf("nav: invalid placeholder %q in template %q", seg, template)
			}
			params = append(params, name)
			sb.WriteString("([^/]+)")
			continue
		}
		sb.WriteString(regexp.QuoteMeta(seg))
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("nav: compile template %q: %w", template, err)
	}
	if re.NumSubexp() != len(params) {
		return nil, fmt.Errorf("nav: template %q: %d capture groups for %d params", template, re.NumSubexp(), len(params))
	}

	return &Pattern{template: template, re: re, params: params}, nil
}

// MustCompile is Compile that panics on error, for static route tables.
func MustCompile(template string) *Pattern {
	p, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Template returns the source template.
func (p *Pattern) Template() string { return p.template }

// Params returns the placeholder names in template order.
func (p *Pattern) Params() []string { return p.params }

// Match tests path against the pattern and extracts placeholder values.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	groups := p.re.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}
	values := make(map[string]string, len(p.params))
	for i, name := range p.params {
		values[name] = groups[i+1]
	}
	return values, true
}

// Resolve returns the first definition whose pattern accepts path, in
// registration order, together with the extracted parameters. Ambiguous
// templates are resolved purely by order, so callers must register more
// specific templates first.
func Resolve(path string, defs []*RouteDefinition) (*RouteDefinition, map[string]string, bool) {
	for _, def := range defs {
		if params, ok := def.Pattern.Match(path); ok {
			return def, params, true
		}
	}
	return nil, nil, false
}
