package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render substitutes {placeholder} occurrences with values from vars. A
// placeholder with no matching variable fails with ErrTemplateRender; the
// literal braces are never emitted to a customer.
func Render(tmpl string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := strings.Trim(m, "{}")
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("%w: unknown variable {%s}", xerrors.ErrTemplateRender, missing)
	}
	return out, nil
}
