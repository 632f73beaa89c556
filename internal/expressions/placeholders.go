package expressions

import (
	"fmt"
	"strings"
)

// Placeholder tokens recognised in type_text templates.
const (
	CodePlaceholder     = "{code}"
	QuantityPlaceholder = "{quantity}"
)

// Substitute replaces every {code} and {quantity} in template with the string
// form of the record's code and quantity fields. Missing or nil fields become
// "". Any other {...} token is left as is.
func Substitute(template string, fields map[string]any, codeField, quantityField string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	r := strings.NewReplacer(
		CodePlaceholder, stringify(fields[codeField]),
		QuantityPlaceholder, stringify(fields[quantityField]),
	)
	return r.Replace(template)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
