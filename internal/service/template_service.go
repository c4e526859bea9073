package service

import (
	"strings"
)

// RenderTemplate substitutes {key} placeholders with values from data in a
// single pass, so a value containing braces is never expanded again.
// Placeholders without a value are left as written.
func RenderTemplate(template string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
