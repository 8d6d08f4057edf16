package h

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\$\{([0-9a-zA-Z_]+)\}`)

// Interpolate resolves ${name} placeholders against the variables map.
// Unknown placeholders are left untouched.
func Interpolate(input string, variables map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(input, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return fmt.Sprintf("%v", value)
		}
		return match
	})
}

// SplitSqlStatements splits a SQL script into individual statements on ';',
// dropping blanks and line comments.
func SplitSqlStatements(script string) []string {
	statements := []string{}
	for _, raw := range strings.Split(script, ";") {
		lines := []string{}
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
