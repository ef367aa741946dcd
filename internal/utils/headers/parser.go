package headers

import (
	"fmt"
	"net/textproto"
	"strings"
)

// reserved headers are managed by the browser itself
var reserved = map[string]bool{
	"Host":           true,
	"Content-Length": true,
	"Connection":     true,
}

// Parse converts "Key: Value" lines into a header map sent with every
// browser request. Blank lines are ignored; keys are canonicalized.
func Parse(lines []string) (map[string]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("invalid header %q (want \"Key: Value\")", line)
		}
		key = textproto.CanonicalMIMEHeaderKey(key)
		if reserved[key] {
			return nil, fmt.Errorf("header %s cannot be overridden", key)
		}
		m[key] = strings.TrimSpace(value)
	}
	return m, nil
}
