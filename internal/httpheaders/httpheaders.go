// Package httpheaders edits header maps of HTTP tool servers, matching
// header names case-insensitively.
package httpheaders

import (
	"fmt"
	"strings"
)

// Lookup returns the key in headers equal to name ignoring case.
func Lookup(headers map[string]string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for key := range headers {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return key, true
		}
	}
	return "", false
}

// Set writes value under name, replacing a key that differs only in case.
func Set(headers map[string]string, name, value string) map[string]string {
	name = strings.TrimSpace(name)
	if name == "" {
		return headers
	}
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	if existing, ok := Lookup(headers, name); ok && existing != name {
		delete(headers, existing)
	}
	headers[name] = value
	return headers
}

// SetDefault writes value under name unless an equivalent key exists.
func SetDefault(headers map[string]string, name, value string) map[string]string {
	if _, ok := Lookup(headers, name); ok {
		return headers
	}
	return Set(headers, name, value)
}

// Parse reads "Name: value" (or "Name=value") pairs as given on the
// command line. Later pairs override earlier ones.
func Parse(pairs []string) (map[string]string, error) {
	var headers map[string]string
	for _, pair := range pairs {
		idx := strings.IndexAny(pair, ":=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid header %q (expected Name: value)", pair)
		}
		name := strings.TrimSpace(pair[:idx])
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("invalid header name in %q", pair)
		}
		headers = Set(headers, name, strings.TrimSpace(pair[idx+1:]))
	}
	return headers, nil
}
