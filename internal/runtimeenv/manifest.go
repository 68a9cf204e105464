package runtimeenv

import (
	"fmt"
	"os"
	"strings"
)

// ReadManifest parses a plain-text requirement manifest: one package
// specifier per line, comments beginning with # ignored.
func ReadManifest(path string) ([]string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var specs []string
	for _, line := range splitLines(string(contents)) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		specs = append(specs, line)
	}
	return specs, nil
}

// RequirementName strips version specifiers, extras, and markers from a
// requirement line, leaving the bare package name.
func RequirementName(spec string) string {
	name := spec
	for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<", ";", "[", " "} {
		if idx := strings.Index(name, sep); idx >= 0 {
			name = name[:idx]
		}
	}
	return strings.TrimSpace(name)
}

// NormalizeName lower-cases a package name and folds underscores into
// hyphens, matching the installer's own name normalization.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSpace(strings.TrimSuffix(line, "\r")))
	}
	return lines
}
