package testutil

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// volatileFields differ between runs of the same analysis.
var volatileFields = map[string]bool{
	"id":          true,
	"createdAt":   true,
	"durationMs":  true,
	"fingerprint": true,
}

const volatilePlaceholder = "<volatile>"

// Normalize round-trips data through JSON, replaces volatile fields with a
// placeholder and rewrites source locations relative to the fixture root.
// The original value is not modified.
func Normalize(t *testing.T, fixture *FixtureContext, data any) any {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}
	return normalizeValue(generic, fixture.Root)
}

func normalizeValue(v any, fixtureRoot string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			switch {
			case volatileFields[k]:
				out[k] = volatilePlaceholder
			case k == "location":
				if s, ok := item.(string); ok {
					out[k] = NormalizeLocation(s, fixtureRoot)
					continue
				}
				out[k] = item
			default:
				out[k] = normalizeValue(item, fixtureRoot)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item, fixtureRoot)
		}
		return out
	default:
		return v
	}
}

// MarshalNormalized normalizes data and marshals it to stable JSON bytes.
// encoding/json sorts map keys, so the output is canonical. Uses 2-space
// indentation with a trailing newline.
func MarshalNormalized(t *testing.T, fixture *FixtureContext, data any) []byte {
	t.Helper()

	out, err := json.MarshalIndent(Normalize(t, fixture, data), "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return append(out, '\n')
}

// NormalizeLocation rewrites a `path:line` location relative to fixtureRoot
// with forward slashes.
func NormalizeLocation(loc, fixtureRoot string) string {
	path, line := loc, ""
	if i := strings.LastIndexByte(loc, ':'); i > 0 {
		path, line = loc[:i], loc[i:]
	}
	return NormalizeFilePath(path, fixtureRoot) + line
}

// NormalizeFilePath normalizes a file path for consistent comparison.
// - Converts to forward slashes
// - Makes relative to fixture root
// - Cleans the path
func NormalizeFilePath(path, fixtureRoot string) string {
	if rel, err := filepath.Rel(fixtureRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// DeepEqual compares two values for equality, ignoring volatile fields.
func DeepEqual(t *testing.T, fixture *FixtureContext, a, b any) bool {
	t.Helper()
	return reflect.DeepEqual(Normalize(t, fixture, a), Normalize(t, fixture, b))
}
