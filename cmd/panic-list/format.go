package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"panic-list/internal/callgraph"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want text, json or yaml)", s)
	}
}

// FormatReport renders a report. Text output is Report.Text, the same bytes
// the history stores.
func FormatReport(report *callgraph.Report, format OutputFormat) ([]byte, error) {
	switch format {
	case FormatText:
		return report.Text(), nil
	case FormatJSON:
		return formatJSON(report)
	case FormatYAML:
		return formatYAML(report)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatValue renders any value as JSON or YAML. Text falls back to JSON.
func FormatValue(v interface{}, format OutputFormat) ([]byte, error) {
	if format == FormatYAML {
		return formatYAML(v)
	}
	return formatJSON(v)
}

func formatJSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func formatYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return buf.Bytes(), nil
}
