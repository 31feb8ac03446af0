package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// OutputWriter handles formatted output
type OutputWriter struct {
	format string
	out    io.Writer
}

// NewOutputWriter creates a writer for the --output format
func NewOutputWriter() *OutputWriter {
	return &OutputWriter{format: outputFormat, out: os.Stdout}
}

// Write outputs data as JSON or YAML, or calls table for the table format.
func (o *OutputWriter) Write(data any, table func(w *tabwriter.Writer)) error {
	switch o.format {
	case "json":
		output, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(o.out, string(output))
		return nil
	case "yaml":
		// Round trip through JSON so YAML keys follow the json tags.
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		output, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Fprint(o.out, string(output))
		return nil
	case "quiet":
		return nil
	case "table", "":
		if table == nil {
			fmt.Fprintln(o.out, data)
			return nil
		}
		w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
		table(w)
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q", o.format)
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
