package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// FormatText renders a plain-text summary for terminal output.
func FormatText(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Thumbnail capture: %s\n", s.Root)
	fmt.Fprintf(&b, "  engine: %s, %d workers\n", s.Engine, s.Concurrency)
	fmt.Fprintf(&b, "  %d bundles in %s\n", s.Total, s.Elapsed.Round(timeUnit(s.Elapsed)))
	fmt.Fprintf(&b, "  succeeded: %d  skipped: %d  failed: %d\n", s.Succeeded, s.Skipped, s.Failed)

	if len(s.Failures) > 0 {
		b.WriteString("  failures:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "    %s (%s)\n", f.Bundle, f.Reason)
		}
		if s.Failed > len(s.Failures) {
			fmt.Fprintf(&b, "    ... and %d more\n", s.Failed-len(s.Failures))
		}
	}
	return b.String()
}

// FormatMarkdown renders a markdown summary suitable for reports.
func FormatMarkdown(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Thumbnail Capture Summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("| Setting | Value |\n")
	b.WriteString("|---------|-------|\n")
	fmt.Fprintf(&b, "| Root | %s |\n", s.Root)
	fmt.Fprintf(&b, "| Engine | %s |\n", s.Engine)
	fmt.Fprintf(&b, "| Workers | %d |\n", s.Concurrency)
	fmt.Fprintf(&b, "| Elapsed | %s |\n\n", s.Elapsed.Round(timeUnit(s.Elapsed)))

	b.WriteString("| Result | Count |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Succeeded | %d |\n", s.Succeeded)
	fmt.Fprintf(&b, "| Skipped | %d |\n", s.Skipped)
	fmt.Fprintf(&b, "| Failed | %d |\n", s.Failed)

	if len(s.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Bundle, f.Reason)
		}
		if s.Failed > len(s.Failures) {
			fmt.Fprintf(&b, "- ... and %d more\n", s.Failed-len(s.Failures))
		}
	}
	return b.String()
}

// timeUnit picks a rounding unit so short runs keep millisecond detail.
func timeUnit(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Millisecond
	}
	return 100 * time.Millisecond
}
