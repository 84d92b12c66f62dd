package summarizer

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/user/hlsnap/pkg/batch"
	"github.com/user/hlsnap/pkg/scanner"
)

func testReport() *batch.Report {
	r := &batch.Report{
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 6, 1, 12, 0, 42, 0, time.UTC),
	}
	r.Outcomes = []batch.Outcome{
		{Bundle: scanner.Bundle{RelPath: "a_hls"}, Status: batch.StatusSucceeded},
		{Bundle: scanner.Bundle{RelPath: "b_hls"}, Status: batch.StatusFailed, Reason: "open"},
		{Bundle: scanner.Bundle{RelPath: "c_hls"}, Status: batch.StatusSkipped, Reason: "cancelled"},
	}
	r.Succeeded, r.Failed, r.Skipped = 1, 1, 1
	return r
}

func TestFromReport(t *testing.T) {
	s := FromReport(testReport(), "/media/library", "ffmpeg", 2)

	if s.Total != 3 || s.Succeeded != 1 || s.Skipped != 1 || s.Failed != 1 {
		t.Errorf("unexpected counters %+v", s)
	}
	if s.Elapsed != 42*time.Second {
		t.Errorf("expected 42s elapsed, got %s", s.Elapsed)
	}
	if len(s.Failures) != 1 || s.Failures[0].Bundle != "b_hls" || s.Failures[0].Reason != "open" {
		t.Errorf("unexpected failures %+v", s.Failures)
	}
}

func TestFromReportCapsFailureSamples(t *testing.T) {
	r := &batch.Report{StartedAt: time.Now(), FinishedAt: time.Now()}
	for i := 0; i < 10; i++ {
		r.Outcomes = append(r.Outcomes, batch.Outcome{
			Bundle: scanner.Bundle{RelPath: fmt.Sprintf("v%d_hls", i)},
			Status: batch.StatusFailed,
			Reason: "timeout",
		})
	}
	r.Failed = 10

	s := FromReport(r, "/media/library", "ffmpeg", 2)
	if len(s.Failures) != maxFailureSamples {
		t.Errorf("expected %d samples, got %d", maxFailureSamples, len(s.Failures))
	}
}

func TestFormatText(t *testing.T) {
	out := FormatText(FromReport(testReport(), "/media/library", "ffmpeg", 2))

	for _, want := range []string{
		"/media/library",
		"engine: ffmpeg, 2 workers",
		"succeeded: 1",
		"b_hls (open)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFormatMarkdown(t *testing.T) {
	s := FromReport(testReport(), "/media/library", "ffmpeg", 2)
	out := FormatMarkdown(s)

	for _, want := range []string{
		"# Thumbnail Capture Summary",
		"| Succeeded | 1 |",
		"| Failed | 1 |",
		"`b_hls`: open",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriter(t *testing.T) {
	s := FromReport(testReport(), "/media/library", "ffmpeg", 2)
	path := t.TempDir() + "/reports/summary.md"

	w := NewWriter(FormatFunc(FormatMarkdown))
	if err := w.Write(path, s); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(data), "# Thumbnail Capture Summary") {
		t.Error("written summary missing heading")
	}
}
