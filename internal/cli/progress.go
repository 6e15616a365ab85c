package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter shows parse progress as a progress bar.
// It implements analyzer.ProgressReporter.
type CLIProgressReporter struct {
	out       io.Writer
	quiet     bool
	bar       *progressbar.ProgressBar
	startTime time.Time
}

// NewCLIProgressReporter creates a reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{out: out, quiet: quiet}
}

func (c *CLIProgressReporter) OnParseStart(totalFiles int) {
	if c.quiet {
		return
	}
	c.startTime = time.Now()
	c.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Parsing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileParsed(path string) {
	if c.quiet || c.bar == nil {
		return
	}
	_ = c.bar.Add(1)
}

func (c *CLIProgressReporter) OnParseComplete(parsed, failed int) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}
	fmt.Fprintf(c.out, "✓ Parsed %s files in %.1fs", formatNumber(parsed), time.Since(c.startTime).Seconds())
	if failed > 0 {
		fmt.Fprintf(c.out, " (%s failed)", formatNumber(failed))
	}
	fmt.Fprintln(c.out)
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if n < 1000 && n > -1000 {
		return str
	}

	var result string
	for i, c := range str {
		if i > 0 && str[i-1] != '-' && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
