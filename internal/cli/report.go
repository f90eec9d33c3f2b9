package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/stagecoach-io/stagecoach"
	"golang.org/x/term"
)

const timeRounding = time.Second

// RenderReport writes a per-team flow report to w: item counts, cycle time,
// loop-back rate and the active workflow shape. Markdown is rendered with
// glamour when stdout is an interactive terminal and passed through raw
// otherwise, so piping to a file keeps plain markdown.
func RenderReport(w io.Writer, eng *stagecoach.Engine, team string) error {
	md, err := buildReportMarkdown(eng, team)
	if err != nil {
		return err
	}

	if !isInteractive() {
		_, err := io.WriteString(w, md)
		return err
	}

	width := 100
	if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
		width = cols
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		_, err := io.WriteString(w, md)
		return err
	}

	out, err := renderer.Render(md)
	if err != nil {
		_, err := io.WriteString(w, md)
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func isInteractive() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

func buildReportMarkdown(eng *stagecoach.Engine, team string) (string, error) {
	cfg, ok := eng.Registry().Active(team)
	if !ok {
		return "", fmt.Errorf("unknown team %q", team)
	}
	report := eng.Collector().Report(team)

	var b strings.Builder
	fmt.Fprintf(&b, "# Flow report: %s\n\n", team)
	fmt.Fprintf(&b, "Active config version: **%d**\n\n", cfg.Version)

	b.WriteString("## Throughput\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Tracked items | %d |\n", report.Items)
	fmt.Fprintf(&b, "| Finished items | %d |\n", report.Finished)
	fmt.Fprintf(&b, "| Transitions | %d |\n", report.Transitions)
	fmt.Fprintf(&b, "| Loop-back rate | %.1f%% |\n", report.LoopbackRate*100)
	if report.Finished > 0 {
		fmt.Fprintf(&b, "| Avg cycle time | %s |\n", report.AvgCycleTime.Round(timeRounding))
	}
	b.WriteString("\n## Workflow\n\n")

	for _, stage := range cfg.Stages {
		marker := ""
		if stage.Terminal {
			marker = " (terminal)"
		} else if stage.Required {
			marker = " (required)"
		}
		fmt.Fprintf(&b, "### %s%s\n\n", stage.Name, marker)
		for _, status := range cfg.Statuses {
			if status.Stage != stage.ID {
				continue
			}
			dests := cfg.Destinations(status.ID)
			if len(dests) == 0 {
				fmt.Fprintf(&b, "- `%s`\n", status.ID)
				continue
			}
			fmt.Fprintf(&b, "- `%s` → %s\n", status.ID, "`"+strings.Join(dests, "`, `")+"`")
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
