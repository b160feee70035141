package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/runner"
)

var (
	// Stdout receives progress and summaries
	Stdout io.Writer = color.Output
	// Stderr receives failures
	Stderr io.Writer = color.Error
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// result colors, keyed by migration result
var resultColors = map[migrate.Result]*color.Color{
	migrate.Run:     color.New(color.FgGreen, color.Bold),
	migrate.Skipped: color.New(color.FgHiBlack),
	migrate.Changed: color.New(color.FgYellow, color.Bold),
}

// PrintHeader prints a section header for a migration target
func PrintHeader(title string, subtitle string) {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TitleStyle.Render(title),
		" ",
		SecondaryStyle.Render(subtitle),
	)
	fmt.Fprintln(Stdout, header)
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(Stdout, SuccessStyle.Render("✓ "+message))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(Stderr, ErrorStyle.Render("✗ "+message))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(Stdout, WarningStyle.Render("⚠ "+message))
}

// PrintResult prints the "<Result> - <file>" progress line
func PrintResult(result migrate.Result, file string) {
	c, ok := resultColors[result]
	if !ok {
		c = color.New(color.Reset)
	}
	fmt.Fprintf(Stdout, "%s - %s\n", c.Sprint(result.String()), file)
}

// PrintFailure prints the "Error - <file>" line followed by the error detail
func PrintFailure(file string, detail string) {
	fmt.Fprintf(Stderr, "%s - %s\n", color.New(color.FgRed, color.Bold).Sprint("Error"), file)
	if detail != "" {
		fmt.Fprintln(Stderr, detail)
	}
}

// PrintSummary prints the per-target summary line
func PrintSummary(report *runner.Report) {
	counts := fmt.Sprintf("%d run, %d skipped, %d changed",
		report.Count(migrate.Run), report.Count(migrate.Skipped), report.Count(migrate.Changed))

	fmt.Fprintln(Stdout, lipgloss.JoinHorizontal(lipgloss.Top,
		SuccessStyle.Render(fmt.Sprintf("Migrations done in %d ms", report.Elapsed.Milliseconds())),
		" ",
		SecondaryStyle.Render("("+counts+")"),
	))
}

// PrintElapsed prints the overall elapsed time
func PrintElapsed(elapsed time.Duration) {
	fmt.Fprintln(Stdout, TitleStyle.Render(fmt.Sprintf("All done in %d ms", elapsed.Milliseconds())))
}

// PrintStatus prints the status of every migration file as a table
func PrintStatus(statuses []runner.FileStatus) error {
	data := pterm.TableData{{"File", "State", "Last run", "Checksum"}}
	for _, st := range statuses {
		lastRun := "-"
		if !st.LastRun.IsZero() {
			lastRun = st.LastRun.Format(time.RFC3339)
		}
		data = append(data, []string{st.File, stateColor(st.State).Sprint(st.State.String()), lastRun, st.Checksum})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, table)
	return nil
}

func stateColor(s runner.State) *color.Color {
	switch s {
	case runner.StateApplied:
		return color.New(color.FgGreen)
	case runner.StateChanged:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Fprint(Stdout, out)
	return nil
}

// Interactive reports whether stdin is a terminal a user can answer prompts on
func Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Confirm asks a yes/no question, defaulting to no
func Confirm(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
