package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/pipeline"
)

// stdout receives all status output. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// =============================================================================
// Palette and styles
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	// StyleTitle renders headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	// StyleDim renders secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)
	// StyleValue renders paths, names and sizes.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)
	// StyleNumber renders step numbers and counts.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)
	// StyleWarning renders warnings.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleCached      = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed    = lipgloss.NewStyle().Foreground(colorGray)
)

// status is a leading icon for one-line messages.
type status struct {
	icon  string
	style lipgloss.Style
}

var (
	statusSuccess = status{"✓", lipgloss.NewStyle().Foreground(colorGreen)}
	statusError   = status{"✗", lipgloss.NewStyle().Foreground(colorRed)}
	statusWarning = status{"!", lipgloss.NewStyle().Foreground(colorYellow)}
	statusInfo    = status{"›", lipgloss.NewStyle().Foreground(colorGray)}
)

func (s status) print(msg string) {
	fmt.Fprintln(stdout, s.style.Render(s.icon)+" "+msg)
}

// kindStyle colors a step by what it does to the system: destructive
// kinds red, additive kinds green, in-place changes amber.
func kindStyle(k action.Kind) lipgloss.Style {
	switch k {
	case action.Delete, action.Deactivate, action.Umount,
		action.RemoveFromEtcFstab, action.RemoveFromEtcCrypttab, action.RemoveFromEtcMdadm,
		action.UnassignQgroup:
		return lipgloss.NewStyle().Foreground(colorRed)
	case action.Create, action.CreatePartitionTable, action.Activate, action.Mount,
		action.AddToEtcFstab, action.AddToEtcCrypttab, action.AddToEtcMdadm,
		action.AssignQgroup:
		return lipgloss.NewStyle().Foreground(colorGreen)
	default:
		return lipgloss.NewStyle().Foreground(colorYellow)
	}
}

// =============================================================================
// Status output
// =============================================================================

func printSuccess(format string, args ...any) { statusSuccess.print(fmt.Sprintf(format, args...)) }
func printError(format string, args ...any)   { statusError.print(fmt.Sprintf(format, args...)) }
func printInfo(format string, args ...any)    { statusInfo.print(fmt.Sprintf(format, args...)) }

func printWarning(format string, args ...any) {
	statusWarning.print(StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render("→")+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

func printNewline() { fmt.Fprintln(stdout) }

// =============================================================================
// Plans
// =============================================================================

// printStats prints the diff and graph counts of a plan on one line.
func printStats(stats pipeline.Stats, cached bool) {
	var parts []string
	for _, p := range []struct {
		n    int
		noun string
	}{
		{stats.Created, "created"},
		{stats.Deleted, "deleted"},
		{stats.Modified, "modified"},
		{stats.Actions, "actions"},
		{stats.Edges, "edges"},
	} {
		if p.n > 0 {
			parts = append(parts, StyleDim.Render(fmt.Sprintf("%d %s", p.n, p.noun)))
		}
	}
	if cached {
		parts = append(parts, styleCached.Render("cached"))
	} else {
		parts = append(parts, styleComputed.Render("fresh"))
	}
	fmt.Fprintln(stdout, "  "+strings.Join(parts, StyleDim.Render(" · ")))
}

// printSteps prints the numbered steps of a plan. Trailing steps, which
// only follow their chain and never block another one, are dimmed.
func printSteps(steps []pipeline.Step) {
	width := len(fmt.Sprint(len(steps)))
	for _, s := range steps {
		n := StyleNumber.Render(fmt.Sprintf("%*d.", width, s.N))
		text := kindStyle(s.Kind).Render(s.Text)
		if s.Trailing {
			text = StyleDim.Render(s.Text)
		}
		fmt.Fprintln(stdout, "  "+n+" "+text)
	}
}

func printPlan(s *pipeline.Summary, cached bool) {
	if len(s.Steps) == 0 {
		printSuccess("Nothing to do, system already matches staging")
		return
	}
	fmt.Fprintln(stdout, StyleTitle.Render(fmt.Sprintf("Plan (%d steps)", len(s.Steps))))
	printSteps(s.Steps)
	printNewline()
	printStats(s.Stats, cached)
	if len(s.Stats.Features) > 0 {
		printDetail("needs: %s", strings.Join(s.Stats.Features, ", "))
	}
}
