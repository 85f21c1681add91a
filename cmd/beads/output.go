package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/agentflow/beads/internal/apierr"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"})
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"})
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

func disableColor() {
	lipgloss.SetColorProfile(lipgloss.Ascii)
}

// printResult renders v as JSON when --json is set, otherwise hands off
// to render, a human-readable formatter supplied by the caller.
func printResult(v interface{}, render func(v interface{})) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	render(v)
}

// fatal prints err appropriately for --json or human output and exits
// with the apierr-mapped exit code from spec §6: 0 success, 1 user
// error, 2 internal error.
func fatal(err error) {
	kind := apierr.KindOf(err)
	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		_ = enc.Encode(map[string]string{"error": err.Error(), "code": string(kind)})
	} else {
		fmt.Fprintln(os.Stderr, failStyle.Render("error:")+" "+err.Error())
	}
	os.Exit(apierr.CLIExitCode(kind))
}
