package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/alfredjeanlab/gridpanel/internal/ui"
	"github.com/spf13/cobra"
)

// helpStyle colors one kind of token in cobra's usage text. group selects
// the submatch to style; zero styles the whole match.
type helpStyle struct {
	re     *regexp.Regexp
	group  int
	render func(string) string
}

var helpStyles = []helpStyle{
	// Group and section titles ("Data:", "Flags:").
	{regexp.MustCompile(`(?m)^([A-Z][A-Za-z ]*:)[ \t]*$`), 1, ui.RenderAccent},
	// Subcommand names in command listings.
	{regexp.MustCompile(`(?m)^  ([a-z][a-z-]*)  `), 1, ui.RenderCommand},
	// Flag value types.
	{regexp.MustCompile(`--[a-z-]+ (string|int|duration|stringArray|strings)\b`), 1, ui.RenderMuted},
	// Defaults.
	{regexp.MustCompile(`\(default [^)]*\)`), 0, ui.RenderMuted},
}

// colorizedHelpFunc renders cobra's usage text and styles it when stdout
// takes color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, st := range helpStyles {
		s = st.apply(s)
	}
	return s
}

func (st helpStyle) apply(s string) string {
	return st.re.ReplaceAllStringFunc(s, func(match string) string {
		if st.group == 0 {
			return st.render(match)
		}
		loc := st.re.FindStringSubmatchIndex(match)
		if loc == nil || loc[2*st.group] < 0 {
			return match
		}
		start, end := loc[2*st.group], loc[2*st.group+1]
		return match[:start] + st.render(match[start:end]) + match[end:]
	})
}
