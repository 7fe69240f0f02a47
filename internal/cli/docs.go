package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"tasklist-cli/internal/docs"
)

func newDocsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show documentation topics (stores, sync protocol, keys)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, map[string]any{"topics": docs.Topics()})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `tasklist docs` to list topics)", topic))
			}
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if app.Format == "text" {
				out, err := docs.Render(body, markdownStyle(cmd.OutOrStdout()), 80)
				if err != nil {
					return writeErr(cmd, err)
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return writeOut(cmd, app, map[string]any{"topic": topic, "markdown": body})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no envelope)")
	return cmd
}

// markdownStyle picks a glamour style without querying the terminal, which can
// block on some emulators.
func markdownStyle(w io.Writer) string {
	if termenv.NewOutput(w).Profile == termenv.Ascii {
		return "notty"
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TASKLIST_TUI_THEME")), "light") {
		return "light"
	}
	return "dark"
}
