// Package format writes command results as json, edn or plain text.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tasklist-cli/internal/model"
)

// List is the result of reading a single store path.
type List struct {
	Path  string   `json:"path"`
	Items []string `json:"items"`
}

// Push is one delivery printed by watch.
type Push struct {
	Seq   int      `json:"seq"`
	Path  string   `json:"path"`
	Items []string `json:"items"`
}

// Change reports the list a mutating command left behind.
type Change struct {
	Op    string   `json:"op"`
	Path  string   `json:"path"`
	Items []string `json:"items"`
}

// Write writes v in the requested format.
//
// Supported formats:
// - json (default)
// - edn
// - text
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "edn":
		return WriteEDN(w, v, pretty)
	case "text":
		return WriteText(w, v)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// Valid reports whether Write understands format.
func Valid(format string) bool {
	switch format {
	case "", "json", "edn", "text":
		return true
	}
	return false
}

// WriteJSON writes one JSON document per call, newline terminated.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteText renders the types this package and model know about for humans.
// Anything else falls back to JSON.
func WriteText(w io.Writer, v any) error {
	var b strings.Builder
	switch t := v.(type) {
	case model.State:
		writeState(&b, t)
	case *model.State:
		writeState(&b, *t)
	case List:
		b.WriteString(t.Path + "\n")
		writeRows(&b, t.Items, "  ", -1)
	case Change:
		fmt.Fprintf(&b, "%s %s\n", t.Op, t.Path)
		writeRows(&b, t.Items, "  ", -1)
	case Push:
		items, err := json.Marshal(model.CloneList(t.Items))
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%d\t%s\t%s\n", t.Seq, t.Path, items)
	case []string:
		writeRows(&b, t, "", -1)
	default:
		return WriteJSON(w, v, false)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeState(b *strings.Builder, s model.State) {
	current := -1
	if s.Selected {
		for i, p := range s.Projects {
			if p == s.CurrentProject {
				current = i
				break
			}
		}
	}
	b.WriteString("Projects\n")
	writeRows(b, s.Projects, "  ", current)
	if !s.Selected {
		b.WriteString("\nNo project selected\n")
		return
	}
	fmt.Fprintf(b, "\nTasks for %q\n", s.CurrentProject)
	writeRows(b, s.Tasks, "  ", -1)
}

// writeRows prints "index  item" lines; the row at mark gets a leading '*'.
func writeRows(b *strings.Builder, items []string, indent string, mark int) {
	if len(items) == 0 {
		b.WriteString(indent + "(empty)\n")
		return
	}
	width := len(fmt.Sprint(len(items) - 1))
	for i, it := range items {
		prefix := " "
		if i == mark {
			prefix = "*"
		}
		fmt.Fprintf(b, "%s%s%*d  %s\n", indent, prefix, width, i, it)
	}
}
