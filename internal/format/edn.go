package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// WriteEDN writes an EDN rendering of v.
//
// Values go through encoding/json first so struct tags decide key names; the
// encoder then only has to handle maps, vectors, strings, numbers, booleans
// and nil.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}

	e := ednEncoder{pretty: pretty, indent: 2}
	e.value(x, 0)
	e.buf.WriteByte('\n')
	_, err = w.Write(e.buf.Bytes())
	return err
}

type ednEncoder struct {
	buf    bytes.Buffer
	pretty bool
	indent int
}

func (e *ednEncoder) value(v any, level int) {
	switch t := v.(type) {
	case nil:
		e.buf.WriteString("nil")
	case bool:
		e.buf.WriteString(strconv.FormatBool(t))
	case string:
		e.str(t)
	case json.Number:
		e.buf.WriteString(t.String())
	case []any:
		e.seq('[', ']', len(t), level, func(i int) { e.value(t[i], level+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.seq('{', '}', len(keys), level, func(i int) {
			e.buf.WriteByte(':')
			e.buf.WriteString(keyword(keys[i]))
			e.buf.WriteByte(' ')
			e.value(t[keys[i]], level+1)
		})
	default:
		e.str(fmt.Sprint(v))
	}
}

// seq writes n elements between open and close, one per line when pretty.
func (e *ednEncoder) seq(open, close byte, n, level int, elem func(i int)) {
	e.buf.WriteByte(open)
	if n == 0 {
		e.buf.WriteByte(close)
		return
	}
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			e.buf.WriteByte('\n')
			e.buf.WriteString(strings.Repeat(" ", (level+1)*e.indent))
		case i > 0:
			e.buf.WriteByte(' ')
		}
		elem(i)
	}
	if e.pretty {
		e.buf.WriteByte('\n')
		e.buf.WriteString(strings.Repeat(" ", level*e.indent))
	}
	e.buf.WriteByte(close)
}

// str writes an EDN string literal. EDN has no \x escapes, so control and
// invalid bytes become \uXXXX.
func (e *ednEncoder) str(s string) {
	e.buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			e.buf.WriteString(`\"`)
		case '\\':
			e.buf.WriteString(`\\`)
		case '\n':
			e.buf.WriteString(`\n`)
		case '\r':
			e.buf.WriteString(`\r`)
		case '\t':
			e.buf.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f || r == utf8.RuneError {
				fmt.Fprintf(&e.buf, `\u%04x`, r)
				continue
			}
			e.buf.WriteRune(r)
		}
	}
	e.buf.WriteByte('"')
}

func keyword(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, " ", "-")
}
