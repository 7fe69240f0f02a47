package tui

import (
	"os"
	"strings"
	"sync"
)

// Some fonts render box-drawing and bullet glyphs badly, so an ASCII set is
// available via TASKLIST_TUI_GLYPHS=ascii.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

func applyGlyphPreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TASKLIST_TUI_GLYPHS"))) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	defer glyphsMu.RUnlock()
	return currentGlyphs
}

func glyphCursor() string {
	if glyphs() == glyphSetASCII {
		return ">"
	}
	return "▸"
}

// glyphCurrent marks the project whose tasks are shown.
func glyphCurrent() string {
	if glyphs() == glyphSetASCII {
		return "*"
	}
	return "•"
}

func glyphHRule() string {
	if glyphs() == glyphSetASCII {
		return "-"
	}
	return "─"
}
