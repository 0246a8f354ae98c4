package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type checkState int

const (
	checkOK checkState = iota
	checkWarn
	checkFail
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const checkLabelWidth = 22

func (s checkState) label() string {
	switch s {
	case checkOK:
		return "OK"
	case checkWarn:
		return "WARN"
	default:
		return "FAIL"
	}
}

func (s checkState) color() string {
	switch s {
	case checkOK:
		return ansiGreen
	case checkWarn:
		return ansiYellow
	default:
		return ansiRed
	}
}

// stateFor maps a check outcome; optional failures only warn.
func stateFor(passed, optional bool) checkState {
	switch {
	case passed:
		return checkOK
	case optional:
		return checkWarn
	default:
		return checkFail
	}
}

func renderCheckLine(name string, state checkState, detail string, colorize bool) string {
	status := "[" + state.label() + "]"
	if detail != "" {
		status += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, name+":", status)
	if colorize {
		return state.color() + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
