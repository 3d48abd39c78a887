package main

import (
	"fmt"
	"io"
	"strings"
)

type health int

const (
	healthInfo health = iota
	healthGood
	healthDegraded
	healthDown
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const statusLabelWidth = 18

// statusPrinter writes the sectioned report behind `curator status`.
type statusPrinter struct {
	out   io.Writer
	color bool
}

func (p statusPrinter) section(title string) {
	title = strings.ToUpper(strings.TrimSpace(title))
	if p.color {
		title = ansiCyan + title + ansiReset
	}
	fmt.Fprintln(p.out, title)
}

func (p statusPrinter) line(label string, h health, value string) {
	fmt.Fprintln(p.out, formatStatusLine(label, h, value, p.color))
}

func formatStatusLine(label string, h health, value string, color bool) string {
	tag, code := healthTag(h)
	line := fmt.Sprintf("  %-*s %-6s %s", statusLabelWidth, label, tag, value)
	line = strings.TrimRight(line, " ")
	if color && code != "" {
		return code + line + ansiReset
	}
	return line
}

func healthTag(h health) (string, string) {
	switch h {
	case healthGood:
		return "ok", ansiGreen
	case healthDegraded:
		return "warn", ansiYellow
	case healthDown:
		return "down", ansiRed
	default:
		return "", ""
	}
}
