package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

// detailWidth is the column at which Format wraps the detail paragraph.
const detailWidth = 70

// sgr is an ANSI select-graphic-rendition sequence.
type sgr string

const (
	sgrReset  sgr = "\033[0m"
	sgrBold   sgr = "\033[1m"
	sgrRed    sgr = "\033[31m"
	sgrGreen  sgr = "\033[32m"
	sgrYellow sgr = "\033[33m"
	sgrCyan   sgr = "\033[36m"
	sgrGray   sgr = "\033[90m"
)

var noColor atomic.Bool

// SetColor turns ANSI styling of formatted errors on or off.
func SetColor(enabled bool) {
	noColor.Store(!enabled)
}

func paint(text string, styles ...sgr) string {
	if noColor.Load() || len(styles) == 0 {
		return text
	}
	var b strings.Builder
	for _, s := range styles {
		b.WriteString(string(s))
	}
	b.WriteString(text)
	b.WriteString(string(sgrReset))
	return b.String()
}

// Format renders the error as a multi-line block for an operator's terminal:
// a header with the code, then the setting, cause, detail and hint when set.
func (e *PlaceError) Format() string {
	var b strings.Builder

	header := "ERROR: "
	if e.Code != "" {
		header = "ERROR " + e.Code + ": "
	}
	fmt.Fprintf(&b, "\n%s%s\n\n", paint(header, sgrBold, sgrRed), paint(e.Message, sgrBold))

	if e.Field != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", paint("Setting: ", sgrGray), paint(e.Field, sgrCyan))
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s\n\n", paint(e.Wrapped.Error(), sgrYellow))
	}
	if lines := wrap(e.Detail, detailWidth); len(lines) > 0 {
		for _, line := range lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", paint("Hint: ", sgrGreen), e.Suggestion)
	}
	return b.String()
}

// FormatCompact renders the error on one line without styling.
func (e *PlaceError) FormatCompact() string {
	parts := make([]string, 0, 3)
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)
	if e.Wrapped != nil {
		parts = append(parts, e.Wrapped.Error())
	}
	return strings.Join(parts, ": ")
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Field      string   `json:"field,omitempty"`
	Cause      string   `json:"cause,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// FormatJSON renders the error as a JSON object.
func (e *PlaceError) FormatJSON() string {
	je := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Field:      e.Field,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		je.Cause = e.Wrapped.Error()
	}
	out, err := json.Marshal(je)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(out)
}

// wrap breaks text into lines of at most width bytes at word boundaries.
// A single word longer than width gets a line to itself.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	lines := []string{words[0]}
	for _, word := range words[1:] {
		last := &lines[len(lines)-1]
		if len(*last)+1+len(word) > width {
			lines = append(lines, word)
			continue
		}
		*last += " " + word
	}
	return lines
}

// PrintError writes err to stderr using Fprint.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}

// Fprint writes err to w. Errors carrying a PlaceError get the full Format
// block; anything else is printed on one line.
func Fprint(w io.Writer, err error) {
	if pe := (*PlaceError)(nil); stderrors.As(err, &pe) {
		_, _ = io.WriteString(w, pe.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", paint("ERROR:", sgrBold, sgrRed), err)
}
