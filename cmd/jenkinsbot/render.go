package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
)

// answerWriter prints answers, rendering markdown on terminals.
type answerWriter struct {
	out      io.Writer
	markdown bool
}

func newAnswerWriter(out io.Writer, raw bool) *answerWriter {
	w := &answerWriter{out: out}
	if f, ok := out.(*os.File); ok && !raw {
		w.markdown = isatty.IsTerminal(f.Fd())
	}
	return w
}

func (w *answerWriter) Print(answer string) error {
	if w.markdown {
		if styled, err := glamour.Render(answer, "dark"); err == nil {
			_, err = io.WriteString(w.out, styled)
			return err
		}
	}
	_, err := fmt.Fprintln(w.out, answer)
	return err
}
