// ABOUTME: Raw terminal handling for single-keystroke triggers
// ABOUTME: Puts stdin in raw mode and fixes line endings for log output
package app

import (
	"bytes"
	"io"
	"log"
	"os"

	"golang.org/x/term"
)

// RawInput switches f to raw mode when it is a terminal. restore is never
// nil; ok reports whether raw mode was entered.
func RawInput(f *os.File) (restore func(), ok bool) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, false
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		log.Printf("Raw mode unavailable: %v", err)
		return func() {}, false
	}
	return func() {
		if err := term.Restore(fd, state); err != nil {
			log.Printf("Restore terminal: %v", err)
		}
	}, true
}

// CRLFWriter turns \n into \r\n, which a raw terminal no longer does
type CRLFWriter struct {
	W io.Writer
}

func (c CRLFWriter) Write(p []byte) (int, error) {
	if bytes.IndexByte(p, '\n') < 0 {
		return c.W.Write(p)
	}
	out := bytes.ReplaceAll(bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n"))
	if _, err := c.W.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
