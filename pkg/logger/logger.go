package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// New returns a stdlib-backed logger with a component prefix.
func New(component string) *log.Logger {
	return NewWithWriter(component, os.Stdout)
}

// NewWithWriter is New with an explicit destination, used by tests.
func NewWithWriter(component string, w io.Writer) *log.Logger {
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(w, prefix, log.LstdFlags)
}
