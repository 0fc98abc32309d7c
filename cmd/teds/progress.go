package main

import (
	"fmt"
	"io"
)

// SimpleProgress prints one status line per step.
type SimpleProgress struct {
	writer  io.Writer
	enabled bool
}

func NewSimpleProgress(w io.Writer, enabled bool) *SimpleProgress {
	return &SimpleProgress{
		writer:  w,
		enabled: enabled,
	}
}

func (sp *SimpleProgress) Update(message string) {
	if !sp.enabled {
		return
	}
	fmt.Fprintf(sp.writer, "%s\n", message)
}
