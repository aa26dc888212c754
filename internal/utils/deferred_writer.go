package utils

import (
	"bytes"
	"errors"
	"io"
)

// ErrShortWrite indicates the destination accepted fewer bytes than the buffered content.
var ErrShortWrite = errors.New("destination accepted a partial write")

// DeferredWriter collects output and hands it to the destination in a single write on Flush,
// so a rendered document never interleaves with diagnostics written to the same terminal.
type DeferredWriter struct {
	destination io.Writer
	buffer      bytes.Buffer
}

// NewDeferredWriter wraps destination. A nil destination yields nil.
func NewDeferredWriter(destination io.Writer) *DeferredWriter {
	if destination == nil {
		return nil
	}
	return &DeferredWriter{destination: destination}
}

// Write buffers data.
func (deferredWriter *DeferredWriter) Write(data []byte) (int, error) {
	return deferredWriter.buffer.Write(data)
}

// Flush writes the buffered content and flushes the destination when it supports flushing.
func (deferredWriter *DeferredWriter) Flush() error {
	if deferredWriter.buffer.Len() == 0 {
		return nil
	}
	content := deferredWriter.buffer.Bytes()
	bytesWritten, writeError := deferredWriter.destination.Write(content)
	deferredWriter.buffer.Reset()
	if writeError != nil {
		return writeError
	}
	if bytesWritten < len(content) {
		return ErrShortWrite
	}
	if flushableWriter, implementsFlush := deferredWriter.destination.(interface{ Flush() error }); implementsFlush {
		return flushableWriter.Flush()
	}
	return nil
}
