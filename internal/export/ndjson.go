package export

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// NDJSONWriter streams newline-delimited JSON objects to the underlying
// writer.
type NDJSONWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
}

// NewNDJSONWriter wraps w with a helper that writes newline-delimited
// JSON. If w supports http.Flusher, Flush is invoked after every write to
// push bytes to the client promptly.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	var flusher http.Flusher
	if f, ok := w.(http.Flusher); ok {
		flusher = f
	}
	return &NDJSONWriter{writer: w, flusher: flusher}
}

// WriteSnapshot writes one snapshot document as a single NDJSON record.
func (w *NDJSONWriter) WriteSnapshot(doc SnapshotDoc) error {
	return w.WriteObject(doc)
}

// WriteObject marshals v, writes it followed by a newline and flushes.
func (w *NDJSONWriter) WriteObject(v interface{}) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if _, err := w.writer.Write([]byte("\n")); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
