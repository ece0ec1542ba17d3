package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// newEncoder returns an encoder that leaves &, < and > alone so extracted
// URLs and markup stay readable.
func newEncoder(w io.Writer, indent string) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc
}

// JSONWriter collects items and writes them as one JSON array on Flush.
// A single result is still an array, so consumers see one shape.
type JSONWriter struct {
	buf    *bufio.Writer
	indent string
	items  []any
	done   bool
}

// NewJSONWriter creates a JSON writer. indent is used only when pretty is
// set.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	jw := &JSONWriter{buf: bufio.NewWriter(w), items: []any{}}
	if pretty {
		jw.indent = indent
	}
	return jw
}

func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

func (w *JSONWriter) WriteAll(data []any) error {
	w.items = append(w.items, data...)
	return nil
}

// Flush writes the array the first time it is called; later calls only
// flush the buffer.
func (w *JSONWriter) Flush() error {
	if !w.done {
		if err := newEncoder(w.buf, w.indent).Encode(w.items); err != nil {
			return err
		}
		w.done = true
	}
	return w.buf.Flush()
}

func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter streams one JSON document per line.
type JSONLWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriter(w)
	return &JSONLWriter{buf: buf, enc: newEncoder(buf, "")}
}

// Write encodes data on its own line and flushes, so a long crawl is
// visible as it progresses.
func (w *JSONLWriter) Write(data any) error {
	if err := w.enc.Encode(data); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *JSONLWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.enc.Encode(item); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

func (w *JSONLWriter) Flush() error {
	return w.buf.Flush()
}

func (w *JSONLWriter) Close() error {
	return w.Flush()
}
