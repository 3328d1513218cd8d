package httputil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// ProcessSSEStream reads server-sent events from io.Reader and invokes the callback for each 'data:' payload
func ProcessSSEStream(r io.Reader, onData func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	prefix := []byte("data: ")

	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")

		// Skip empty lines
		if len(line) == 0 {
			continue
		}

		// Stop if data is [DONE]
		if bytes.Equal(line, []byte("data: [DONE]")) {
			break
		}

		if bytes.HasPrefix(line, prefix) {
			payload := bytes.TrimPrefix(line, prefix)
			if err := onData(payload); err != nil {
				return err
			}
		}
	}

	return scanner.Err()
}

// WriteSSEHeaders sets the standard event-stream response headers.
func WriteSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// WriteSSEData writes one data frame carrying v as JSON, flushing if the
// writer supports it. Frames use CRLF pairs to match the wire contract.
func WriteSSEData(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\r\n\r\n")); err != nil {
		return err
	}
	flush(w)
	return nil
}

// WriteSSEDone writes the terminal [DONE] sentinel frame.
func WriteSSEDone(w io.Writer) error {
	if _, err := w.Write([]byte("data: [DONE]\r\n\r\n")); err != nil {
		return err
	}
	flush(w)
	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
