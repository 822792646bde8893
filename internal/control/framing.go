package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The control channel accepts two wire framings and answers in whichever one
// the first request used: Content-Length headers for programmatic launchers,
// or one JSON document per line for a human driving the process from a
// terminal.

// maxFramePayload bounds a single command; no legitimate playlist or queue
// assignment approaches it.
const maxFramePayload = 4 << 20

func readFrame(r *bufio.Reader) (payload []byte, lineFramed bool, err error) {
	first, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && first == "" {
			return nil, false, io.EOF
		}
		return nil, false, err
	}
	if looksLikeJSON(first) {
		payload, err = readLineFrame(r, first)
		return payload, true, err
	}
	payload, err = readHeaderFrame(r, first)
	return payload, false, err
}

func looksLikeJSON(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// readLineFrame accumulates lines until they form one valid JSON document,
// so a pretty-printed request spread over several lines still parses.
func readLineFrame(r *bufio.Reader, first string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(first)
	for {
		if doc := bytes.TrimSpace(buf.Bytes()); json.Valid(doc) {
			return doc, nil
		}
		if buf.Len() > maxFramePayload {
			return nil, fmt.Errorf("line frame exceeds %d bytes", maxFramePayload)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
	}
}

// readHeaderFrame consumes header lines up to the blank separator, then reads
// exactly Content-Length bytes of payload. Blank lines ahead of the first
// header are tolerated.
func readHeaderFrame(r *bufio.Reader, first string) ([]byte, error) {
	contentLength := -1
	sawHeader := false
	line := first
	for {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if sawHeader {
				break
			}
		} else {
			sawHeader = true
			if key, value, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(key, "Content-Length") {
				n, parseErr := strconv.Atoi(strings.TrimSpace(value))
				if parseErr != nil {
					return nil, fmt.Errorf("invalid Content-Length: %w", parseErr)
				}
				if n > maxFramePayload {
					return nil, fmt.Errorf("frame of %d bytes exceeds the %d byte limit", n, maxFramePayload)
				}
				contentLength = n
			}
		}
		var err error
		line, err = r.ReadString('\n')
		if err != nil {
			return nil, err
		}
	}
	if contentLength < 0 {
		return nil, errors.New("missing Content-Length header")
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeHeaderFrame(w *bufio.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeLineFrame(w *bufio.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
