package ideogram

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// RequestLog appends indented JSON entries, separated by a blank line, to a
// single file. Appends from concurrent jobs are serialized.
type RequestLog struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// RequestLogEntry is one appended record.
type RequestLogEntry struct {
	Timestamp    time.Time `json:"Timestamp"`
	Request      Request   `json:"Request"`
	Response     *Response `json:"Response"`
	ErrorMessage string    `json:"ErrorMessage,omitempty"`
	StatusCode   int       `json:"StatusCode,omitempty"`
}

// NewRequestLog returns a log writing to path. The file is created on the
// first append.
func NewRequestLog(path string) *RequestLog {
	return &RequestLog{path: path, now: time.Now}
}

// Path returns the file the log appends to.
func (l *RequestLog) Path() string { return l.path }

// Append writes one entry. apiErr may be nil.
func (l *RequestLog) Append(req Request, resp *Response, apiErr *APIError) error {
	entry := RequestLogEntry{
		Timestamp: l.now().UTC(),
		Request:   req,
		Response:  resp,
	}
	if apiErr != nil {
		entry.ErrorMessage = apiErr.Body
		entry.StatusCode = apiErr.StatusCode
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("ideogram: encode log entry: %w", err)
	}
	data = append(data, '\n', '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("ideogram: open request log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("ideogram: write request log: %w", err)
	}
	return nil
}
