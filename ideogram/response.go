package ideogram

import (
	"fmt"
	"strings"
)

// Response is the decoded /generate reply.
type Response struct {
	Created string  `json:"created"`
	Data    []Image `json:"data"`
}

// Image is one generated picture. URLs expire; download promptly.
type Image struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	Resolution  string `json:"resolution"`
	IsImageSafe bool   `json:"is_image_safe"`
	Seed        int    `json:"seed"`
	StyleType   string `json:"style_type,omitempty"`
}

// First returns the first image or false when the reply carried none.
func (r *Response) First() (Image, bool) {
	if r == nil || len(r.Data) == 0 {
		return Image{}, false
	}
	return r.Data[0], true
}

// APIError is a non-2xx reply from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("ideogram: request failed with status %d: %s", e.StatusCode, body)
}

// Temporary reports whether the failure is worth retrying later (rate
// limiting or a server-side error). The dispatcher never retries on its
// own; callers layering retries on top of a Report can use this.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
