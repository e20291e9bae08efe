package confluence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// payloadKind classifies a response body by its content type. The
// classification happens once at decode time; each kind carries its
// own rendering rule for error messages.
type payloadKind int

const (
	payloadJSON payloadKind = iota
	payloadPlainText
	payloadHTML
	payloadOtherText
	payloadBinary
)

// classifyPayload maps a Content-Type header value to a payloadKind.
// An unparsable or empty content type is treated as binary.
func classifyPayload(contentType string) payloadKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return payloadBinary
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return payloadJSON
	case mediaType == "text/plain":
		return payloadPlainText
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return payloadHTML
	case strings.HasPrefix(mediaType, "text/"):
		return payloadOtherText
	default:
		return payloadBinary
	}
}

// errorMessage renders a non-2xx response body into a human-readable
// message according to the payload kind.
func (k payloadKind) errorMessage(contentType string, body []byte) string {
	switch k {
	case payloadPlainText, payloadOtherText:
		return strings.TrimSpace(string(body))
	case payloadJSON:
		return jsonErrorMessage(body)
	case payloadHTML:
		return htmlText(body)
	default:
		return fmt.Sprintf("%d-byte %s payload", len(body), contentType)
	}
}

// jsonErrorMessage extracts a message from the conventional
// error-carrying fields of a JSON error body: a "message" string, an
// "errorMessages" list, and an "errors" mapping. Bodies without any of
// those fields are passed through compacted.
func jsonErrorMessage(body []byte) string {
	var payload struct {
		Message       string            `json:"message"`
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	var parts []string
	if payload.Message != "" {
		parts = append(parts, payload.Message)
	}
	for _, m := range payload.ErrorMessages {
		if m != "" {
			parts = append(parts, m)
		}
	}
	if len(payload.Errors) > 0 {
		keys := make([]string, 0, len(payload.Errors))
		for k := range payload.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, payload.Errors[k]))
		}
	}

	if len(parts) == 0 {
		return strings.TrimSpace(string(body))
	}
	return strings.Join(parts, "; ")
}

// htmlText reduces an HTML body to its visible text content with
// whitespace collapsed. Unparsable HTML is passed through verbatim.
func htmlText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return strings.TrimSpace(string(body))
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}

// Response is a decoded 2xx API response.
type Response struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// ContentType is the Content-Type header as received.
	ContentType string

	// Raw is the response body as received.
	Raw []byte

	// JSON holds the decoded body for JSON responses.
	JSON any

	// Text holds the body verbatim for plain-text responses.
	Text string

	// Empty reports whether the response carried no body.
	Empty bool
}

// decodeResponse converts a 2xx status, content type and body into a
// Response. Empty bodies decode to an empty Response regardless of
// content type.
func decodeResponse(status int, contentType string, body []byte) (*Response, error) {
	resp := &Response{
		StatusCode:  status,
		ContentType: contentType,
		Raw:         body,
	}

	if len(body) == 0 {
		resp.Empty = true
		return resp, nil
	}

	switch classifyPayload(contentType) {
	case payloadJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, &DecodeError{ContentType: contentType, Err: err}
		}
		resp.JSON = v
		return resp, nil
	case payloadPlainText:
		resp.Text = string(body)
		return resp, nil
	default:
		return nil, &UnsupportedContentTypeError{ContentType: contentType}
	}
}
