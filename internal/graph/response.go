package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Response is a raw Graph API response.
type Response struct {
	Request    *Request
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Node is a decoded Graph node, e.g. a user or a page.
type Node map[string]any

// String returns the field as a string, or "" if it is absent or not a string.
func (n Node) String(field string) string {
	s, _ := n[field].(string)
	return s
}

// ID returns the node's "id" field.
func (n Node) ID() string {
	return n.String("id")
}

// JSON renders the node for logging.
func (n Node) JSON() string {
	data, err := json.Marshal(n)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeBody unmarshals the response body into v.
func (r *Response) DecodeBody(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &SDKError{Op: "decode response", Err: fmt.Errorf("%w (body: %s)", err, Truncate(string(r.Body), 200))}
	}
	return nil
}

// GraphNode decodes the body as a single node.
func (r *Response) GraphNode() (Node, error) {
	var node Node
	if err := r.DecodeBody(&node); err != nil {
		return nil, err
	}
	return node, nil
}

// GraphEdge decodes the body as an edge and returns its "data" items.
// Paging cursors are ignored; callers get the first page only.
func (r *Response) GraphEdge() ([]Node, error) {
	var edge struct {
		Data []Node `json:"data"`
	}
	if err := r.DecodeBody(&edge); err != nil {
		return nil, err
	}
	return edge.Data, nil
}

// Truncate returns at most n bytes of s, appending "..." if truncated. The
// cut never splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
