package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type detailKind int

const (
	detailNone detailKind = iota
	detailList
	detailText
	detailObject
)

// DetailItem is one entry of a list-shaped detail, as produced by request
// validation on the backend.
type DetailItem struct {
	Msg  string `json:"msg"`
	Loc  []any  `json:"loc,omitempty"`
	Type string `json:"type,omitempty"`
}

// Detail is the polymorphic `detail` field of an error body: a string,
// a list of {msg} objects or an arbitrary object.
type Detail struct {
	kind   detailKind
	Text   string
	Items  []DetailItem
	Object map[string]any
}

// UnmarshalJSON decodes whichever shape the backend sent. Unknown shapes
// leave the detail empty rather than failing the whole response.
func (d *Detail) UnmarshalJSON(b []byte) error {
	*d = Detail{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	switch b[0] {
	case '"':
		if err := json.Unmarshal(b, &d.Text); err == nil {
			d.kind = detailText
		}
	case '[':
		if err := json.Unmarshal(b, &d.Items); err == nil {
			d.kind = detailList
		}
	case '{':
		if err := json.Unmarshal(b, &d.Object); err == nil {
			d.kind = detailObject
		}
	}
	return nil
}

// Message flattens the detail into one display string.
func (d Detail) Message() string {
	switch d.kind {
	case detailList:
		msgs := make([]string, 0, len(d.Items))
		for _, it := range d.Items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	case detailText:
		return d.Text
	case detailObject:
		for _, key := range []string{"msg", "message", "detail"} {
			if s, ok := d.Object[key].(string); ok && s != "" {
				return s
			}
		}
		b, err := json.Marshal(d.Object)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

type errorBody struct {
	Detail Detail `json:"detail"`
}

// Error is a non-2xx response from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Detail     Detail
}

func (e *Error) Error() string {
	if msg := e.Detail.Message(); msg != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Message extracts the user-facing text of a failed call: the backend
// detail when present, then the transport error's own message, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.Detail.Message(); msg != "" {
			return msg
		}
		return fallback
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if msg := urlErr.Err.Error(); msg != "" {
			return msg
		}
	}

	return fallback
}
