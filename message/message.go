// Package message provides the courier message abstraction: a header of
// unique key/value text pairs plus a body that is either text (Unicode)
// or binary (raw bytes). Messages have a portable JSON mapping so they
// can be exchanged with programs written in other languages; see codec.go
// for the jsonify/stringify/serialize pipeline.
package message

import (
	"bytes"
	"crypto/md5" //nolint:gosec // G501: checksum is for dedup/integrity, not security
	"encoding/hex"
	"fmt"
	"sort"
)

// Message is a header plus a text or binary body.
// The zero value is an empty binary message.
type Message struct {
	// Header holds the message header fields. Keys are unique.
	Header map[string]string

	// Body holds the body bytes. For text messages these are the UTF-8
	// encoding of the text.
	Body []byte

	// Text reports whether the body is a text string rather than a
	// binary string.
	Text bool
}

// New returns an empty binary message.
func New() *Message {
	return &Message{}
}

// NewText returns a text message with the given body.
func NewText(body string) *Message {
	return &Message{Body: []byte(body), Text: true}
}

// NewBinary returns a binary message with the given body.
// The slice is used as-is, not copied.
func NewBinary(body []byte) *Message {
	return &Message{Body: body}
}

// SetHeader sets a single header field, allocating the map if needed.
func (m *Message) SetHeader(key, value string) {
	if m.Header == nil {
		m.Header = make(map[string]string)
	}
	m.Header[key] = value
}

// BodyString returns the body as a string.
func (m *Message) BodyString() string {
	return string(m.Body)
}

// Size returns an approximation of the message size: the body length
// plus one, plus key+value+2 for each header field.
func (m *Message) Size() int {
	size := len(m.Body) + 1
	for k, v := range m.Header {
		size += len(k) + len(v) + 2
	}
	return size
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := &Message{Text: m.Text}
	if m.Header != nil {
		c.Header = make(map[string]string, len(m.Header))
		for k, v := range m.Header {
			c.Header[k] = v
		}
	}
	if m.Body != nil {
		c.Body = make([]byte, len(m.Body))
		copy(c.Body, m.Body)
	}
	return c
}

// Checksum returns the md5 hex checksum of the message. It covers the
// text flag, the header (as sorted "key:value" lines) and the body, so
// two messages with equal content have equal checksums regardless of
// header insertion order.
func (m *Message) Checksum() string {
	keys := make([]string, 0, len(m.Header))
	for k := range m.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var hdr bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&hdr, "%s:%s\n", k, m.Header[k])
	}
	headerSum := md5hex(hdr.Bytes())
	bodySum := md5hex(m.Body)

	text := 0
	if m.Text {
		text = 1
	}
	return md5hex([]byte(fmt.Sprintf("%d%s%s", text, headerSum, bodySum)))
}

// Equal reports whether two messages have the same text flag, body and
// header contents.
func (m *Message) Equal(other *Message) bool {
	if other == nil {
		return false
	}
	if m.Text != other.Text || !bytes.Equal(m.Body, other.Body) {
		return false
	}
	if len(m.Header) != len(other.Header) {
		return false
	}
	for k, v := range m.Header {
		if ov, ok := other.Header[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String returns the stringified message, or a diagnostic on encode
// failure. Implements fmt.Stringer.
func (m *Message) String() string {
	s, err := m.Stringify(EncodeOptions{})
	if err != nil {
		return fmt.Sprintf("message(invalid: %v)", err)
	}
	return s
}

func md5hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // G401: see package note on md5
	return hex.EncodeToString(sum[:])
}
