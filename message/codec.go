package message

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// The JSON mapping of a message is an object with four optional fields:
//
//	header    object of string values (omitted when empty)
//	body      string (omitted when empty)
//	text      boolean, true for text bodies
//	encoding  "+"-separated transformations applied to the body
//
// The encoding tokens are "base64" (binary-safe embedding), "utf8"
// (text was UTF-8 encoded before compression) and "zlib" (compression).
// Tokens are emitted in the fixed order base64+utf8+zlib and treated as
// a set when decoding; decoding undoes base64, then zlib, then utf8.

// Compression algorithms accepted by EncodeOptions.
const (
	CompressionZlib = "zlib"
)

// Encoding tokens used in the "encoding" field.
const (
	encBase64 = "base64"
	encUTF8   = "utf8"
	encZlib   = "zlib"
)

// A compressed body is kept only when smaller than 9/10 of the
// original.
const compressionNum, compressionDen = 9, 10

// EncodeOptions controls the JSON mapping of a message.
type EncodeOptions struct {
	// Compression selects an optional body compression. Only
	// CompressionZlib is supported. Compression is kept only when it
	// shrinks the body below 90% of its original size.
	Compression string
}

// Jsonify transforms the message into a JSON-compatible map.
// Empty header and empty body are omitted, so an empty message maps
// to {}.
func (m *Message) Jsonify(opts EncodeOptions) (map[string]any, error) {
	if opts.Compression != "" && opts.Compression != CompressionZlib {
		return nil, fmt.Errorf("unsupported compression type: %s", opts.Compression)
	}

	obj := make(map[string]any)
	if len(m.Header) > 0 {
		header := make(map[string]string, len(m.Header))
		for k, v := range m.Header {
			header[k] = v
		}
		obj["header"] = header
	}

	if m.Text {
		obj["text"] = true
		if !utf8.Valid(m.Body) {
			return nil, fmt.Errorf("text body is not valid UTF-8")
		}
		if len(m.Body) == 0 {
			return obj, nil
		}
		if opts.Compression == CompressionZlib {
			compressed := zlibCompress(m.Body)
			if shrankEnough(len(compressed), len(m.Body)) {
				obj["body"] = base64.StdEncoding.EncodeToString(compressed)
				obj["encoding"] = strings.Join([]string{encBase64, encUTF8, encZlib}, "+")
				return obj, nil
			}
		}
		obj["body"] = string(m.Body)
		return obj, nil
	}

	if len(m.Body) == 0 {
		return obj, nil
	}

	body := m.Body
	var tokens []string
	if opts.Compression == CompressionZlib {
		compressed := zlibCompress(body)
		if shrankEnough(len(compressed), len(body)) {
			body = compressed
			tokens = append(tokens, encZlib)
		}
	}
	if !isASCII(body) {
		body = []byte(base64.StdEncoding.EncodeToString(body))
		tokens = append([]string{encBase64}, tokens...)
	}
	obj["body"] = string(body)
	if len(tokens) > 0 {
		obj["encoding"] = strings.Join(tokens, "+")
	}
	return obj, nil
}

// Stringify transforms the message into its JSON string representation.
func (m *Message) Stringify(opts EncodeOptions) (string, error) {
	obj, err := m.Jsonify(opts)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	return string(data), nil
}

// Serialize transforms the message into the UTF-8 bytes of its
// stringified representation, suitable for storage on disk or the wire.
func (m *Message) Serialize(opts EncodeOptions) ([]byte, error) {
	s, err := m.Stringify(opts)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Dejsonify builds a message from a JSON-compatible map, undoing any
// body encodings. Missing fields default to empty/false.
func Dejsonify(obj map[string]any) (*Message, error) {
	if obj == nil {
		return nil, fmt.Errorf("expecting a json object")
	}

	text := truthy(obj["text"])

	header, err := headerFrom(obj["header"])
	if err != nil {
		return nil, err
	}

	body, err := bodyBytes(obj["body"])
	if err != nil {
		return nil, err
	}

	tokens := encodingSet(obj["encoding"])
	if tokens[encBase64] {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 body: %w", err)
		}
		body = decoded
	}
	if tokens[encZlib] {
		body, err = zlibDecompress(body)
		if err != nil {
			return nil, fmt.Errorf("invalid zlib body: %w", err)
		}
	}

	if text && !utf8.Valid(body) {
		return nil, fmt.Errorf("text body is not valid UTF-8")
	}
	return &Message{Header: header, Body: body, Text: text}, nil
}

// Destringify builds a message from its JSON string representation.
func Destringify(s string) (*Message, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("not a valid json string: %w", err)
	}
	return Dejsonify(obj)
}

// Deserialize builds a message from its serialized (UTF-8 JSON) form.
func Deserialize(data []byte) (*Message, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("not a valid UTF-8 binary string")
	}
	return Destringify(string(data))
}

// headerFrom accepts the header in either decoded-JSON form
// (map[string]any) or already-typed form (map[string]string).
func headerFrom(v any) (map[string]string, error) {
	switch h := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		header := make(map[string]string, len(h))
		for k, val := range h {
			header[k] = val
		}
		return header, nil
	case map[string]any:
		header := make(map[string]string, len(h))
		for k, val := range h {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("header field %q is not a string", k)
			}
			header[k] = s
		}
		return header, nil
	default:
		return nil, fmt.Errorf("header is not an object")
	}
}

// bodyBytes accepts the body as a string or raw bytes.
func bodyBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		return nil, fmt.Errorf("body is not a string")
	}
}

// truthy reads the "text" flag the way dynamic-language producers
// write it: any non-empty, non-zero value counts as true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// encodingSet parses the "+"-separated encoding field into a set.
func encodingSet(v any) map[string]bool {
	tokens := make(map[string]bool)
	s, ok := v.(string)
	if !ok || s == "" {
		return tokens
	}
	for _, tok := range strings.Split(s, "+") {
		tokens[tok] = true
	}
	return tokens
}

func shrankEnough(compressed, original int) bool {
	return compressed*compressionDen < original*compressionNum
}

func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func zlibDecompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b > 0x7f {
			return false
		}
	}
	return true
}
