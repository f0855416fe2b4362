package dirq

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/courier-mq/courier/message"
)

const filePerm = 0o644

// writeElement lays out a message inside an element directory: the
// header as escaped tab-separated lines, the body verbatim, and a
// marker file for text bodies.
func writeElement(dir string, msg *message.Message) error {
	if err := os.WriteFile(filepath.Join(dir, headerFile), encodeHeader(msg.Header), filePerm); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, bodyFile), msg.Body, filePerm); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	if msg.Text {
		if err := os.WriteFile(filepath.Join(dir, textFile), nil, filePerm); err != nil {
			return fmt.Errorf("writing text marker: %w", err)
		}
	}
	return nil
}

// readElement reconstructs a message from an element directory.
func readElement(dir string) (*message.Message, error) {
	headerData, err := os.ReadFile(filepath.Join(dir, headerFile))
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header, err := decodeHeader(headerData)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(filepath.Join(dir, bodyFile))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	text := false
	if _, err := os.Stat(filepath.Join(dir, textFile)); err == nil {
		text = true
	}
	if len(body) == 0 {
		body = nil
	}
	return &message.Message{Header: header, Body: body, Text: text}, nil
}

// encodeHeader renders the header as sorted "key<TAB>value" lines.
// Tabs, newlines and backslashes in keys or values are escaped.
func encodeHeader(header map[string]string) []byte {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(escapeField(k))
		sb.WriteByte('\t')
		sb.WriteString(escapeField(header[k]))
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

func decodeHeader(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	header := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		rawKey, rawValue, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed header line: %q", line)
		}
		key, err := unescapeField(rawKey)
		if err != nil {
			return nil, fmt.Errorf("malformed header key: %w", err)
		}
		value, err := unescapeField(rawValue)
		if err != nil {
			return nil, fmt.Errorf("malformed header value: %w", err)
		}
		header[key] = value
	}
	return header, nil
}

var fieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
)

func escapeField(s string) string {
	return fieldEscaper.Replace(s)
}

func unescapeField(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		switch s[i] {
		case '\\':
			sb.WriteByte('\\')
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		default:
			return "", fmt.Errorf("unknown escape \\%c in %q", s[i], s)
		}
	}
	return sb.String(), nil
}
