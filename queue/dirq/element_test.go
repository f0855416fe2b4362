package dirq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/message"
)

func TestElement_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	msg := message.NewText("hello")
	msg.SetHeader("subject", "greeting")
	msg.SetHeader("reply-to", "someone")

	require.NoError(t, writeElement(dir, msg))

	got, err := readElement(dir)
	require.NoError(t, err)
	assert.True(t, msg.Equal(got))
}

func TestElement_EmptyMessage(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, writeElement(dir, message.New()))

	got, err := readElement(dir)
	require.NoError(t, err)
	assert.Nil(t, got.Header)
	assert.Nil(t, got.Body)
	assert.False(t, got.Text)
}

func TestElement_TextMarker(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, writeElement(dir, message.NewText("hi")))
	_, err := os.Stat(filepath.Join(dir, textFile))
	assert.NoError(t, err)

	dir = t.TempDir()
	require.NoError(t, writeElement(dir, message.NewBinary([]byte("hi"))))
	_, err = os.Stat(filepath.Join(dir, textFile))
	assert.True(t, os.IsNotExist(err))
}

func TestEncodeHeader_SortedAndEscaped(t *testing.T) {
	header := map[string]string{
		"zeta":  "last",
		"alpha": "first",
		"multi": "line1\nline2\tand\\slash",
	}

	encoded := string(encodeHeader(header))
	assert.Equal(t,
		"alpha\tfirst\n"+
			"multi\tline1\\nline2\\tand\\\\slash\n"+
			"zeta\tlast\n",
		encoded)
}

func TestDecodeHeader_RoundTrip(t *testing.T) {
	header := map[string]string{
		"plain":   "value",
		"tricky":  "tab\there\nnewline",
		"slashes": `a\b\\c`,
	}

	decoded, err := decodeHeader(encodeHeader(header))
	require.NoError(t, err)
	assert.Equal(t, header, decoded)
}

func TestDecodeHeader_Empty(t *testing.T) {
	decoded, err := decodeHeader(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeHeader_Malformed(t *testing.T) {
	_, err := decodeHeader([]byte("no-tab-separator\n"))
	assert.Error(t, err)
}

func TestUnescapeField_Errors(t *testing.T) {
	_, err := unescapeField(`dangling\`)
	assert.Error(t, err)

	_, err = unescapeField(`unknown\x`)
	assert.Error(t, err)
}
