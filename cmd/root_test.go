package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"subject=greeting", "reply-to=a@b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"subject":  "greeting",
		"reply-to": "a@b",
	}, headers)
}

func TestParseHeaders_ValueMayContainEquals(t *testing.T) {
	headers, err := parseHeaders([]string{"query=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", headers["query"])
}

func TestParseHeaders_Empty(t *testing.T) {
	headers, err := parseHeaders(nil)
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestParseHeaders_Invalid(t *testing.T) {
	_, err := parseHeaders([]string{"no-separator"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")

	_, err = parseHeaders([]string{"=value"})
	require.Error(t, err)
}

func TestReadBody_FromArgument(t *testing.T) {
	addFile = ""
	body, err := readBody(strings.NewReader("unused"), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
}

func TestReadBody_FromStdin(t *testing.T) {
	addFile = ""
	body, err := readBody(strings.NewReader("piped body"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("piped body"), body)
}

func TestReadBody_DashMeansStdin(t *testing.T) {
	addFile = "-"
	defer func() { addFile = "" }()

	body, err := readBody(strings.NewReader("dash body"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("dash body"), body)
}

func TestReadBody_ArgumentAndFileConflict(t *testing.T) {
	addFile = "some.txt"
	defer func() { addFile = "" }()

	_, err := readBody(strings.NewReader(""), []string{"body"})
	require.Error(t, err)
}
