package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsEmptyBinary(t *testing.T) {
	m := New()
	assert.False(t, m.Text)
	assert.Empty(t, m.Body)
	assert.Empty(t, m.Header)
}

func TestNewText_SetsTextFlag(t *testing.T) {
	m := NewText("hello world")
	assert.True(t, m.Text)
	assert.Equal(t, "hello world", m.BodyString())
}

func TestSetHeader_AllocatesMap(t *testing.T) {
	m := New()
	m.SetHeader("subject", "test")
	m.SetHeader("message-id", "123")
	assert.Equal(t, "test", m.Header["subject"])
	assert.Equal(t, "123", m.Header["message-id"])
}

func TestSize_CountsBodyAndHeader(t *testing.T) {
	m := NewText("hello") // 5 + 1
	assert.Equal(t, 6, m.Size())

	m.SetHeader("ab", "cd") // + 2 + 2 + 2
	assert.Equal(t, 12, m.Size())
}

func TestClone_IsDeep(t *testing.T) {
	m := NewText("hello")
	m.SetHeader("subject", "test")

	c := m.Clone()
	require.True(t, m.Equal(c))

	c.Header["subject"] = "changed"
	c.Body[0] = 'H'
	assert.Equal(t, "test", m.Header["subject"])
	assert.Equal(t, "hello", m.BodyString())
}

func TestEqual(t *testing.T) {
	a := NewText("hello")
	a.SetHeader("subject", "test")

	b := NewText("hello")
	b.SetHeader("subject", "test")
	assert.True(t, a.Equal(b))

	b.SetHeader("extra", "x")
	assert.False(t, a.Equal(b))

	// Same bytes, different text flag.
	c := NewBinary([]byte("hello"))
	c.SetHeader("subject", "test")
	assert.False(t, a.Equal(c))

	assert.False(t, a.Equal(nil))
}

func TestChecksum_StableAcrossHeaderOrder(t *testing.T) {
	a := NewText("payload")
	a.SetHeader("one", "1")
	a.SetHeader("two", "2")

	b := NewText("payload")
	b.SetHeader("two", "2")
	b.SetHeader("one", "1")

	require.Len(t, a.Checksum(), 32)
	assert.Equal(t, a.Checksum(), b.Checksum())
}

func TestChecksum_SensitiveToContent(t *testing.T) {
	a := NewText("payload")
	b := NewText("payload!")
	assert.NotEqual(t, a.Checksum(), b.Checksum())

	// The text flag is part of the checksum even for identical bytes.
	c := NewBinary([]byte("payload"))
	assert.NotEqual(t, a.Checksum(), c.Checksum())
}

func TestString_IsStringified(t *testing.T) {
	m := NewText("hi")
	assert.Equal(t, `{"body":"hi","text":true}`, m.String())
}
