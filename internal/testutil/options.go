package testutil

import "github.com/courier-mq/courier/message"

// MessageOption configures a message built by the Builder.
type MessageOption func(*message.Message)

// WithHeader sets a header on the message.
func WithHeader(key, value string) MessageOption {
	return func(m *message.Message) {
		m.SetHeader(key, value)
	}
}

// WithBinaryBody replaces the body with raw bytes.
func WithBinaryBody(body []byte) MessageOption {
	return func(m *message.Message) {
		m.Body = body
		m.Text = false
	}
}
