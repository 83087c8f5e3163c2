package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuilder_Build(t *testing.T) {
	payload := map[string]string{"book_id": "b1"}

	msg := NewMessage().
		WithKey("b1").
		WithValue(payload).
		WithEventType("book.created").
		WithSource("library").
		WithSchemaVersion("1").
		Build()

	assert.Equal(t, "b1", msg.Key)
	assert.Equal(t, "book.created", msg.GetEventType())
	assert.NotEmpty(t, msg.GetEventID(), "event id is generated when missing")
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])

	var decoded map[string]string
	require.NoError(t, msg.DecodeValue(&decoded))
	assert.Equal(t, "b1", decoded["book_id"])
}

func TestMessageBuilder_UnencodableValue(t *testing.T) {
	msg := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Empty(t, msg.Value)
}

func TestMessage_RetryCount(t *testing.T) {
	msg := Message{}
	assert.Equal(t, 0, msg.GetRetryCount())

	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
	assert.Equal(t, "12", msg.Headers[HeaderRetryCount])
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, ClassifyError(nil))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(NewTransientError("x", nil)))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(NewPermanentError("bad payload", nil)))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(errString("dial tcp: i/o Timeout")))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errString("something odd")))
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("broker down", nil)

	assert.True(t, ShouldRetry(transient, 0, 3))
	assert.False(t, ShouldRetry(transient, 3, 3))
	assert.False(t, ShouldRetry(NewPermanentError("bad", nil), 0, 3))
	assert.False(t, ShouldRetry(nil, 0, 3))
}

type errString string

func (e errString) Error() string { return string(e) }
