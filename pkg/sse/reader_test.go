package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderParsesEvents(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"id: 1\nevent: notification\ndata: {\"id\":\"n1\"}\n\n" +
		"data: line one\ndata: line two\n\n" +
		"event: ping\n"
	r := NewReader(strings.NewReader(stream))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "1", Event: "notification", Data: `{"id":"n1"}`}, first)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", second.Data)

	third, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", third.Event)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestConsumeStopsOnHandlerError(t *testing.T) {
	stream := "data: a\n\ndata: b\n\ndata: c\n\n"
	stop := errors.New("stop")
	var seen []string
	err := Consume(context.Background(), strings.NewReader(stream), func(ev Event) error {
		seen = append(seen, ev.Data)
		if ev.Data == "b" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestConsumeHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Consume(ctx, strings.NewReader("data: a\n\n"), func(Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
