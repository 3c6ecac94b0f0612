package receivers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackSenderSignsAndRetries(t *testing.T) {
	var calls int32
	var got callbackBody
	var signature, timestamp string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		signature = r.Header.Get("X-Bork-Signature")
		timestamp = r.Header.Get("X-Bork-Timestamp")
		assert.Equal(t, "sha256="+generateSha256HMAC(timestamp, body, "s3cret"), signature)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewCallbackSender(bork.CallbackConfig{Path: srv.URL, HMACSecret: "s3cret"})
	msg := bork.BusMessage{EventType: bork.MSG_COMPLETE, ID: "ev1", Message: json.RawMessage(`{"message_id":"42"}`)}
	require.NoError(t, s.post(context.Background(), msg))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "MSG", got.Type)
	assert.Equal(t, "COMPLETE", got.Event)
	assert.Equal(t, "ev1", got.ID)
	assert.JSONEq(t, `{"message_id":"42"}`, string(got.Message))
	assert.NotEmpty(t, timestamp)
}

func TestCallbackSenderGivesUpOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewCallbackSender(bork.CallbackConfig{Path: srv.URL})
	err := s.post(context.Background(), bork.BusMessage{EventType: bork.SYS_ERR, ID: "x", Message: json.RawMessage(`{}`)})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHMACEmptySecret(t *testing.T) {
	assert.Equal(t, "", generateSha256HMAC("1", []byte("x"), ""))
}

func TestEventTypes(t *testing.T) {
	types := eventTypes(logger.NewSublogger("test"), []string{"MSG", "SYS", "NOPE"})
	require.Len(t, types, 2)
	assert.Equal(t, "MSG", types[0].Type())
	assert.Equal(t, "SYS", types[1].Type())
}

func TestEventLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := newEventLogger(&buf)
	started, stopped, stop := make(chan bool, 1), make(chan bool, 1), make(chan context.Context, 1)
	require.NoError(t, l.Run(started, stopped, stop))
	<-started

	l.GetChan() <- bork.BusMessage{EventType: bork.MSG_ADMITTED, ID: "abc", Message: json.RawMessage(`{"a":1}`)}
	l.GetChan() <- bork.BusMessage{EventType: bork.SYS_POLL, ID: "def", Message: json.RawMessage(`{}`)}
	stop <- context.Background()
	<-stopped

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "MSG:ADMITTED", first["msg"])
	assert.Equal(t, "abc", first["id"])
	assert.Equal(t, "ADMITTED", first["event"])
	assert.Equal(t, `{"a":1}`, first["payload"])
	assert.Contains(t, string(lines[1]), `"msg":"SYS:POLL"`)
}
