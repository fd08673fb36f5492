// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/rigchat/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer upgrades and echoes every frame back once, then keeps the
// connection open until the client closes.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestOpen_SendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	frames := make(chan []byte, 1)
	closed := make(chan error, 1)

	ch, err := Open(context.Background(), wsURL(srv),
		func(data []byte) { frames <- data },
		func(err error) { closed <- err },
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ch.Close("test done")

	if state := ch.State(); state != model.ChannelOpen {
		t.Errorf("State() = %q, want open", state)
	}

	if err := ch.Send([]byte(`{"type":"chat"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case data := <-frames:
		if string(data) != `{"type":"chat"}` {
			t.Errorf("frame = %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}

func TestOpen_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// Nothing listens on this port.
	_, err := Open(ctx, "ws://127.0.0.1:1/stream", nil, func(error) {
		t.Error("onClose must not fire for a channel that never opened")
	})
	if err == nil {
		t.Fatal("Open() should fail when nothing is listening")
	}

	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Errorf("error type = %T, want *ChannelError", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	closed := make(chan error, 2)
	ch, err := Open(context.Background(), wsURL(srv), nil,
		func(err error) { closed <- err })
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ch.Close("first")
	ch.Close("second") // no-op

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("local close should report nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onClose never fired")
	}

	// onClose fires exactly once.
	select {
	case <-closed:
		t.Error("onClose fired more than once")
	case <-time.After(100 * time.Millisecond):
	}

	if state := ch.State(); state != model.ChannelClosed {
		t.Errorf("State() = %q, want closed", state)
	}
}

func TestSend_AfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ch, err := Open(context.Background(), wsURL(srv), nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ch.Close("done")

	if err := ch.Send([]byte("late")); err != ErrChannelClosed {
		t.Errorf("Send() after close = %v, want ErrChannelClosed", err)
	}
}

func TestAbnormalClose(t *testing.T) {
	// Server drops the TCP connection without a close handshake.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	closed := make(chan error, 1)
	_, err := Open(context.Background(), wsURL(srv), nil,
		func(err error) { closed <- err })
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	select {
	case err := <-closed:
		if err == nil {
			t.Error("abnormal close should report a non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onClose never fired")
	}
}

func TestFrameOrdering(t *testing.T) {
	// Server sends a numbered burst; frames must arrive in order.
	const n = 50
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < n; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte{byte(i)}); err != nil {
				return
			}
		}
		// Wait for the client to close.
		conn.ReadMessage()
	}))
	defer srv.Close()

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})

	ch, err := Open(context.Background(), wsURL(srv),
		func(data []byte) {
			mu.Lock()
			got = append(got, data[0])
			if len(got) == n {
				close(done)
			}
			mu.Unlock()
		},
		nil,
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ch.Close("done")

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frames")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		if got[i] != byte(i) {
			t.Fatalf("frame %d out of order: got %d", i, got[i])
		}
	}
}
