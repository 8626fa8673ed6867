package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/erickim73/lineclient/internal/peertest"
	"github.com/erickim73/lineclient/pkg/protocol"
)

// dials peer and closes the client when the test ends
func dial(t *testing.T, addr string, opts Options) *Client {
	t.Helper()
	opts.Address = addr
	c, err := NewClient(context.Background(), opts)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	peer := peertest.Start(t, "\n", peertest.Script(map[string]string{"ping": "pong"}))
	c := dial(t, peer.Addr(), Options{Terminator: protocol.LF, FlushAfterWrite: true})

	reply, err := c.RoundTrip("ping")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply != "pong" {
		t.Errorf("Expected 'pong', got %q", reply)
	}
}

func TestSendIsByteForByte(t *testing.T) {
	terminators := []protocol.Terminator{protocol.LF, protocol.CR, protocol.CRLF}

	for _, term := range terminators {
		t.Run(term.String(), func(t *testing.T) {
			peer := peertest.Start(t, string(term), peertest.Echo)
			c := dial(t, peer.Addr(), Options{Terminator: term, FlushAfterWrite: true})

			command := "  SET clé  valüe "
			n, err := c.Send(command)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if n != len(command)+len(term) {
				t.Errorf("Expected %d bytes written, got %d", len(command)+len(term), n)
			}

			reply, _, err := c.Receive()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if reply != command {
				t.Errorf("Expected echo %q, got %q", command, reply)
			}

			want := []byte(command + string(term))
			if got := peer.Received(); !bytes.Equal(got, want) {
				t.Errorf("Peer received %q, expected %q", got, want)
			}
		})
	}
}

func TestSendWithoutFlushStillDelivers(t *testing.T) {
	peer := peertest.Start(t, "\r", peertest.Echo)
	c := dial(t, peer.Addr(), Options{Terminator: protocol.CR, FlushAfterWrite: false})

	if _, err := c.Send("status"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// nothing flushed yet
	time.Sleep(50 * time.Millisecond)
	if got := peer.Received(); len(got) != 0 {
		t.Fatalf("Expected no bytes before Receive, peer got %q", got)
	}

	reply, _, err := c.Receive()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply != "status" {
		t.Errorf("Expected 'status', got %q", reply)
	}
}

func TestReceiveSingleRead(t *testing.T) {
	big := strings.Repeat("x", 1500)
	peer := peertest.Start(t, "\n", peertest.Script(map[string]string{"dump": big}))
	c := dial(t, peer.Addr(), Options{FlushAfterWrite: true})

	if _, err := c.Send("dump"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// let the whole reply land in the socket buffer
	time.Sleep(100 * time.Millisecond)

	reply, n, err := c.Receive()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != DefaultBufferSize {
		t.Errorf("Expected one read of %d bytes, got %d", DefaultBufferSize, n)
	}
	if reply != big[:DefaultBufferSize] {
		t.Errorf("Expected first %d bytes of reply, got %d chars", DefaultBufferSize, len(reply))
	}

	// the remainder is still on the socket for the next read
	rest, n, err := c.Receive()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != len(big)-DefaultBufferSize || rest != big[DefaultBufferSize:] {
		t.Errorf("Expected remaining %d bytes, got %d", len(big)-DefaultBufferSize, n)
	}
}

func TestReceivePeerClosed(t *testing.T) {
	peer := peertest.Start(t, "\n", peertest.CloseOnFirstLine)
	c := dial(t, peer.Addr(), Options{FlushAfterWrite: true})

	_, err := c.RoundTrip("bye")
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("Expected ErrPeerClosed, got %v", err)
	}
}

func TestConnectRefused(t *testing.T) {
	port := peertest.FreePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	_, err := NewClient(context.Background(), Options{Address: addr, DialTimeout: time.Second})
	if err == nil {
		t.Fatal("Expected connection error, got nil")
	}
	if !strings.Contains(err.Error(), addr) {
		t.Errorf("Expected error to name %s, got %v", addr, err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	peer := peertest.Start(t, "\n", peertest.Echo)
	c := dial(t, peer.Addr(), Options{})

	if err := c.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	peer.WaitDone(2 * time.Second)
}
