// Package peertest provides a scripted TCP peer for exercising the line client in tests.
package peertest

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

// portTracker prevents two tests running in the same process from claiming the same port
var (
	usedPorts   = make(map[int]bool)
	usedPortsMu sync.Mutex
)

// asks the OS for a free port by binding to :0, records the port so parallel tests in the same process don't claim it twice, then releases the listener.
// nothing listens on the returned port afterwards, which also makes it a good target for connection-refused tests.
func FreePort(t testing.TB) int {
	t.Helper()
	usedPortsMu.Lock()
	defer usedPortsMu.Unlock()

	for i := 0; i < 20; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			continue
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		if !usedPorts[port] {
			usedPorts[port] = true
			return port
		}
	}
	t.Fatal("peertest: could not allocate a unique free port after 20 attempts")
	return 0
}

// removes a port from the tracking set when its peer shuts down.
func releasePort(port int) {
	usedPortsMu.Lock()
	delete(usedPorts, port)
	usedPortsMu.Unlock()
}

// what the peer does after receiving one terminated line
type Reply struct {
	Data  []byte // written back as a single Write, may be empty
	Close bool   // close the connection after writing Data
}

// decides the reply to one received line. line excludes the terminator
type Handler func(line string) Reply

// replies with the received line unchanged
func Echo(line string) Reply {
	return Reply{Data: []byte(line)}
}

// replies from a fixed table. unknown lines get "ERR unknown"
func Script(replies map[string]string) Handler {
	return func(line string) Reply {
		if r, ok := replies[line]; ok {
			return Reply{Data: []byte(r)}
		}
		return Reply{Data: []byte("ERR unknown")}
	}
}

// closes the connection as soon as the first line arrives, without replying
func CloseOnFirstLine(line string) Reply {
	return Reply{Close: true}
}

// a single-connection TCP peer that records every byte it receives
type Peer struct {
	t          testing.TB
	ln         net.Listener
	port       int
	terminator []byte
	handler    Handler

	mu       sync.Mutex
	received bytes.Buffer
	lines    []string
	accepted int

	done chan struct{} // closed when the served connection ends
	once sync.Once
}

// starts a peer on a free loopback port. the listener is bound before Start returns so a client may dial immediately.
// the peer is stopped automatically when the test ends.
func Start(t testing.TB, terminator string, handler Handler) *Peer {
	t.Helper()

	port := FreePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		releasePort(port)
		t.Fatalf("peertest: listen on %s: %v", addr, err)
	}

	p := &Peer{
		t:          t,
		ln:         ln,
		port:       port,
		terminator: []byte(terminator),
		handler:    handler,
		done:       make(chan struct{}),
	}
	go p.serve()
	t.Cleanup(p.Stop)

	return p
}

// returns the "host:port" the peer listens on.
func (p *Peer) Addr() string { return p.ln.Addr().String() }

// returns the numeric port.
func (p *Peer) Port() int { return p.port }

// returns a copy of all raw bytes received so far.
func (p *Peer) Received() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.received.Bytes()...)
}

// returns the terminated lines received so far, without terminators.
func (p *Peer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// returns how many connections were accepted.
func (p *Peer) Accepted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted
}

// blocks until the served connection has ended or timeout elapses.
func (p *Peer) WaitDone(timeout time.Duration) {
	p.t.Helper()
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.t.Fatalf("peertest: connection on %s still open after %s", p.Addr(), timeout)
	}
}

// closes the listener and releases the port.
func (p *Peer) Stop() {
	p.once.Do(func() {
		p.ln.Close()
		releasePort(p.port)
	})
}

// serves exactly one connection, then stops accepting.
func (p *Peer) serve() {
	defer close(p.done)

	conn, err := p.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	p.mu.Lock()
	p.accepted++
	p.mu.Unlock()

	var pending []byte
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.received.Write(buf[:n])
			p.mu.Unlock()

			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.Index(pending, p.terminator)
				if idx < 0 {
					break
				}
				line := string(pending[:idx])
				pending = pending[idx+len(p.terminator):]

				p.mu.Lock()
				p.lines = append(p.lines, line)
				p.mu.Unlock()

				reply := p.handler(line)
				if len(reply.Data) > 0 {
					if _, err := conn.Write(reply.Data); err != nil {
						return
					}
				}
				if reply.Close {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}
