package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/erickim73/lineclient/pkg/protocol"
)

// default size of the single-read reply buffer
const DefaultBufferSize = 1024

// returned by Receive when the peer closed its side of the connection
var ErrPeerClosed = errors.New("peer closed the connection")

// connection settings
type Options struct {
	Network         string // tcp, tcp4 or tcp6
	Address         string // host:port
	Terminator      protocol.Terminator
	FlushAfterWrite bool
	BufferSize      int
	DialTimeout     time.Duration // 0 leaves it to the OS
}

// fills zero values with defaults
func (o Options) withDefaults() Options {
	if o.Network == "" {
		o.Network = "tcp"
	}
	if o.Terminator == "" {
		o.Terminator = protocol.LF
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// client struct to hold connection state. owns exactly one tcp socket
type Client struct {
	conn   net.Conn
	writer *bufio.Writer
	buf    []byte
	opts   Options

	mu     sync.Mutex
	closed bool
}

// opens the tcp connection. no retry on failure
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, opts.Network, opts.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address, err)
	}

	return &Client{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		buf:    make([]byte, opts.BufferSize),
		opts:   opts,
	}, nil
}

// returns the address of the peer
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// close the client connection. safe to call more than once
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// writes command plus the line terminator. returns number of bytes written
func (c *Client) Send(command string) (int, error) {
	encoded := protocol.EncodeLine(command, c.opts.Terminator)

	n, err := c.writer.Write(encoded)
	if err != nil {
		return n, fmt.Errorf("failed to write command: %w", err)
	}

	if c.opts.FlushAfterWrite {
		err = c.writer.Flush()
		if err != nil {
			return n, fmt.Errorf("failed to flush: %w", err)
		}
	}

	return n, nil
}

// performs exactly one read into the reply buffer and returns the decoded text with the raw byte count.
// bytes still pending on the socket are left there
func (c *Client) Receive() (string, int, error) {
	// without flush-after-write the command may still sit in the writer
	if c.writer.Buffered() > 0 {
		err := c.writer.Flush()
		if err != nil {
			return "", 0, fmt.Errorf("failed to flush: %w", err)
		}
	}

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		return protocol.DecodeReply(c.buf[:n]), n, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return "", 0, ErrPeerClosed
	}

	return "", 0, fmt.Errorf("failed to read response: %w", err)
}

// send a command and read one reply
func (c *Client) RoundTrip(command string) (string, error) {
	_, err := c.Send(command)
	if err != nil {
		return "", err
	}

	reply, _, err := c.Receive()
	return reply, err
}
