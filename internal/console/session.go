// Package console runs the interactive prompt/send/receive loop over one connection.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/erickim73/lineclient/internal/history"
	"github.com/erickim73/lineclient/internal/metrics"
	"github.com/erickim73/lineclient/pkg/client"
	"github.com/erickim73/lineclient/pkg/protocol"
)

// stages reported by StageError
const (
	StageConsole = "console"
	StageWrite   = "write"
	StageRead    = "read"
)

// the connection the session drives. *client.Client satisfies it
type Conn interface {
	Send(command string) (int, error)
	Receive() (string, int, error)
}

// wraps a fatal error with the loop stage it came from. Error() is the underlying message
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// one operator session over an established connection
type Session struct {
	In      io.Reader
	Out     io.Writer
	Conn    Conn
	Address string // shown in the banner

	Prompt      string
	ExitKeyword string

	ID       string             // session id for logs and transcript
	Recorder history.Recorder   // nil disables recording
	Metrics  *metrics.Collector // nil disables metrics
}

// runs the loop until the exit keyword, console EOF or the peer closing the connection, all of which return nil.
// any other failure is returned without retry
func (s *Session) Run(ctx context.Context) error {
	exitKeyword := s.ExitKeyword
	if exitKeyword == "" {
		exitKeyword = "exit"
	}

	fmt.Fprintf(s.Out, "Connected to %s.\n", s.Address)
	fmt.Fprintf(s.Out, "Enter commands to send to the server (type '%s' to quit).\n", exitKeyword)

	reader := bufio.NewReader(s.In)
	seq := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(s.Out, s.Prompt)

		line, err := reader.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return &StageError{Stage: StageConsole, Err: fmt.Errorf("failed to read console: %w", err)}
		}
		if eof && line == "" {
			slog.Debug("Console closed", "session_id", s.ID)
			return nil
		}

		command := protocol.TrimLineEnding(line)
		if protocol.IsExit(command, exitKeyword) {
			slog.Debug("Exit requested", "session_id", s.ID)
			return nil
		}

		seq++
		closed, err := s.exchange(seq, command)
		if err != nil || closed {
			return err
		}

		// last line had no newline, nothing more to read
		if eof {
			return nil
		}
	}
}

// sends one command and prints its reply. reports whether the peer closed the connection
func (s *Session) exchange(seq int, command string) (bool, error) {
	start := time.Now()

	sent, err := s.Conn.Send(command)
	if err != nil {
		return false, &StageError{Stage: StageWrite, Err: err}
	}

	slog.Debug("Command sent",
		"session_id", s.ID,
		"seq", seq,
		"bytes", sent,
	)

	reply, received, err := s.Conn.Receive()
	if errors.Is(err, client.ErrPeerClosed) {
		fmt.Fprintln(s.Out, "Server closed the connection.")

		if s.Metrics != nil {
			s.Metrics.CommandsTotal.Inc()
			s.Metrics.BytesSentTotal.Add(float64(sent))
			s.Metrics.PeerClosedTotal.Inc()
		}
		s.record(history.Entry{SessionID: s.ID, Seq: seq, Command: command, PeerClosed: true, At: start})
		return true, nil
	}
	if err != nil {
		return false, &StageError{Stage: StageRead, Err: err}
	}

	fmt.Fprintf(s.Out, "Server reply: %s\n", reply)

	took := time.Since(start)
	slog.Debug("Reply received",
		"session_id", s.ID,
		"seq", seq,
		"bytes", received,
		"duration", took,
	)

	if s.Metrics != nil {
		s.Metrics.ObserveExchange(sent, received, took)
	}
	s.record(history.Entry{SessionID: s.ID, Seq: seq, Command: command, Reply: reply, At: start})

	return false, nil
}

// transcript failures are logged, never fatal
func (s *Session) record(e history.Entry) {
	if s.Recorder == nil {
		return
	}

	err := s.Recorder.Record(e)
	if err != nil {
		slog.Warn("Failed to record transcript entry",
			"session_id", s.ID,
			"seq", e.Seq,
			"error", err,
		)
	}
}
