package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/erickim73/lineclient/internal/history"
)

// prints every recorded exchange, oldest first
func printHistory(out io.Writer, dir string) error {
	if dir == "" {
		return errors.New("no history dir configured (use -history-dir)")
	}

	store, err := history.OpenReadOnly(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.All()
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No history recorded.")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%s %s #%d > %s\n", e.At.Format(time.RFC3339), e.SessionID, e.Seq, e.Command)
		if e.PeerClosed {
			fmt.Fprintln(out, "  (server closed the connection)")
		} else {
			fmt.Fprintf(out, "  %s\n", e.Reply)
		}
	}

	return nil
}
