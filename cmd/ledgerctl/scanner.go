package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/svirmi/gift-ledger/internal/counterparty"
)

// lineScanner reads tokens typed (or piped) one per line. It stands in for a
// proximity or camera reader on terminals.
type lineScanner struct {
	in  *bufio.Reader
	out io.Writer
}

func newLineScanner(in io.Reader, out io.Writer) *lineScanner {
	return &lineScanner{in: bufio.NewReader(in), out: out}
}

type scanResult struct {
	line string
	err  error
}

func (s *lineScanner) Scan(ctx context.Context, channel counterparty.Channel) (string, error) {
	fmt.Fprintf(s.out, "waiting for %s token: ", channel)

	// The read goroutine outlives a cancelled scan; the process exits soon
	// after in every caller.
	done := make(chan scanResult, 1)
	go func() {
		line, err := s.in.ReadString('\n')
		done <- scanResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(s.out)
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil && !(errors.Is(r.err, io.EOF) && r.line != "") {
			return "", fmt.Errorf("read token: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}
