package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation required but stdin is not a terminal; rerun with -y")

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// Terminal asks questions on w and reads answers from r.
type Terminal struct {
	reader *bufio.Reader
	w      io.Writer
	fd     int
}

// NewTerminal prompts on stderr and reads stdin.
func NewTerminal() *Terminal {
	return &Terminal{reader: bufio.NewReader(os.Stdin), w: os.Stderr, fd: int(os.Stdin.Fd())}
}

func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if !isTerminal(t.fd) {
		return false, ErrNotInteractive
	}
	if _, err := fmt.Fprint(t.w, question+" [y/N]\n> "); err != nil {
		return false, err
	}

	line, err := t.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
