package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	// dispatch runs cmd. ok is false for unknown commands.
	dispatch(ctx context.Context, cmd string, args []string) (ok bool, err error)
	help() []string
}

// runREPL starts a simple read–eval–print loop.
//
// It reads a line from reader, parses the first token as the command and
// dispatches the rest as arguments. Unknown commands are reported back to
// the user. The loop exits on EOF, when the user types "exit" or "quit", or
// when ctx is cancelled by a command (back on the home screen).
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("ts %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands:")
			for _, h := range a.help() {
				printlnFn("  " + h)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		ok, err := a.dispatch(ctx, cmd, args)
		switch {
		case !ok:
			printlnFn("Unknown command:", cmd)
		case err != nil:
			printlnFn("Error:", err)
		}
	}
}
