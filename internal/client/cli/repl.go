package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Write(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Images(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  write <date|today> [text]   save a note (text is read interactively if omitted)
  show <date|today>           print a note
  list [year]                 list note dates, * marks unsynced changes
  delete <date>               delete a note and its images
  attach <date> <file>        attach an image
  images <date>               list attached images
  export <image> <file>       write a decrypted image to a file
  sync                        synchronize now
  status                      show connectivity and sync state
  exit | quit                 leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// Command lines and interactive prompts share the reader, so multi-line
// input asked for by a command is consumed in order. The loop exits on EOF
// or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("daybook (%s) > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "write", "w":
			cmdErr = a.Write(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "delete":
			cmdErr = a.Delete(ctx, args)
		case "attach":
			cmdErr = a.Attach(ctx, args)
		case "images":
			cmdErr = a.Images(ctx, args)
		case "export":
			cmdErr = a.Export(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
