package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) Write(ctx context.Context, args []string) error  { return f.record("write", args) }
func (f *fakeExec) Show(ctx context.Context, args []string) error   { return f.record("show", args) }
func (f *fakeExec) List(ctx context.Context, args []string) error   { return f.record("list", args) }
func (f *fakeExec) Delete(ctx context.Context, args []string) error { return f.record("delete", args) }
func (f *fakeExec) Attach(ctx context.Context, args []string) error { return f.record("attach", args) }
func (f *fakeExec) Images(ctx context.Context, args []string) error { return f.record("images", args) }
func (f *fakeExec) Export(ctx context.Context, args []string) error { return f.record("export", args) }
func (f *fakeExec) Sync(ctx context.Context) error                  { return f.record("sync", nil) }
func (f *fakeExec) Status(ctx context.Context) error                { return f.record("status", nil) }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var out []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)

	input := bufio.NewReader(strings.NewReader(strings.Join([]string{
		"help",
		"write today hello there",
		"show 2024-03-01",
		"",
		"list 2024",
		"delete 2024-03-01",
		"attach 2024-03-01 cat.png",
		"images 2024-03-01",
		"export abc out.png",
		"sync",
		"status",
		"foobar",
		"exit",
		"sync",
	}, "\n")))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "online" }, input)

	require.Equal(t, []string{"write", "show", "list", "delete", "attach", "images", "export", "sync", "status"}, exec.calls)
	require.Equal(t, []string{"today", "hello", "there"}, exec.args[0])
	require.Equal(t, []string{"2024-03-01", "cat.png"}, exec.args[4])

	joined := strings.Join(*out, "\n")
	require.Contains(t, joined, "daybook (online) >")
	require.Contains(t, joined, "Unknown command: foobar")
	require.Contains(t, joined, "Bye!")
}

func TestRunREPL_ReportsErrorsAndStopsOnEOF(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{err: errors.New("store closed")}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("sync")))

	require.Equal(t, []string{"sync"}, exec.calls)
	require.Contains(t, strings.Join(*out, "\n"), "Error: store closed")
}

func TestRunREPL_StopsWhenContextDone(t *testing.T) {
	captureOutput(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("sync\n")))
	require.Empty(t, exec.calls)
}
