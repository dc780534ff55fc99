package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/filex"
)

var errUsage = errors.New("wrong arguments")

// dateArg turns "today", "yesterday" or a literal date into a note key.
func (a *App) dateArg(s string) string {
	switch s {
	case "today":
		return a.clock.Now().Format(time.DateOnly)
	case "yesterday":
		return a.clock.Now().AddDate(0, 0, -1).Format(time.DateOnly)
	}
	return s
}

// Write saves a note. The text is taken from the remaining arguments or
// read interactively.
func (a *App) Write(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: write <date|today> [text]", errUsage)
	}
	key := a.dateArg(args[0])

	text := strings.Join(args[1:], " ")
	if text == "" {
		var err error
		text, err = GetMultiline(a.reader, "Enter text for "+key, a.out)
		if err != nil {
			return err
		}
	}

	env, err := a.svc.SaveEnvelope(ctx, key, text)
	if err != nil {
		return err
	}
	a.sched.RequestDebounced()
	fmt.Fprintf(a.out, "Saved %s (revision %d)\n", key, env.Revision)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <date|today>", errUsage)
	}
	key := a.dateArg(args[0])

	res, err := a.svc.Open(ctx, key)
	if err != nil {
		return err
	}

	switch res.State {
	case models.DocumentRemoteOnly:
		fmt.Fprintf(a.out, "%s is on the server but not on this device yet; connect to read it\n", key)
		return nil
	case models.DocumentNew:
		fmt.Fprintf(a.out, "No entry for %s\n", key)
		return nil
	}

	text, _, err := a.svc.ReadNote(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "== %s (revision %d)\n%s\n", key, res.Envelope.Revision, text)

	imgs, err := a.svc.ImagesForNote(ctx, key)
	if err != nil {
		return err
	}
	if len(imgs) > 0 {
		fmt.Fprintf(a.out, "(%d image(s), see 'images %s')\n", len(imgs), key)
	}
	return nil
}

// List prints note dates. With a year argument the remote index is
// consulted as well.
func (a *App) List(ctx context.Context, args []string) error {
	var (
		dates []string
		err   error
	)
	switch len(args) {
	case 0:
		dates, err = a.svc.GetAllDates(ctx)
	case 1:
		year, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return fmt.Errorf("%w: list [year]", errUsage)
		}
		dates, err = a.svc.GetAllDatesForYear(ctx, year)
	default:
		return fmt.Errorf("%w: list [year]", errUsage)
	}
	if err != nil {
		return err
	}

	if len(dates) == 0 {
		fmt.Fprintln(a.out, "No entries")
		return nil
	}
	for _, d := range dates {
		pending, err := a.svc.HasPendingOp(ctx, d)
		if err != nil {
			return err
		}
		mark := ""
		if pending {
			mark = " *"
		}
		fmt.Fprintln(a.out, d+mark)
	}
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <date>", errUsage)
	}
	key := a.dateArg(args[0])

	answer, err := GetSimpleText(a.reader, fmt.Sprintf("Delete %s and its images? (y/N)", key), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	if err := a.svc.DeleteEnvelope(ctx, key); err != nil {
		return err
	}
	a.sched.RequestDebounced()
	fmt.Fprintf(a.out, "Deleted %s\n", key)
	return nil
}

// Attach adds an image file to a note.
func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: attach <date> <file>", errUsage)
	}
	key := a.dateArg(args[0])

	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	meta, err := a.svc.SaveImage(ctx, key, data)
	if err != nil {
		return err
	}
	a.sched.RequestDebounced()
	fmt.Fprintf(a.out, "Attached %s to %s\n", meta.Key, key)
	return nil
}

func (a *App) Images(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: images <date>", errUsage)
	}
	imgs, err := a.svc.ImagesForNote(ctx, a.dateArg(args[0]))
	if err != nil {
		return err
	}
	if len(imgs) == 0 {
		fmt.Fprintln(a.out, "No images")
		return nil
	}
	for _, m := range imgs {
		fmt.Fprintf(a.out, "%s  %s  %dx%d  %d bytes\n", m.Key, m.MimeType, m.Width, m.Height, m.ByteSize)
	}
	return nil
}

// Export decrypts an image into a file.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: export <image> <file>", errUsage)
	}
	img, err := a.svc.GetImage(ctx, args[0])
	if err != nil {
		return err
	}
	if img == nil {
		fmt.Fprintf(a.out, "No image %s\n", args[0])
		return nil
	}
	if err := filex.WriteFile(args[1], img.Data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", len(img.Data), args[1])
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	st, err := a.svc.Sync(ctx)
	fmt.Fprintf(a.out, "Sync: %s\n", st)
	return err
}

func (a *App) Status(ctx context.Context) error {
	st, lastErr := a.svc.GetSyncStatus()
	pending, err := a.svc.HasPendingOps(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "online: %t\nsync: %s\npending changes: %t\n", a.monitor.IsOnline(), st, pending)
	if lastErr != nil {
		fmt.Fprintf(a.out, "last error: %v\n", lastErr)
	}
	return nil
}
