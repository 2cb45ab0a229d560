package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/five82/dashsync/internal/state"
)

// Watch runs the synchronizer headless and writes one line to w for every
// visible change of the store until ctx is cancelled.
func Watch(ctx context.Context, opts Options, w io.Writer) error {
	rt, err := Build(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	changes, unsubscribe := rt.Store.Subscribe()
	defer unsubscribe()

	return rt.Serve(ctx, true, func(ctx context.Context) error {
		var last string
		emit := func() error {
			line := FormatView(rt.Store.View())
			if line == last {
				return nil
			}
			last = line
			_, err := fmt.Fprintln(w, line)
			return err
		}
		if err := emit(); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
				if err := emit(); err != nil {
					return err
				}
			}
		}
	})
}

// FormatView renders a one-line summary of the store.
func FormatView(v state.View) string {
	var b strings.Builder
	if v.LastUpdated.IsZero() {
		b.WriteString("--:--:--")
	} else {
		b.WriteString(v.LastUpdated.Local().Format(time.TimeOnly))
	}

	switch {
	case v.PushConnected:
		b.WriteString(" live")
	case v.IsOffline():
		b.WriteString(" offline")
	default:
		b.WriteString(" polling")
	}

	if v.HasStatus {
		fmt.Fprintf(&b, " fields=%d todos=%d", len(v.Status), v.Status.Len("todos"))
	} else {
		b.WriteString(" no-data")
	}
	if v.FromCache {
		b.WriteString(" cached")
	}
	if v.LastError != "" {
		fmt.Fprintf(&b, " error=%q", v.LastError)
	}
	return b.String()
}
