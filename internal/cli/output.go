package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/sweep"
)

// output renders command results as text or JSON.
type output struct {
	w    io.Writer
	json bool
}

func newOutput(cmd *cobra.Command, opts *RootOptions) *output {
	return &output{w: cmd.OutOrStdout(), json: opts.Format == "json"}
}

func (o *output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) reminders(rs []model.Reminder) error {
	if o.json {
		return o.encode(rs)
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tSTATE\tTITLE")
	for _, r := range rs {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", r.ID, r.Date, r.Time, state(r), r.Title)
	}
	return tw.Flush()
}

func (o *output) reminder(r model.Reminder) error {
	if o.json {
		return o.encode(r)
	}
	_, err := fmt.Fprintf(o.w, "scheduled %s for %s %s\n", r.ID, r.Date, r.Time)
	return err
}

func (o *output) cancelled(n int) error {
	if o.json {
		return o.encode(map[string]any{"ok": true, "cancelled": n})
	}
	_, err := fmt.Fprintf(o.w, "cancelled %d\n", n)
	return err
}

func (o *output) counts(c model.Counts) error {
	if o.json {
		return o.encode(c)
	}
	_, err := fmt.Fprintf(o.w, "total %d, pending %d, sent %d, cancelled %d\n", c.Total, c.Pending, c.Sent, c.Cancelled)
	return err
}

func (o *output) sweepResult(res sweep.Result) error {
	if o.json {
		return o.encode(res)
	}
	_, err := fmt.Fprintf(o.w, "processed %d, failed %d, pending %d of %d\n", res.Processed, res.Failed, res.Pending, res.Total)
	return err
}

func state(r model.Reminder) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Sent:
		return "sent"
	default:
		return "pending"
	}
}
