package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/registry"
)

// NewSweepCommand creates the one-shot sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deliver every reminder due now, once",
		Long: `Run a single sweep against the configured store and notifier.

Two sweeps must not run against the same store at the same time from
different processes; stop the scheduler in "nudge serve" or disable it
with sweep.enabled=false before scheduling this command externally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := auth.WithCaller(cmd.Context(), auth.Caller{Source: auth.SourceCLI})
			a, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			res, err := engine.Sweep(ctx, time.Now())
			if err != nil {
				return err
			}
			return newOutput(cmd, rootOpts).sweepResult(res)
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			reminders, err := a.registry.List(cmd.Context())
			if err != nil {
				return err
			}
			return newOutput(cmd, rootOpts).reminders(reminders)
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var f registry.Fields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or replace a reminder",
		Long: `Create a reminder, or replace the one with the same id.

Replacing a reminder resets its delivery state. When --id is omitted a
random id is generated.

Example:
  nudge add --title "Pay rent" --date 2025-02-01 --time 08:30 --priority high`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.ID == "" {
				f.ID = uuid.NewString()
			}
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.registry.Upsert(cmd.Context(), f)
			if err != nil {
				return err
			}
			return newOutput(cmd, rootOpts).reminder(r)
		},
	}

	cmd.Flags().StringVar(&f.ID, "id", "", "reminder id (default: random UUID)")
	cmd.Flags().StringVar(&f.Title, "title", "", "title (required)")
	cmd.Flags().StringVar(&f.Date, "date", "", "due date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.Time, "time", "", "due time, HH:MM (default 09:00)")
	cmd.Flags().StringVar(&f.Category, "category", "", "category")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&f.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel one reminder, or every reminder with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = strings.TrimSpace(args[0])
			}
			if id == "" && !all {
				return fmt.Errorf("specify a reminder id or --all")
			}
			if id != "" && all {
				return fmt.Errorf("--all cannot be combined with an id")
			}

			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.registry.Cancel(cmd.Context(), id)
			if err != nil {
				return err
			}
			return newOutput(cmd, rootOpts).cancelled(n)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "cancel every reminder")
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show reminder counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			counts, err := a.registry.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return newOutput(cmd, rootOpts).counts(counts)
		},
	}
}

// NewHashSecretCommand creates the hash-secret command.
func NewHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print a bcrypt hash usable as sweep.secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
