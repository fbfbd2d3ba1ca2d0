package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/dukerupert/nudge/internal/backup"
)

const defaultPassphraseEnv = "NUDGE_BACKUP_PASSPHRASE"

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out, passEnv string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the reminder collection to an archive",
		Long: `Write every reminder, including delivery state, to an archive.

The archive is encrypted with Argon2id and AES-256-GCM when the
environment variable named by --passphrase-env is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := backup.Export(cmd.Context(), a.coll, os.Getenv(passEnv), time.Now())
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", `archive path ("-" for stdout)`)
	cmd.Flags().StringVar(&passEnv, "passphrase-env", defaultPassphraseEnv, "environment variable holding the passphrase")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var passEnv string
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Load reminders from an archive",
		Long: `Load reminders from an archive written by "nudge export".

By default archived reminders replace stored ones with the same id and the
rest are appended. --replace discards the stored collection first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			mode := backup.Merge
			if replace {
				mode = backup.Replace
			}
			n, err := backup.Import(cmd.Context(), a.coll, data, os.Getenv(passEnv), mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&passEnv, "passphrase-env", defaultPassphraseEnv, "environment variable holding the passphrase")
	cmd.Flags().BoolVar(&replace, "replace", false, "discard stored reminders before importing")
	return cmd
}
