package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kerbaras/bukadown/pkg/app"
	"github.com/kerbaras/bukadown/pkg/services"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	c := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "bukadown",
		Short: "Unpack Buka comic downloads into readable folders",
		Long: `Unpack .buka containers downloaded by the Buka comic reader, decode the
wrapped WebP pages and rename the resulting folders after the comic and
chapter titles.

Run without a command to browse the library of organized comics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive() {
				return cmd.Help()
			}
			if err := c.load(true); err != nil {
				return err
			}
			defer c.close()
			ctx, cancel := c.context()
			defer cancel()

			epubDir, _ := cmd.Flags().GetString("epub-dir")
			return app.NewApp(c.ctrl, epubDir).Run(ctx)
		},
	}

	home, _ := os.UserHomeDir()
	rootCmd.Flags().String("epub-dir", filepath.Join(home, "Downloads"), "Directory books exported from the browser are written to")
	rootCmd.PersistentFlags().StringVarP(&c.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log debug output")

	rootCmd.AddCommand(newExtractCommand(c))
	rootCmd.AddCommand(newOrganizeCommand(c))
	rootCmd.AddCommand(newImportCommand(c))
	rootCmd.AddCommand(newListCommand(c))
	rootCmd.AddCommand(newEPubCommand(c))
	rootCmd.AddCommand(newJPEGCommand(c))

	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a run that finished with failures and 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, services.ErrRunFailed) {
		return 2
	}
	return 1
}
