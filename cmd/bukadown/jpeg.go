package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kerbaras/bukadown/pkg/integrations"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newJPEGCommand(c *commandContext) *cobra.Command {
	var (
		opts        integrations.JPEGOptions
		device      string
		listDevices bool
	)

	cmd := &cobra.Command{
		Use:   "jpeg DIR",
		Short: "Convert decoded PNG pages to JPEG",
		Long: `Convert every .png below DIR to a .jpg next to it and remove the PNG.

Use --device to shrink pages to a reading device's screen, or --max-width and
--max-height for explicit bounds. Pages are never enlarged.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if listDevices {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if listDevices {
				printDeviceList()
				return nil
			}
			if err := c.load(false); err != nil {
				return err
			}
			defer c.close()
			ctx, cancel := c.context()
			defer cancel()

			if device != "" {
				profile, err := integrations.LookupProfile(device)
				if err != nil {
					return err
				}
				opts = opts.WithProfile(profile)
			}
			if opts.Workers == 0 {
				opts.Workers = c.cfg.Decode.Workers
			}

			stats, err := integrations.NewJPEGConverter(opts, c.ctrl.Retrier()).ConvertTree(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Converted %d pages (%d resized)\n", stats.Converted, stats.Resized)
			if stats.Failed > 0 {
				return errors.Errorf("%d pages could not be converted", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Quality, "quality", "q", integrations.DefaultJPEGQuality, "JPEG quality (1-100)")
	cmd.Flags().IntVar(&opts.MaxWidth, "max-width", 0, "Shrink pages wider than this")
	cmd.Flags().IntVar(&opts.MaxHeight, "max-height", 0, "Shrink pages taller than this")
	cmd.Flags().BoolVar(&opts.Grayscale, "grayscale", false, "Store pages in grayscale")
	cmd.Flags().BoolVar(&opts.KeepPNG, "keep-png", false, "Keep the PNG next to the JPEG")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Parallel conversions (default from config)")
	cmd.Flags().StringVar(&device, "device", "", "Fit pages to a reading device")
	cmd.Flags().BoolVar(&listDevices, "list-devices", false, "List the known reading devices")
	return cmd
}

func printDeviceList() {
	tw := newTable()
	tw.AppendHeader(table.Row{"Device", "Name", "Screen", "Grayscale"})
	for _, id := range integrations.ProfileIDs() {
		p := integrations.Profiles[id]
		tw.AppendRow(table.Row{id, p.Name, fmt.Sprintf("%dx%d", p.Width, p.Height), p.Grayscale})
	}
	fmt.Fprintln(os.Stdout, tw.Render())
}
