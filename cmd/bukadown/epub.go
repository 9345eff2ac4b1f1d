package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kerbaras/bukadown/pkg/integrations"
	"github.com/spf13/cobra"
)

func newEPubCommand(c *commandContext) *cobra.Command {
	var (
		output string
		opts   integrations.EPubOptions
	)

	cmd := &cobra.Command{
		Use:   "epub COMIC_DIR",
		Short: "Pack an organized comic into an EPUB",
		Long: `Pack an organized comic directory into one EPUB. Every chapter directory
becomes a section in name order and the cover, when present, opens the book.
A single chapter directory can be packed too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(false); err != nil {
				return err
			}
			defer c.close()
			ctx, cancel := c.context()
			defer cancel()

			if output == "" {
				output = filepath.Dir(filepath.Clean(args[0]))
			}
			path, err := integrations.NewEPubBuilder(output).CreateEPub(ctx, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "📖 EPUB created: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory to write the book to (default: next to COMIC_DIR)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Book title (default: directory name)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "Book author")
	cmd.Flags().StringVar(&opts.Lang, "lang", "zh", "Book language")
	return cmd
}
