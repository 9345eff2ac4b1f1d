package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import DB",
		Short: "Import comic and chapter titles from the reader app's database",
		Long: `Read the download table of the Buka reader app's SQLite database and add
every comic and chapter it lists to the library. Later runs use the
imported titles for folders whose containers carry no descriptor.

To use the database during a single run instead, set metadata.sqlite_path
in the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(false); err != nil {
				return err
			}
			defer c.close()
			ctx, cancel := c.context()
			defer cancel()

			comics, chapters, err := c.ctrl.Import(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d comics and %d chapters\n", comics, chapters)
			return nil
		},
	}
}
