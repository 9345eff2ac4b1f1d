package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newListCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [COMIC_ID]",
		Short: "List the comics in the library, or the chapters of one comic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(false); err != nil {
				return err
			}
			defer c.close()

			repo, err := c.ctrl.Library()
			if err != nil {
				return err
			}
			if repo == nil {
				return errors.New("library is disabled")
			}

			if len(args) == 1 {
				id, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return errors.Errorf("invalid comic id %q", args[0])
				}
				return listChapters(repo, uint32(id))
			}
			return listComics(repo)
		},
	}
}

func listComics(repo *data.Repository) error {
	comics, err := repo.ListComics()
	if err != nil {
		return err
	}
	if len(comics) == 0 {
		fmt.Println("📚 No comics in library. Use 'bukadown extract' or 'bukadown import' to add some.")
		return nil
	}

	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Name", Width: 30},
		{Title: "Chapters", Width: 10},
		{Title: "Organized", Width: 10},
		{Title: "Path", Width: 40},
	}

	rows := make([]table.Row, 0, len(comics))
	for _, comic := range comics {
		_, total, organized, err := repo.GetComicWithChapterCount(comic.ID)
		if err != nil {
			return err
		}
		rows = append(rows, table.Row{
			strconv.FormatUint(uint64(comic.ID), 10),
			truncateString(comic.Name, 28),
			strconv.Itoa(total),
			strconv.Itoa(organized),
			truncateString(comic.Path, 38),
		})
	}

	fmt.Printf("\n📚 Library (%d comics)\n\n", len(comics))
	fmt.Println(renderListTable(columns, rows))
	return nil
}

func listChapters(repo *data.Repository, comicID uint32) error {
	comic, err := repo.GetComic(comicID)
	if err != nil {
		return err
	}
	if comic == nil {
		return errors.Errorf("comic %d not found", comicID)
	}
	chapters, err := repo.GetChapters(comicID)
	if err != nil {
		return err
	}

	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Label", Width: 24},
		{Title: "Kind", Width: 8},
		{Title: "Path", Width: 50},
	}
	rows := make([]table.Row, 0, len(chapters))
	for _, ch := range chapters {
		rows = append(rows, table.Row{
			strconv.FormatUint(uint64(ch.ID), 10),
			truncateString(ch.Label, 22),
			ch.Kind.String(),
			truncateString(ch.Path, 48),
		})
	}

	fmt.Printf("\n📖 %s (%d chapters)\n\n", comic.Name, len(chapters))
	fmt.Println(renderListTable(columns, rows))
	return nil
}

func renderListTable(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Cell
	t.SetStyles(s)
	return t.View()
}

// truncateString shortens s to max runes, marking the cut with "...".
func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
