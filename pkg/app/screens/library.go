package screens

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/bukadown/pkg/app/components"
	"github.com/kerbaras/bukadown/pkg/app/styles"
	"github.com/kerbaras/bukadown/pkg/integrations"
)

type LibraryScreen struct {
	ctx       context.Context
	catalog   Catalog
	epub      *integrations.EPubBuilder
	comicList *components.ComicList
	width     int
	height    int
	status    string
	err       error
}

func NewLibraryScreen(ctx context.Context, catalog Catalog, epub *integrations.EPubBuilder) *LibraryScreen {
	return &LibraryScreen{
		ctx:       ctx,
		catalog:   catalog,
		epub:      epub,
		comicList: components.NewComicList(),
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.comicList.Width = msg.Width - 4
		s.comicList.Height = msg.Height - 10

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			s.comicList.Prev()
		case "down", "j":
			s.comicList.Next()
		case "r":
			return s, s.loadLibrary
		case "d":
			if selected := s.comicList.Selected(); selected != nil {
				return s, s.deleteComic(selected.Comic.ID)
			}
		case "e":
			if selected := s.comicList.Selected(); selected != nil {
				return s, exportEPUB(s.ctx, s.catalog, s.epub, selected.Comic.ID)
			}
		case "enter":
			if selected := s.comicList.Selected(); selected != nil {
				id := selected.Comic.ID
				return s, func() tea.Msg {
					return SwitchScreenMsg{Screen: "details", Data: id}
				}
			}
		}

	case libraryLoadedMsg:
		s.comicList.SetItems(msg.items)
		s.err = msg.err

	case epubGeneratedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = "Wrote " + msg.path
		}

	case comicDeletedMsg:
		s.err = msg.err
		return s, s.loadLibrary
	}

	return s, nil
}

func (s *LibraryScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("📚 Comic Library")

	var notice string
	if s.err != nil {
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	} else if s.status != "" {
		notice = styles.StatusCompleted.Render(s.status) + "\n\n"
	}

	help := styles.HelpStyle.Render(
		"↑/k: up • ↓/j: down • enter: details • e: export EPUB • d: remove from library • r: refresh • q: quit",
	)

	return fmt.Sprintf("%s\n\n%s%s\n%s", header, notice, s.comicList.View(), help)
}

type libraryLoadedMsg struct {
	items []components.ComicListItem
	err   error
}

type epubGeneratedMsg struct {
	path string
	err  error
}

type comicDeletedMsg struct {
	err error
}

func (s *LibraryScreen) loadLibrary() tea.Msg {
	comics, err := s.catalog.ListComics()
	if err != nil {
		return libraryLoadedMsg{err: err}
	}

	items := make([]components.ComicListItem, 0, len(comics))
	for _, comic := range comics {
		_, total, organized, err := s.catalog.GetComicWithChapterCount(comic.ID)
		if err != nil {
			return libraryLoadedMsg{items: items, err: err}
		}
		items = append(items, components.ComicListItem{
			Comic:          comic,
			ChapterCount:   total,
			OrganizedCount: organized,
		})
	}

	return libraryLoadedMsg{items: items}
}

// deleteComic forgets a comic. Its files stay on disk.
func (s *LibraryScreen) deleteComic(id uint32) tea.Cmd {
	return func() tea.Msg {
		return comicDeletedMsg{err: s.catalog.DeleteComic(id)}
	}
}

// exportEPUB packs the organized directories of a comic into one book.
func exportEPUB(ctx context.Context, catalog Catalog, builder *integrations.EPubBuilder, comicID uint32) tea.Cmd {
	return func() tea.Msg {
		comic, _, _, err := catalog.GetComicWithChapterCount(comicID)
		if err != nil {
			return epubGeneratedMsg{err: err}
		}
		if comic == nil || comic.Path == "" {
			return epubGeneratedMsg{err: fmt.Errorf("comic %d has not been organized yet", comicID)}
		}
		chapters, err := catalog.GetChapters(comicID)
		if err != nil {
			return epubGeneratedMsg{err: err}
		}

		opts := integrations.EPubOptions{Title: comic.Name}
		for _, ch := range chapters {
			if ch.Path != "" && ch.Path != comic.Path {
				opts.Chapters = append(opts.Chapters, ch.Path)
			}
		}
		path, err := builder.CreateEPub(ctx, comic.Path, opts)
		return epubGeneratedMsg{path: path, err: err}
	}
}
