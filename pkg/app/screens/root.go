package screens

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/kerbaras/bukadown/pkg/integrations"
)

// Catalog is the part of the library the browser reads and edits.
type Catalog interface {
	ListComics() ([]*data.Comic, error)
	GetComicWithChapterCount(id uint32) (*data.Comic, int, int, error)
	GetChapters(comicID uint32) ([]*data.Chapter, error)
	DeleteComic(id uint32) error
}

// SwitchScreenMsg asks the root screen to show another screen. Data is the
// comic ID for "details".
type SwitchScreenMsg struct {
	Screen string
	Data   interface{}
}

// RootScreen routes messages to the library or to the details of one comic.
type RootScreen struct {
	ctx     context.Context
	catalog Catalog
	epub    *integrations.EPubBuilder

	library *LibraryScreen
	active  tea.Model
	size    tea.WindowSizeMsg
}

func NewRootScreen(ctx context.Context, catalog Catalog, epub *integrations.EPubBuilder) *RootScreen {
	library := NewLibraryScreen(ctx, catalog, epub)
	return &RootScreen{
		ctx:     ctx,
		catalog: catalog,
		epub:    epub,
		library: library,
		active:  library,
	}
}

func (r *RootScreen) Init() tea.Cmd {
	return r.library.Init()
}

// show makes m the active screen, replaying the last window size to it.
func (r *RootScreen) show(m tea.Model) tea.Cmd {
	r.active = m
	if r.size.Width > 0 {
		r.active, _ = r.active.Update(r.size)
	}
	return r.active.Init()
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.size = msg

	case tea.KeyMsg:
		if s := msg.String(); s == "q" || s == "ctrl+c" {
			return r, tea.Quit
		}

	case SwitchScreenMsg:
		switch msg.Screen {
		case "library":
			return r, r.show(r.library)
		case "details":
			if id, ok := msg.Data.(uint32); ok {
				return r, r.show(NewDetailsScreen(r.ctx, r.catalog, r.epub, id))
			}
		}
		return r, nil
	}

	var cmd tea.Cmd
	r.active, cmd = r.active.Update(msg)
	return r, cmd
}

func (r *RootScreen) View() string {
	return r.active.View()
}
