package screens

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/bukadown/pkg/app/styles"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/kerbaras/bukadown/pkg/integrations"
)

// chapterWindow is how many chapters are listed at once.
const chapterWindow = 10

type DetailsScreen struct {
	ctx             context.Context
	catalog         Catalog
	epub            *integrations.EPubBuilder
	comicID         uint32
	comic           *data.Comic
	chapters        []*data.Chapter
	selectedChapter int
	width           int
	height          int
	status          string
	err             error
}

func NewDetailsScreen(ctx context.Context, catalog Catalog, epub *integrations.EPubBuilder, comicID uint32) *DetailsScreen {
	return &DetailsScreen{
		ctx:     ctx,
		catalog: catalog,
		epub:    epub,
		comicID: comicID,
	}
}

func (s *DetailsScreen) Init() tea.Cmd {
	return s.loadDetails
}

func (s *DetailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.selectedChapter > 0 {
				s.selectedChapter--
			}
		case "down", "j":
			if s.selectedChapter < len(s.chapters)-1 {
				s.selectedChapter++
			}
		case "r":
			return s, s.loadDetails
		case "e":
			return s, exportEPUB(s.ctx, s.catalog, s.epub, s.comicID)
		case "esc", "backspace":
			return s, func() tea.Msg {
				return SwitchScreenMsg{Screen: "library"}
			}
		}

	case detailsLoadedMsg:
		s.comic = msg.comic
		s.chapters = msg.chapters
		s.err = msg.err
		if s.selectedChapter >= len(s.chapters) {
			s.selectedChapter = 0
		}

	case epubGeneratedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = "Wrote " + msg.path
		}
	}

	return s, nil
}

func (s *DetailsScreen) View() string {
	if s.err != nil && s.comic == nil {
		return styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err))
	}
	if s.width == 0 || s.comic == nil {
		return "Loading..."
	}

	name := s.comic.Name
	if name == "" {
		name = fmt.Sprintf("Comic %d", s.comic.ID)
	}
	header := styles.TitleStyle.Render(fmt.Sprintf("📖 %s", name))

	var notice string
	if s.err != nil {
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	} else if s.status != "" {
		notice = styles.StatusCompleted.Render(s.status) + "\n\n"
	}

	help := styles.HelpStyle.Render(
		"↑/k ↓/j: navigate • e: export EPUB • r: refresh • esc: back • q: quit",
	)

	return fmt.Sprintf("%s\n\n%s%s\n%s\n%s",
		header,
		notice,
		s.renderComicInfo(),
		s.renderChaptersList(),
		help,
	)
}

func (s *DetailsScreen) renderComicInfo() string {
	path := s.comic.Path
	if path == "" {
		path = "not organized yet"
	}
	organized := 0
	for _, ch := range s.chapters {
		if ch.Path != "" {
			organized++
		}
	}

	info := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.MutedStyle.Render(fmt.Sprintf("ID: %d", s.comic.ID)),
		styles.TextStyle.Render(path),
		styles.MutedStyle.Render(fmt.Sprintf("Organized: %d / %d chapters", organized, len(s.chapters))),
	)

	return styles.CardStyle.Width(s.width - 4).Render(info)
}

func (s *DetailsScreen) renderChaptersList() string {
	if len(s.chapters) == 0 {
		return styles.MutedStyle.Render("No chapters known")
	}

	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Chapters (%d total):", len(s.chapters))))
	b.WriteString("\n\n")

	start, end := 0, len(s.chapters)
	if end > chapterWindow {
		start = s.selectedChapter - chapterWindow/2
		if start < 0 {
			start = 0
		}
		end = start + chapterWindow
		if end > len(s.chapters) {
			end = len(s.chapters)
			start = end - chapterWindow
		}
	}

	for i := start; i < end; i++ {
		ch := s.chapters[i]
		text := ch.Label
		if text == "" {
			text = fmt.Sprintf("Chapter %d", ch.ID)
		}
		if ch.Kind != data.KindUnknown {
			text = fmt.Sprintf("%s (%s)", text, ch.Kind)
		}

		statusIcon := "○"
		statusColor := styles.MutedStyle
		if ch.Path != "" {
			statusIcon = "●"
			statusColor = styles.StatusCompleted
		}

		line := fmt.Sprintf("%s %s", statusIcon, text)
		if i == s.selectedChapter {
			line = styles.SelectedStyle.Render(line)
		} else {
			line = statusColor.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(s.chapters) > chapterWindow {
		b.WriteString("\n")
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d chapters", start+1, end, len(s.chapters)),
		))
	}

	return b.String()
}

type detailsLoadedMsg struct {
	comic    *data.Comic
	chapters []*data.Chapter
	err      error
}

func (s *DetailsScreen) loadDetails() tea.Msg {
	comic, _, _, err := s.catalog.GetComicWithChapterCount(s.comicID)
	if err != nil {
		return detailsLoadedMsg{err: err}
	}
	if comic == nil {
		return detailsLoadedMsg{err: fmt.Errorf("comic %d not found", s.comicID)}
	}

	chapters, err := s.catalog.GetChapters(s.comicID)
	if err != nil {
		return detailsLoadedMsg{comic: comic, err: err}
	}
	return detailsLoadedMsg{comic: comic, chapters: chapters}
}
