package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/bukadown/pkg/app/styles"
	"github.com/kerbaras/bukadown/pkg/data"
)

type ComicListItem struct {
	Comic          *data.Comic
	ChapterCount   int
	OrganizedCount int
}

// ComicList is a scrolling list of library comics rendered as cards.
type ComicList struct {
	Items         []ComicListItem
	SelectedIndex int
	Width         int
	Height        int
}

func NewComicList() *ComicList {
	return &ComicList{
		Items:  []ComicListItem{},
		Width:  80,
		Height: 20,
	}
}

func (m *ComicList) SetItems(items []ComicListItem) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *ComicList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex++
	if m.SelectedIndex >= len(m.Items) {
		m.SelectedIndex = 0
	}
}

func (m *ComicList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *ComicList) Selected() *ComicListItem {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return &m.Items[m.SelectedIndex]
}

// visible returns the index range of the cards that fit in Height, keeping
// the selection in view.
func (m *ComicList) visible() (int, int) {
	per := m.Height / cardHeight
	if per < 1 {
		per = 1
	}
	if len(m.Items) <= per {
		return 0, len(m.Items)
	}
	start := m.SelectedIndex - per/2
	if start < 0 {
		start = 0
	}
	end := start + per
	if end > len(m.Items) {
		end = len(m.Items)
		start = end - per
	}
	return start, end
}

// cardHeight is the rendered height of one card including borders.
const cardHeight = 8

func (m *ComicList) View() string {
	if len(m.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render("No comics in library")
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	start, end := m.visible()
	for i := start; i < end; i++ {
		item := m.Items[i]
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		name := item.Comic.Name
		if name == "" {
			name = fmt.Sprintf("Comic %d", item.Comic.ID)
		}
		title := styles.TitleStyle.Render(name)

		status := StatusOf(item)
		chapterInfo := styles.MutedStyle.Render(
			fmt.Sprintf("Chapters: %d / %d organized", item.OrganizedCount, item.ChapterCount),
		)
		path := item.Comic.Path
		if path == "" {
			path = "not organized yet"
		}
		location := styles.MutedStyle.Render(truncate(path, m.Width-10))

		cardContent := lipgloss.JoinVertical(
			lipgloss.Left,
			title,
			chapterInfo,
			styles.StatusStyle(status).Render("Status: "+status),
			location,
		)

		b.WriteString(cardStyle.Width(m.Width - 4).Render(cardContent))
		b.WriteString("\n")
	}
	if start > 0 || end < len(m.Items) {
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d comics", start+1, end, len(m.Items)),
		))
	}
	return b.String()
}

// StatusOf summarizes how much of a comic has been organized.
func StatusOf(item ComicListItem) string {
	switch {
	case item.ChapterCount == 0 && item.Comic.Path != "":
		return "completed"
	case item.ChapterCount == 0, item.OrganizedCount == 0:
		return "pending"
	case item.OrganizedCount < item.ChapterCount:
		return "partial"
	default:
		return "completed"
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return "..." + string(r[len(r)-width+3:])
}
