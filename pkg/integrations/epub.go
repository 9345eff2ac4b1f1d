package integrations

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/bukadown/pkg/organizer"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// coverFile is the cover an extracted container leaves behind.
const coverFile = "logo.jpg"

// EPubOptions describes the book built from an organized directory.
type EPubOptions struct {
	Title    string   // defaults to the directory name
	Author   string
	Lang     string   // defaults to "zh"
	Chapters []string // chapter directories in reading order; defaults to the sorted subdirectories
}

// EPubBuilder packs organized comics into EPUB files.
type EPubBuilder struct {
	outputDir string
}

func NewEPubBuilder(outputDir string) *EPubBuilder {
	return &EPubBuilder{outputDir: outputDir}
}

// Process builds an EPUB of dir with the default options.
func (p *EPubBuilder) Process(ctx context.Context, dir string) error {
	_, err := p.CreateEPub(ctx, dir, EPubOptions{})
	return err
}

// CreateEPub builds one book from comicDir: every chapter directory becomes
// a section, in order. Pages sitting directly in comicDir form a leading
// section of their own, so a single chapter directory also makes a book.
// It returns the path of the written file.
func (p *EPubBuilder) CreateEPub(ctx context.Context, comicDir string, opts EPubOptions) (string, error) {
	log := logger.FromContext(ctx)

	if opts.Title == "" {
		opts.Title = filepath.Base(filepath.Clean(comicDir))
	}
	if opts.Lang == "" {
		opts.Lang = "zh"
	}
	if opts.Chapters == nil {
		var err error
		if opts.Chapters, err = chapterDirs(comicDir); err != nil {
			return "", err
		}
	}

	e, err := epub.NewEpub(opts.Title)
	if err != nil {
		return "", errors.Wrap(err, "create epub")
	}
	e.SetLang(opts.Lang)
	if opts.Author != "" {
		e.SetAuthor(opts.Author)
	}

	sections := 0 // sections holding pages; the cover does not count
	if cover := findCover(comicDir, opts.Chapters); cover != "" {
		if err := addPages(e, 0, "Cover", []string{cover}); err != nil {
			return "", err
		}
	}

	loose, err := pageFiles(comicDir)
	if err != nil {
		return "", err
	}
	if len(loose) > 0 {
		sections++
		if err := addPages(e, sections, opts.Title, loose); err != nil {
			return "", err
		}
	}

	for _, dir := range opts.Chapters {
		pages, err := pageFiles(dir)
		if err != nil {
			return "", err
		}
		if len(pages) == 0 {
			log.Debug("skipping chapter without pages", logger.Data{"dir": dir})
			continue
		}
		sections++
		if err := addPages(e, sections, filepath.Base(dir), pages); err != nil {
			return "", errors.Wrapf(err, "add chapter %s", dir)
		}
	}
	if sections == 0 {
		return "", errors.Errorf("no pages found in %s", comicDir)
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", errors.WithStack(err)
	}
	outputPath := filepath.Join(p.outputDir, organizer.SanitizeName(opts.Title)+".epub")
	if err := e.Write(outputPath); err != nil {
		return "", errors.Wrap(err, "write epub")
	}

	log.Info("wrote epub", logger.Data{"path": outputPath, "sections": sections})
	return outputPath, nil
}

// addPages adds a section showing pages one after another. Images are
// stored as s<section>-p<page> so equal page names in different chapters
// do not clash.
func addPages(e *epub.Epub, section int, title string, pages []string) error {
	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(title))
	for i, page := range pages {
		name := fmt.Sprintf("s%03d-p%04d%s", section, i+1, strings.ToLower(filepath.Ext(page)))
		internal, err := e.AddImage(page, name)
		if err != nil {
			return errors.Wrapf(err, "add image %s", page)
		}
		fmt.Fprintf(&body,
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`+"\n",
			internal, i+1,
		)
	}
	if _, err := e.AddSection(body.String(), title, "", ""); err != nil {
		return errors.Wrap(err, "add section")
	}
	return nil
}

// chapterDirs returns the subdirectories of dir sorted by name.
func chapterDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// pageFiles returns the page images directly inside dir sorted by name. The
// cover is not a page.
func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == coverFile || !isImageFile(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func isImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp"
}

// findCover returns the first cover found in comicDir or its chapters.
func findCover(comicDir string, chapters []string) string {
	for _, dir := range append([]string{comicDir}, chapters...) {
		path := filepath.Join(dir, coverFile)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}
