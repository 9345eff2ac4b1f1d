package data

import (
	"bytes"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// looseString accepts both JSON strings and numbers.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(b)
	return nil
}

type descriptorLink struct {
	CID   looseString `json:"cid"`
	Index looseString `json:"idx"`
	Title looseString `json:"title"`
	Type  looseString `json:"type"`
}

type descriptor struct {
	Name  looseString      `json:"name"`
	Logo  looseString      `json:"logo"`
	Links []descriptorLink `json:"links"`
}

var logoIDPattern = regexp.MustCompile(`^(\d+)-`)

// ParseDescriptor decodes a chaporder.dat record. The comic ID comes from
// explicitID when non-zero, else from the digits before the hyphen in the
// last segment of the logo URL. Links with a non-numeric cid are skipped.
func ParseDescriptor(raw []byte, explicitID *uint32) (*ChapterMetadata, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "decode descriptor")
	}

	md := NewChapterMetadata(0, strings.TrimSpace(string(d.Name)))
	md.Logo = string(d.Logo)

	switch {
	case explicitID != nil && *explicitID != 0:
		md.ComicID = *explicitID
	default:
		md.ComicID = LogoComicID(md.Logo)
	}

	for _, l := range d.Links {
		id, ok := ParseID(string(l.CID))
		if !ok {
			continue
		}
		md.AddChapter(ChapterRecord{
			ID:    id,
			Index: strings.TrimSpace(string(l.Index)),
			Title: strings.TrimSpace(string(l.Title)),
			Kind:  ParseKind(string(l.Type)),
		})
	}
	return md, nil
}

// LogoComicID extracts the comic ID from a logo URL such as
// "http://host/logo/123-s.jpg". It returns zero when no ID is present.
func LogoComicID(logo string) uint32 {
	if logo == "" {
		return 0
	}
	if i := strings.IndexAny(logo, "?#"); i >= 0 {
		logo = logo[:i]
	}
	m := logoIDPattern.FindStringSubmatch(path.Base(logo))
	if m == nil {
		return 0
	}
	id, _ := ParseID(m[1])
	return id
}

// ParseID parses a decimal comic or chapter ID. Zero is not a valid ID.
func ParseID(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint32(v), true
}
