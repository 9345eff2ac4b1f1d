package buka

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Header carries the identifying fields of a container.
type Header struct {
	ComicID   uint32
	ChapterID uint32
	ComicName string
}

// Item is a named payload to pack.
type Item struct {
	Name string
	Data []byte
}

// Write packs items into a container. It is the inverse of Open and is used
// to produce fixtures and re-packed chapters.
func Write(w io.Writer, h Header, items []Item) error {
	var head bytes.Buffer
	le := binary.LittleEndian

	head.WriteString(Magic)
	_ = binary.Write(&head, le, [2]uint32{1, 0})
	_ = binary.Write(&head, le, h.ComicID)
	_ = binary.Write(&head, le, h.ChapterID)
	head.WriteString(h.ComicName)
	head.WriteByte(0)

	tocLen := 4
	for _, it := range items {
		tocLen += 8 + len(it.Name) + 1
	}
	offset := uint32(head.Len() + tocLen)

	_ = binary.Write(&head, le, uint32(tocLen))
	for _, it := range items {
		_ = binary.Write(&head, le, offset)
		_ = binary.Write(&head, le, uint32(len(it.Data)))
		head.WriteString(it.Name)
		head.WriteByte(0)
		offset += uint32(len(it.Data))
	}

	if _, err := w.Write(head.Bytes()); err != nil {
		return errors.WithStack(err)
	}
	for _, it := range items {
		if _, err := w.Write(it.Data); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
