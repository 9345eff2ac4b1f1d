package integrations

import (
	"sort"

	"github.com/pkg/errors"
)

// Profile is the screen of a reading device pages are fitted to.
type Profile struct {
	Name      string
	Width     int // screen width in pixels
	Height    int // screen height in pixels
	Grayscale bool
}

// Profiles lists the known reading devices by ID.
var Profiles = map[string]Profile{
	"kindle": {
		Name:      "Kindle (10th gen)",
		Width:     600,
		Height:    800,
		Grayscale: true,
	},
	"kindle-paperwhite": {
		Name:      "Kindle Paperwhite 3/4",
		Width:     1072,
		Height:    1448,
		Grayscale: true,
	},
	"kindle-oasis": {
		Name:      "Kindle Oasis 2/3",
		Width:     1264,
		Height:    1680,
		Grayscale: true,
	},
	"kobo-clara": {
		Name:      "Kobo Clara HD",
		Width:     1072,
		Height:    1448,
		Grayscale: true,
	},
	"tablet": {
		Name:   "10\" tablet",
		Width:  1600,
		Height: 2560,
	},
}

// LookupProfile returns the profile registered under id.
func LookupProfile(id string) (Profile, error) {
	p, ok := Profiles[id]
	if !ok {
		return Profile{}, errors.Errorf("unknown device %q", id)
	}
	return p, nil
}

// ProfileIDs returns the known profile IDs in order.
func ProfileIDs() []string {
	ids := make([]string, 0, len(Profiles))
	for id := range Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fit scales width x height down to fit within maxWidth x maxHeight, keeping
// the aspect ratio. A zero bound is unbounded. Images are never enlarged.
func Fit(width, height, maxWidth, maxHeight int) (int, int) {
	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && height > maxHeight {
		if s := float64(maxHeight) / float64(height); s < scale {
			scale = s
		}
	}
	if scale == 1.0 {
		return width, height
	}
	w, h := int(float64(width)*scale), int(float64(height)*scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
