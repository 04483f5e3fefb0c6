package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlbumFromTrackName(t *testing.T) {
	cases := []struct {
		name     string
		track    string
		expected string
	}{
		{name: "parentheses", track: "Song (Deluxe Edition)", expected: "Deluxe Edition"},
		{name: "brackets", track: "Song [Remix]", expected: "Remix"},
		{name: "hyphens", track: "Artist - B-Side - ", expected: "B-Side"},
		{name: "hyphenated span survives", track: "Artist - Whole-Lotta-Love - ", expected: "Whole-Lotta-Love"},
		{name: "single hyphen is not a span", track: "Hyphen-Name", expected: ""},
		{name: "parentheses preferred over brackets", track: "Song (Live) [Remix]", expected: "Live"},
		{name: "last parenthesised group wins", track: "Song (feat. Artist) (Deluxe)", expected: "Deluxe"},
		{name: "no delimiters", track: "Plain Song", expected: ""},
		{name: "empty", track: "", expected: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, albumFromTrackName(tc.track))
		})
	}
}
