package scraper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"facebook-group-scraper/internal/scraper"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1,234 likes", 1234},
		{"1.2K", 0},
		{"3M views", 0},
		{"42", 42},
		{"Liked by 7 people and 3 others", 7},
		{"no digits here", 0},
		{"", 0},
		{"12 comments · 4 shares", 12},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, scraper.ParseCount(tt.in))
		})
	}
}

func TestIsUIChrome(t *testing.T) {
	chrome := []string{
		"Like",
		"Like · Comment · Share",
		"View more comments",
		"SPONSORED",
		"John is typing",
		"Active now",
		"Xem thêm",
		"Bình luận · Chia sẻ",
		"Me gusta · Comentar · Compartir",
		"Gefällt mir",
	}
	for _, text := range chrome {
		assert.True(t, scraper.IsUIChrome(text), text)
	}

	content := []string{
		"Hello world, this is a real post announcement",
		"Selling my bike, message me if interested",
		"Who else is online tonight for the quiz? Bring your friends along, it starts at eight",
	}
	for _, text := range content {
		assert.False(t, scraper.IsUIChrome(text), text)
	}
}

func TestValidContent(t *testing.T) {
	assert.False(t, scraper.ValidContent("too short"))
	assert.False(t, scraper.ValidContent("   padded   "))
	assert.True(t, scraper.ValidContent("exactly10!"))
	assert.False(t, scraper.ValidContent("Write a comment"))
	assert.True(t, scraper.ValidContent("Looking for a flat near the river, any tips?"))
}

func TestBestContent(t *testing.T) {
	got, ok := scraper.BestContent([]string{"See more", "first candidate!", "second candidat", "Like · Share"})
	assert.True(t, ok)
	assert.Equal(t, "first candidate!", got)

	got, ok = scraper.BestContent([]string{"same length A", "same length B"})
	assert.True(t, ok)
	assert.Equal(t, "same length A", got)

	// equal rune counts; the first wins even though it is longer in bytes
	got, ok = scraper.BestContent([]string{"short one", "café on main", "cafe on main"})
	assert.True(t, ok)
	assert.Equal(t, "café on main", got)

	_, ok = scraper.BestContent([]string{"Like", "Share", ""})
	assert.False(t, ok)

	_, ok = scraper.BestContent(nil)
	assert.False(t, ok)
}
