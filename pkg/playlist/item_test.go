package playlist

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateSource(t *testing.T) {
	assert.Equal(t, "short", TruncateSource("short"))

	got := TruncateSource("https://media.example/ipfs/QmVeryLongContentHash123456")
	assert.True(t, strings.HasPrefix(got, "media.example"))
	assert.Contains(t, got, "…")

	// Short paths pass through untouched.
	assert.Equal(t, "media.example.com/a/b", TruncateSource("https://media.example.com/a/b"))
}

func TestTruncateSourceMultiByteRunes(t *testing.T) {
	source := "источник-данных-очень-длинное-имя-объекта"
	got := TruncateSource(source)
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, "…")
	assert.True(t, strings.HasPrefix(got, "источник"))
	assert.True(t, strings.HasSuffix(got, "бъекта"))
}

func TestProjectUsesTruncatedSource(t *testing.T) {
	it := Item{
		ID:       "i1",
		Title:    "Piece",
		Source:   "https://media.example.com/very/long/path/to/the/object",
		Duration: 30,
		License:  LicenseToken,
	}
	p := it.Project()
	assert.Equal(t, "i1", p.ID)
	assert.NotEqual(t, it.Source, p.TruncatedSource)
	assert.Contains(t, p.TruncatedSource, "…")
}
