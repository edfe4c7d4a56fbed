package processing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		want     string
		encoding string
	}{
		{"utf8", []byte("Profit rose 5 € this quarter"), "Profit rose 5 € this quarter", "utf-8"},
		{"utf8 bom", []byte("\xef\xbb\xbfHello"), "Hello", "utf-8"},
		{"latin1 accent", []byte("Soci\xe9t\xe9 G\xe9n\xe9rale"), "Société Générale", "windows-1252"},
		{"cp1252 quotes", []byte("\x93bullish\x94"), "“bullish”", "windows-1252"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := DecodeText(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.encoding, enc)
		})
	}
}

func TestReadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.txt")
	require.NoError(t, os.WriteFile(path, []byte("Caf\xe9 sales were neutral."), 0644))

	text, enc, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Café sales were neutral.", text)
	assert.Equal(t, "windows-1252", enc)

	_, _, err = ReadTextFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestChunkText(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello world"}, ChunkText("  hello world  ", 100, 10))
	})

	t.Run("blank text yields nothing", func(t *testing.T) {
		assert.Empty(t, ChunkText("   \n\t ", 10, 0))
	})

	t.Run("splits on whitespace", func(t *testing.T) {
		text := strings.Repeat("word ", 50)
		chunks := ChunkText(text, 22, 0)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 22)
			assert.False(t, strings.HasPrefix(c, "ord"), "chunk %q splits a word", c)
		}
		assert.Equal(t, strings.TrimSpace(text), strings.Join(chunks, " "))
	})

	t.Run("overlap repeats tail", func(t *testing.T) {
		chunks := ChunkText("abcdefghij", 4, 2)
		assert.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)
	})

	t.Run("multibyte runes", func(t *testing.T) {
		chunks := ChunkText("ééééé", 2, 0)
		assert.Equal(t, []string{"éé", "éé", "é"}, chunks)
	})

	t.Run("invalid overlap is ignored", func(t *testing.T) {
		assert.Equal(t, []string{"ab", "cd"}, ChunkText("abcd", 2, 5))
	})
}

func TestTokenize(t *testing.T) {
	got := Tokenize("For 2005-03-11 data, can you tell if AGREED, neutral or negative? Up 3.5%.")
	assert.Equal(t, []string{"2005-03-11", "data", "agreed", "neutral", "negative", "up", "3.5%"}, got)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", TruncateText("abc", 5))
	assert.Equal(t, "ab...", TruncateText("abcdef", 2))
	assert.Equal(t, "abc", TruncateText("abc", 0))
}

func TestTruncates(t *testing.T) {
	assert.True(t, Truncates("abcdef", 3))
	assert.False(t, Truncates("abcdef", 6))
	assert.False(t, Truncates("abc", 0))
	assert.False(t, Truncates("héllo", 5))
	assert.True(t, Truncates("héllo", 4))
}
