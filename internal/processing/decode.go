package processing

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

type candidate struct {
	name string
	enc  encoding.Encoding
}

// Tried in order after UTF-8. Windows-1252 comes first since it is the
// usual source of non-UTF-8 financial exports.
var fallbacks = []candidate{
	{name: "windows-1252", enc: charmap.Windows1252},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
}

// DecodeText converts raw bytes to UTF-8 and reports the encoding used.
// A leading UTF-8 byte order mark is dropped.
func DecodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	for _, c := range fallbacks {
		out, err := c.enc.NewDecoder().Bytes(data)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return string(out), c.name, nil
	}
	return "", "", fmt.Errorf("could not decode text with utf-8, windows-1252 or iso-8859-1")
}

// ReadTextFile reads a file and decodes it with DecodeText.
func ReadTextFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeText(data)
}
