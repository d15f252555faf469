package util

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var charReplacementMap = map[string]string{
	"‘": "'", "’": "'", "“": "\"",
	"”": "\"", "–": "-", "—": "--", "…": "...",
	" ": " ", "\u0096": "-", "\u0097": "--", "\u0091": "'",
	"\u0092": "'", "\u0093": "\"", "\u0094": "\"",
}

// asciiPunctuation matches Python's string.punctuation.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// CleanFileContent strips a UTF-8 BOM, repairs invalid UTF-8 and
// replaces typographic characters with their ASCII forms.
func CleanFileContent(fileContentBytes []byte, src string) (string, error) {
	fileContentBytes = bytes.TrimPrefix(fileContentBytes, utf8BOM)

	if !utf8.Valid(fileContentBytes) {
		log.Warnf("%s invalid UTF-8, replacing invalid chars", src)
		fileContentBytes = bytes.ToValidUTF8(fileContentBytes, []byte(string(utf8.RuneError)))
	}

	str := replaceTypographic(string(fileContentBytes))

	if !utf8.ValidString(str) {
		log.Errorf("%s still invalid after cleaning", src)
		return "", fmt.Errorf("invalid UTF-8 after replacements: %s", src)
	}
	return str, nil
}

func replaceTypographic(s string) string {
	for bad, good := range charReplacementMap {
		s = strings.ReplaceAll(s, bad, good)
	}
	return s
}

// NormalizeText applies NFKC, drops control characters other than
// newline and tab, and trims surrounding whitespace.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(replaceTypographic(text))
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.TrimSpace(normed)
}

// StripPunctuation removes ASCII punctuation except the apostrophe,
// lowercases the text and collapses runs of whitespace.
func StripPunctuation(text string) string {
	text = strings.Map(func(r rune) rune {
		if r != '\'' && r < utf8.RuneSelf && strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
