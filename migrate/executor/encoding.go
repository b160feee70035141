package executor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/badgie/migrator/migrate"
)

const byteOrderMark = "\uFEFF"

// replacementChar is what the UTF-8 decoder emits for invalid byte sequences
const replacementChar = "\uFFFD"

// Decode converts raw script bytes to text. A leading byte order mark is
// dropped and invalid sequences are replaced with U+FFFD.
func Decode(raw []byte) string {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		// the UTF-8 decoder replaces instead of failing
		return strings.ToValidUTF8(string(raw), replacementChar)
	}
	return string(out)
}

// CheckEncoding fails with a *migrate.EncodingError pointing at the first
// replacement character of text. The offset is relative to text.
func CheckEncoding(name, text string) error {
	offset := strings.Index(text, replacementChar)
	if offset < 0 {
		return nil
	}

	start := strings.LastIndexAny(text[:offset], "\r\n") + 1
	end := strings.IndexAny(text[offset:], "\r\n")
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}

	return &migrate.EncodingError{
		File:   name,
		Offset: offset,
		Line:   text[start:end],
		Column: utf8.RuneCountInString(text[start:offset]) + 1,
	}
}
