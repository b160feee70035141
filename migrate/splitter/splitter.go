// Package splitter splits migration scripts into executable batches.
//
// A batch ends at a line that consists solely of the delimiter token (GO by
// default, case-insensitive), optionally padded with spaces or tabs. The
// delimiter line must be preceded and followed by a newline, so a GO on the
// first or the unterminated last line of a script is part of a batch. Lines
// inside quoted literals, quoted identifiers or block comments never delimit.
//
// Given the script:
//
//	CREATE TABLE a (id int)
//	GO
//	INSERT INTO a VALUES (1)
//
// Split returns the two batches "CREATE TABLE a (id int)" and "INSERT INTO a VALUES (1)".
package splitter

import (
	"iter"
	"strings"
)

// DefaultDelimiter is the batch delimiter used by Split
const DefaultDelimiter = "GO"

// Splitter splits scripts on a delimiter line
type Splitter struct {
	token string
}

// New creates a Splitter for token. An empty token selects DefaultDelimiter.
func New(token string) *Splitter {
	token = strings.TrimSpace(token)
	if token == "" {
		token = DefaultDelimiter
	}
	return &Splitter{token: token}
}

// Split returns the trimmed, non-empty batches of source using DefaultDelimiter
func Split(source string) []string {
	return New(DefaultDelimiter).Split(source).NonEmpty()
}

// Batches are the raw segments between delimiter lines, in source order.
// Segments may be empty when delimiters are consecutive or at the edges.
type Batches []string

// NonEmpty returns the trimmed segments, leaving out blank ones
func (b Batches) NonEmpty() []string {
	out := make([]string, 0, len(b))
	for _, seg := range b {
		if s := strings.TrimSpace(seg); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// All yields every segment with its 1-based position. Blank segments are
// yielded too, so callers can report them.
func (b Batches) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, seg := range b {
			if !yield(i+1, seg) {
				return
			}
		}
	}
}

// Split splits source into raw segments
func (s *Splitter) Split(source string) Batches {
	var batches Batches
	var buf strings.Builder
	var st lexState

	for start := 0; ; {
		end := strings.IndexByte(source[start:], '\n')
		if end < 0 {
			// unterminated last line never delimits
			buf.WriteString(source[start:])
			break
		}

		line := source[start : start+end]
		if start > 0 && st.neutral() && s.isDelimiter(line) {
			seg := strings.TrimSuffix(buf.String(), "\n")
			batches = append(batches, strings.TrimSuffix(seg, "\r"))
			buf.Reset()
		} else {
			buf.WriteString(line)
			buf.WriteByte('\n')
			st = st.advance(line)
		}
		start += end + 1
	}

	return append(batches, buf.String())
}

func (s *Splitter) isDelimiter(line string) bool {
	line = strings.TrimSuffix(line, "\r")
	return strings.EqualFold(strings.Trim(line, " \t"), s.token)
}

// lexState tracks constructs that can span lines. quote holds the byte that
// closes the open literal or quoted identifier.
type lexState struct {
	quote        byte
	blockComment bool
}

func (st lexState) neutral() bool {
	return st.quote == 0 && !st.blockComment
}

// closers maps the bytes opening a literal or quoted identifier to the byte
// closing it: strings, ANSI and MySQL identifiers and T-SQL bracket names
var closers = [256]byte{'\'': '\'', '"': '"', '`': '`', '[': ']'}

// advance scans a single line and returns the state at its end. Doubled
// quotes toggle twice and need no special handling. A backslash escapes the
// next byte inside a string literal, unless that leaves the literal open at
// the end of the line while reading the backslash as a plain byte closes it,
// as in the path 'C:\data\'.
func (st lexState) advance(line string) lexState {
	if st.neutral() && strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
		// MySQL line comment
		return st
	}

	next := st.scan(line, true)
	if next.quote == '\'' && strings.Contains(line, `\`) {
		if plain := st.scan(line, false); plain.neutral() {
			return plain
		}
	}
	return next
}

func (st lexState) scan(line string, escapes bool) lexState {
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case st.blockComment:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				st.blockComment = false
				i++
			}
		case st.quote != 0:
			if escapes && c == '\\' && st.quote == '\'' {
				i++
			} else if c == st.quote {
				st.quote = 0
			}
		case closers[c] != 0:
			st.quote = closers[c]
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			// line comment, the rest of the line is irrelevant
			return st
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			st.blockComment = true
			i++
		}
	}
	return st
}
