// Package dicttoken implements the line tokenizer of spec.md §4.1: it turns
// one source line into a list of whitespace-separated fields, stripping
// comments in place, with no allocation beyond the returned slice of
// sub-slices into the original buffer.
package dicttoken

// MaxFields bounds the number of fields a single directive line can carry.
const MaxFields = 16

// MaxLineLength is the compatibility width spec.md §6 recommends accepting
// even though the original format silently truncates at 255 bytes.
const MaxLineLength = 4096

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// Tokenize splits line into up to MaxFields whitespace-separated fields.
// A '#' anywhere truncates the line at that point first. line is never
// written to and no new backing array is allocated: the returned fields are
// sub-slices of line itself, so callers must not reuse line's storage
// across calls if they intend to keep the fields around.
//
// Empty lines, comment-only lines, and lines that are all whitespace yield
// a nil/empty result. Tokenize does not interpret the fields in any way and
// never fails: a line with a single field is syntactically fine at this
// layer, it is up to the directive engine to decide that's malformed for a
// given keyword.
func Tokenize(line []byte) [][]byte {
	if i := indexByte(line, '#'); i >= 0 {
		line = line[:i]
	}

	var fields [][]byte
	n := len(line)
	i := 0
	for i < n && len(fields) < MaxFields {
		for i < n && isSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && !isSpace(line[i]) {
			i++
		}
		fields = append(fields, line[start:i])
	}
	return fields
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
