package analysis

import (
	"bufio"
	"unicode/utf8"
)

// ScanLines is a bufio.SplitFunc that breaks text on every line boundary
// an exported transcript may use: \n, \r, \r\n, \v, \f, the file, group
// and record separators (\x1c-\x1e), NEL (U+0085), and the Unicode line
// and paragraph separators (U+2028, U+2029). Breaks are not returned, and
// a final line without a break is returned at EOF.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b == '\n', b == '\v', b == '\f', b == 0x1c, b == 0x1d, b == 0x1e:
			return i + 1, data[:i], nil
		case b == '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// A following \n may still arrive.
			return 0, nil, nil
		case b < utf8.RuneSelf:
			i++
			continue
		}

		if !utf8.FullRune(data[i:]) {
			if !atEOF {
				return 0, nil, nil
			}
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == '\u0085' || r == '\u2028' || r == '\u2029' {
			return i + size, data[:i], nil
		}
		i += size
	}

	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = ScanLines
