// Package analysis turns an exported chat transcript into a seven-day
// participation report: who joined, who was active each day, and who
// showed up on most days of the window.
package analysis

import (
	"bufio"
	"iter"
	"regexp"
	"strings"
)

// Separators accept any Unicode space; newer exports put U+202F before AM/PM.
var linePattern = regexp.MustCompile(
	`(?P<date>\d{1,2}/\d{1,2}/\d{2,4}),[\s\p{Zs}]` +
		`(?P<time>\d{1,2}:\d{2}(?:[\s\p{Zs}][AP]M)?)` +
		`[\s\p{Zs}]-[\s\p{Zs}]` +
		`(?P<author>[^:]+?):[\s\p{Zs}]*(?P<body>.*)`,
)

var (
	dateGroup   = linePattern.SubexpIndex("date")
	timeGroup   = linePattern.SubexpIndex("time")
	authorGroup = linePattern.SubexpIndex("author")
	bodyGroup   = linePattern.SubexpIndex("body")
)

// Record is one message line as it appeared in the transcript.
type Record struct {
	RawDate string
	RawTime string
	Author  string
	Body    string
}

// ParseLine extracts a Record from a single transcript line.
//
// Lines that do not have the "date, time - author: body" shape are rejected,
// including the continuation lines of multi-line messages. Those are not
// stitched onto the previous record.
func ParseLine(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, false
	}

	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}

	return Record{
		RawDate: m[dateGroup],
		RawTime: m[timeGroup],
		Author:  strings.TrimSpace(m[authorGroup]),
		Body:    strings.TrimSpace(m[bodyGroup]),
	}, true
}

// Records yields the message records found in text, in order. Lines are
// split with ScanLines. The sequence is lazy and single-pass; ranging again
// re-parses text from the start.
func Records(text string) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		sc := bufio.NewScanner(strings.NewReader(text))
		sc.Buffer(nil, max(len(text)+1, bufio.MaxScanTokenSize))
		sc.Split(ScanLines)
		for sc.Scan() {
			rec, ok := ParseLine(sc.Text())
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}
