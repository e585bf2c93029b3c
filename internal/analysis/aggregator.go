package analysis

import (
	"errors"
	"io"
	"regexp"
	"slices"
	"strings"

	"cloud.google.com/go/civil"
)

const (
	// WindowDays is the length of the reporting window, inclusive of both ends.
	WindowDays = 7

	// FrequentThreshold is the number of active days inside the window that
	// makes an author a frequent user.
	FrequentThreshold = 4

	systemNoticePrefix = "Messages and calls are end-to-end encrypted"
)

// ErrNoValidMessages is returned when no line produced a dated record.
var ErrNoValidMessages = errors.New("no valid messages found")

// joinPattern matches "added <name>" where "added" starts a Unicode word.
// RE2's \b only knows ASCII word characters.
var joinPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])added[\s\p{Zs}]+(.+?)[\s\p{Zs}]*$`)

type set map[string]struct{}

func (s set) add(v string) { s[v] = struct{}{} }

type dayActivity struct {
	active set
	joined set
}

// Stats counts what happened to the input while aggregating.
type Stats struct {
	Lines   int // lines fed through AddLine or Write
	Records int // records that were dated and aggregated
	Undated int // records dropped because their date did not parse
}

// Skipped returns how many fed lines did not look like a message at all.
func (s Stats) Skipped() int {
	return s.Lines - s.Records - s.Undated
}

// Aggregator accumulates per-day and per-author participation for one
// transcript. It is not safe for concurrent use; build one per transcript.
//
// Aggregator implements io.Writer so a transcript can be streamed into it in
// arbitrary chunks. A trailing line without a line break is held until more
// input arrives or Flush is called.
type Aggregator struct {
	days    map[civil.Date]*dayActivity
	authors map[string]map[civil.Date]struct{}
	latest  civil.Date
	seen    bool
	pending []byte
	stats   Stats
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		days:    make(map[civil.Date]*dayActivity),
		authors: make(map[string]map[civil.Date]struct{}),
	}
}

// Stats returns the counters collected so far.
func (a *Aggregator) Stats() Stats {
	return a.stats
}

// AddLine parses one raw transcript line and aggregates it if it is a
// dated message.
func (a *Aggregator) AddLine(line string) {
	a.stats.Lines++
	if rec, ok := ParseLine(line); ok {
		a.Add(rec)
	}
}

// Add aggregates a parsed record. It reports false when the record's date
// cannot be normalized, in which case the record is ignored.
func (a *Aggregator) Add(rec Record) bool {
	date, ok := ParseDate(rec.RawDate)
	if !ok {
		a.stats.Undated++
		return false
	}
	a.stats.Records++
	a.observe(date, rec.Author, rec.Body)
	return true
}

func (a *Aggregator) observe(date civil.Date, author, body string) {
	if !a.seen || date.After(a.latest) {
		a.latest = date
		a.seen = true
	}

	day := a.day(date)

	// The encryption banner is chat metadata, not activity. Join detection
	// below still runs on it.
	if !strings.HasPrefix(body, systemNoticePrefix) {
		day.active.add(author)
		dates, ok := a.authors[author]
		if !ok {
			dates = make(map[civil.Date]struct{})
			a.authors[author] = dates
		}
		dates[date] = struct{}{}
	}

	if m := joinPattern.FindStringSubmatch(body); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			day.joined.add(name)
		}
	}
}

func (a *Aggregator) day(date civil.Date) *dayActivity {
	d, ok := a.days[date]
	if !ok {
		d = &dayActivity{active: make(set), joined: make(set)}
		a.days[date] = d
	}
	return d
}

// activeCount and joinedCount read a day with a zero default so that
// reporting never creates entries.
func (a *Aggregator) activeCount(date civil.Date) int {
	if d, ok := a.days[date]; ok {
		return len(d.active)
	}
	return 0
}

func (a *Aggregator) joinedCount(date civil.Date) int {
	if d, ok := a.days[date]; ok {
		return len(d.joined)
	}
	return 0
}

// Write feeds raw transcript bytes. It never returns an error.
func (a *Aggregator) Write(p []byte) (int, error) {
	a.pending = append(a.pending, p...)
	a.drain(false)
	return len(p), nil
}

// Flush aggregates any buffered partial line.
func (a *Aggregator) Flush() {
	a.drain(true)
}

func (a *Aggregator) drain(atEOF bool) {
	buf := a.pending
	for len(buf) > 0 {
		advance, line, _ := ScanLines(buf, atEOF)
		if advance == 0 {
			break
		}
		a.AddLine(string(line))
		buf = buf[advance:]
	}
	// Keep the unconsumed tail at the front of the buffer.
	a.pending = append(a.pending[:0], buf...)
}

// Report flushes buffered input and derives the seven-day report ending at
// the latest message date seen. It returns ErrNoValidMessages when nothing
// could be dated.
func (a *Aggregator) Report() (*Report, error) {
	a.Flush()
	if !a.seen {
		return nil, ErrNoValidMessages
	}

	window := Range{Start: a.latest.AddDays(-(WindowDays - 1)), End: a.latest}

	days := make([]DayStats, 0, WindowDays)
	for i := range WindowDays {
		date := window.Start.AddDays(i)
		days = append(days, DayStats{
			Date:        date,
			NewUsers:    a.joinedCount(date),
			ActiveUsers: a.activeCount(date),
		})
	}

	frequent := make([]string, 0)
	for author, dates := range a.authors {
		n := 0
		for date := range dates {
			if window.Contains(date) {
				n++
			}
		}
		if n >= FrequentThreshold {
			frequent = append(frequent, author)
		}
	}
	slices.Sort(frequent)

	return &Report{
		Range:         window,
		DayWise:       days,
		FrequentUsers: frequent,
	}, nil
}

// Analyze builds a report from a complete transcript.
func Analyze(text string) (*Report, error) {
	agg := NewAggregator()
	for rec := range Records(text) {
		agg.Add(rec)
	}
	return agg.Report()
}

// AnalyzeReader builds a report from a transcript stream.
func AnalyzeReader(r io.Reader) (*Report, error) {
	agg := NewAggregator()
	if _, err := io.Copy(agg, r); err != nil {
		return nil, err
	}
	return agg.Report()
}
