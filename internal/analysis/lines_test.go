package analysis

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, text string) []string {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Split(ScanLines)
	got := []string{}
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	require.NoError(t, sc.Err())
	return got
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "lf", text: "a\nb\n", want: []string{"a", "b"}},
		{name: "no final break", text: "a\nb", want: []string{"a", "b"}},
		{name: "crlf", text: "a\r\nb\r\n", want: []string{"a", "b"}},
		{name: "bare cr", text: "a\rb\r", want: []string{"a", "b"}},
		{name: "cr then blank line", text: "a\r\rb", want: []string{"a", "", "b"}},
		{name: "lf cr is two breaks", text: "a\n\rb", want: []string{"a", "", "b"}},
		{name: "vertical tab and form feed", text: "a\vb\fc", want: []string{"a", "b", "c"}},
		{name: "separators", text: "a\x1cb\x1dc\x1ed", want: []string{"a", "b", "c", "d"}},
		{name: "next line", text: "a\u0085b", want: []string{"a", "b"}},
		{name: "line separator", text: "a\u2028b", want: []string{"a", "b"}},
		{name: "paragraph separator", text: "a\u2029b\u2029", want: []string{"a", "b"}},
		{name: "other unicode kept", text: "caf\u00e9 9:05\u202fPM\n", want: []string{"caf\u00e9 9:05\u202fPM"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanAll(t, tt.text))
		})
	}
}

func TestAnalyzeSplitsOnAllLineBreaks(t *testing.T) {
	tests := []struct {
		name string
		sep  string
	}{
		{name: "bare cr", sep: "\r"},
		{name: "crlf", sep: "\r\n"},
		{name: "line separator", sep: "\u2028"},
		{name: "next line", sep: "\u0085"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "1/5/24, 10:30 AM - Alice: hi" + tt.sep +
				"1/6/24, 10:30 AM - Bob: Alice added Carol" + tt.sep +
				"1/6/24, 10:31 AM - Carol: yo" + tt.sep

			report, err := Analyze(text)
			require.NoError(t, err)
			assert.Equal(t, ymd(2024, 1, 6), report.Range.End)
			day := dayOf(t, report, ymd(2024, 1, 6))
			assert.Equal(t, 1, day.NewUsers)
			assert.Equal(t, 2, day.ActiveUsers)

			// Chunked input must agree, however the breaks are split.
			for _, size := range []int{1, 2, 3, 7} {
				agg := NewAggregator()
				for i := 0; i < len(text); i += size {
					_, _ = agg.Write([]byte(text[i:min(i+size, len(text))]))
				}
				got, err := agg.Report()
				require.NoError(t, err)
				assert.Equal(t, report, got, "chunk size %d", size)
				assert.Equal(t, 3, agg.Stats().Lines, "chunk size %d", size)
			}
		})
	}
}

func TestAggregatorHoldsTrailingCR(t *testing.T) {
	agg := NewAggregator()
	_, _ = agg.Write([]byte("1/5/24, 10:30 AM - Alice: hi\r"))
	assert.Zero(t, agg.Stats().Lines, "a trailing \\r may be the first half of \\r\\n")

	_, _ = agg.Write([]byte("\n1/6/24, 10:30 AM - Bob: yo"))
	assert.Equal(t, 1, agg.Stats().Lines)

	agg.Flush()
	assert.Equal(t, Stats{Lines: 2, Records: 2}, agg.Stats())
}
