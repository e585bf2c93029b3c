package analysis

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   civil.Date
		wantOK bool
	}{
		{raw: "1/5/24", want: civil.Date{Year: 2024, Month: 1, Day: 5}, wantOK: true},
		{raw: "1/5/2024", want: civil.Date{Year: 2024, Month: 1, Day: 5}, wantOK: true},
		{raw: "01/05/24", want: civil.Date{Year: 2024, Month: 1, Day: 5}, wantOK: true},
		{raw: "12/31/99", want: civil.Date{Year: 1999, Month: 12, Day: 31}, wantOK: true},
		{raw: "3/1/68", want: civil.Date{Year: 2068, Month: 3, Day: 1}, wantOK: true},
		{raw: "3/1/69", want: civil.Date{Year: 1969, Month: 3, Day: 1}, wantOK: true},
		{raw: "2/29/24", want: civil.Date{Year: 2024, Month: 2, Day: 29}, wantOK: true},
		{raw: "2/29/23", wantOK: false},
		{raw: "2/30/2024", wantOK: false},
		{raw: "13/1/24", wantOK: false},
		{raw: "0/1/24", wantOK: false},
		{raw: "1/5/024", wantOK: false},
		{raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
