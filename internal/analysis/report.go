package analysis

import "cloud.google.com/go/civil"

// Range is the inclusive reporting window.
type Range struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// Days returns the number of calendar days covered, counting both ends.
func (r Range) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

// Contains reports whether date falls inside the window.
func (r Range) Contains(date civil.Date) bool {
	return !date.Before(r.Start) && !date.After(r.End)
}

// DayStats is one row of the day-wise graph.
type DayStats struct {
	Date        civil.Date `json:"date"`
	NewUsers    int        `json:"new_users"`
	ActiveUsers int        `json:"active_users"`
}

// Report is the seven-day participation summary of a transcript.
type Report struct {
	Range         Range      `json:"range"`
	DayWise       []DayStats `json:"day_wise_graph_data"`
	FrequentUsers []string   `json:"active_4_days_users"`
}
