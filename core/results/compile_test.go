package results

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGradeFor(t *testing.T) {
	tests := []struct {
		pct  string
		want string
	}{
		{"100", "A"},
		{"80", "A"},
		{"80.0", "A"},
		{"79.99", "B"},
		{"79.9", "B"},
		{"70", "B"},
		{"69.99", "C"},
		{"60", "C"},
		{"59.99", "D"},
		{"45", "D"},
		{"45.0", "D"},
		{"44.99", "F"},
		{"44.9", "F"},
		{"0", "F"},
	}
	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			assert.Equal(t, tt.want, GradeFor(dec(tt.pct)))
		})
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		scores     []Scored
		wantPct    string
		wantTotal  string
		wantWeight string
		wantGrade  string
	}{
		{
			name: "two CAs and an exam",
			scores: []Scored{
				{Score: dec("15"), MaxScore: dec("20"), Weight: dec("20")},
				{Score: dec("12"), MaxScore: dec("20"), Weight: dec("20")},
				{Score: dec("43.2"), MaxScore: dec("100"), Weight: dec("60")},
			},
			wantPct:    "52.92",
			wantTotal:  "52.92",
			wantWeight: "100",
			wantGrade:  "D",
		},
		{
			name: "first CA and exam",
			scores: []Scored{
				{Score: dec("15"), MaxScore: dec("20"), Weight: dec("15")},
				{Score: dec("50"), MaxScore: dec("60"), Weight: dec("50")},
			},
			// 11.25 + 41.666...
			wantPct:    "52.92",
			wantTotal:  "52.92",
			wantWeight: "65",
			wantGrade:  "D",
		},
		{
			name:       "rounds to two places",
			scores:     []Scored{{Score: dec("2"), MaxScore: dec("3"), Weight: dec("100")}},
			wantPct:    "66.67",
			wantTotal:  "66.67",
			wantWeight: "100",
			wantGrade:  "C",
		},
		{
			name:       "partial weights",
			scores:     []Scored{{Score: dec("40"), MaxScore: dec("40"), Weight: dec("40")}},
			wantPct:    "40",
			wantTotal:  "40",
			wantWeight: "40",
			wantGrade:  "F",
		},
		{name: "nothing recorded", wantPct: "0", wantTotal: "0", wantWeight: "0"},
		{
			name:       "zero weight",
			scores:     []Scored{{Score: dec("10"), MaxScore: dec("10"), Weight: decimal.Zero}},
			wantPct:    "0",
			wantTotal:  "0",
			wantWeight: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.scores, hundred)
			assert.True(t, dec(tt.wantPct).Equal(got.Percentage), "percentage = %s", got.Percentage)
			assert.True(t, dec(tt.wantTotal).Equal(got.TotalScore), "total = %s", got.TotalScore)
			assert.True(t, dec(tt.wantWeight).Equal(got.TotalWeight), "weight = %s", got.TotalWeight)
			assert.Equal(t, tt.wantGrade, got.Grade)
			assert.True(t, hundred.Equal(got.TotalPossible))
		})
	}
}

func TestOverallPercentage(t *testing.T) {
	assert.Equal(t, "75", OverallPercentage(dec("150"), dec("200")).String())
	assert.Equal(t, "33.33", OverallPercentage(dec("100"), dec("300")).String())
	assert.True(t, OverallPercentage(dec("10"), decimal.Zero).IsZero())
}

func TestRank(t *testing.T) {
	tests := []struct {
		name      string
		standings []Standing
		want      map[int]int
	}{
		{
			name: "highest first",
			standings: []Standing{
				{Key: 10, StudentID: 1, Name: "Ada", Score: dec("50")},
				{Key: 11, StudentID: 2, Name: "Bola", Score: dec("90")},
				{Key: 12, StudentID: 3, Name: "Chidi", Score: dec("70")},
			},
			want: map[int]int{11: 1, 12: 2, 10: 3},
		},
		{
			name: "ties break by name, ignoring case",
			standings: []Standing{
				{Key: 1, StudentID: 1, Name: "bola", Score: dec("80")},
				{Key: 2, StudentID: 2, Name: "Ada", Score: dec("80")},
			},
			want: map[int]int{2: 1, 1: 2},
		},
		{
			name: "same name breaks by student id",
			standings: []Standing{
				{Key: 1, StudentID: 9, Name: "Ada Obi", Score: dec("80.00")},
				{Key: 2, StudentID: 4, Name: "Ada Obi", Score: dec("80")},
			},
			want: map[int]int{2: 1, 1: 2},
		},
		{name: "empty", want: map[int]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.standings))
		})
	}
}

func TestUploadSummary_Preview(t *testing.T) {
	s := UploadSummary{Errors: []string{"a", "b", "c", "d"}}
	assert.Equal(t, []string{"a", "b", "... and 2 more errors."}, s.Preview(2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.Preview(4))
	assert.Equal(t, 4, s.ErrorCount())
}
