package results

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gladschool/portal/core"
)

var (
	hundred = decimal.NewFromInt(100)

	gradeBands = []struct {
		min   decimal.Decimal
		grade string
	}{
		{decimal.NewFromInt(80), "A"},
		{decimal.NewFromInt(70), "B"},
		{decimal.NewFromInt(60), "C"},
		{decimal.NewFromInt(45), "D"},
	}
)

// GradeFor bands a percentage: >=80 A, >=70 B, >=60 C, >=45 D, else F.
func GradeFor(pct decimal.Decimal) string {
	for _, b := range gradeBands {
		if pct.GreaterThanOrEqual(b.min) {
			return b.grade
		}
	}
	return "F"
}

// Scored is one assessment score with the assessment's scale.
type Scored struct {
	Score    decimal.Decimal
	MaxScore decimal.Decimal
	Weight   decimal.Decimal
}

// Weighted is the score's contribution to the subject percentage: score / max_score * weight.
func (s Scored) Weighted() decimal.Decimal {
	if !s.MaxScore.IsPositive() {
		return decimal.Zero
	}
	return s.Score.Mul(s.Weight).Div(s.MaxScore)
}

type Compiled struct {
	TotalWeight   decimal.Decimal
	Percentage    decimal.Decimal
	TotalScore    decimal.Decimal
	TotalPossible decimal.Decimal
	Grade         string
}

// Compile sums weighted scores into a percentage rounded to two places and grades it.
// With nothing to weigh the percentage stays 0 and the grade empty.
func Compile(scores []Scored, totalPossible decimal.Decimal) Compiled {
	c := Compiled{
		TotalWeight:   decimal.Zero,
		Percentage:    decimal.Zero,
		TotalScore:    decimal.Zero,
		TotalPossible: totalPossible,
	}
	sum := decimal.Zero
	for _, s := range scores {
		c.TotalWeight = c.TotalWeight.Add(s.Weight)
		sum = sum.Add(s.Weighted())
	}
	if !c.TotalWeight.IsPositive() {
		return c
	}
	c.Percentage = core.Round2(sum)
	c.TotalScore = core.Round2(c.Percentage.Div(hundred).Mul(totalPossible))
	c.Grade = GradeFor(c.Percentage)
	return c
}

// OverallPercentage is total / possible * 100, rounded to two places; 0 when nothing is possible.
func OverallPercentage(total, possible decimal.Decimal) decimal.Decimal {
	if !possible.IsPositive() {
		return decimal.Zero
	}
	return core.Round2(total.Div(possible).Mul(hundred))
}

// Standing is one entry to rank.
type Standing struct {
	Key       int // caller's row identifier
	StudentID int
	Name      string
	Score     decimal.Decimal
}

// Rank orders standings by score, highest first, and returns 1-based positions keyed by Standing.Key.
// Equal scores fall back to the student name (case-insensitive) and then the student ID,
// so the same inputs always rank the same way.
func Rank(standings []Standing) map[int]int {
	sorted := make([]Standing, len(standings))
	copy(sorted, standings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if c := a.Score.Cmp(b.Score); c != 0 {
			return c > 0
		}
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.StudentID < b.StudentID
	})

	positions := make(map[int]int, len(sorted))
	for i, s := range sorted {
		positions[s.Key] = i + 1
	}
	return positions
}
