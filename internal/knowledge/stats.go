package knowledge

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ColumnStats summarises a numeric column. Values are decimal strings so
// prices keep their precision when sent to the model.
type ColumnStats struct {
	Column    string `json:"column"`
	Count     int    `json:"count"`
	Missing   int    `json:"missing"`
	Min       string `json:"min"`
	Max       string `json:"max"`
	Mean      string `json:"mean"`
	StdDev    string `json:"std_dev"`
	Sum       string `json:"sum"`
	First     string `json:"first"`
	Last      string `json:"last"`
	ChangePct string `json:"change_pct,omitempty"`
}

// ValueCount is a categorical value and how often it appears
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoryStats summarises a non-numeric column
type CategoryStats struct {
	Column   string       `json:"column"`
	Distinct int          `json:"distinct"`
	Missing  int          `json:"missing"`
	Top      []ValueCount `json:"top"`
	First    string       `json:"first,omitempty"`
	Last     string       `json:"last,omitempty"`
}

// TableSummary is the result of Describe
type TableSummary struct {
	Name        string          `json:"name"`
	Rows        int             `json:"rows"`
	Columns     []string        `json:"columns"`
	Numeric     []ColumnStats   `json:"numeric"`
	Categorical []CategoryStats `json:"categorical"`
}

const (
	statsPlaces = 4
	topValues   = 5
)

var hundred = decimal.NewFromInt(100)

// ParseNumber parses cells like "1,234.50", "$12", "3.5%" or "(4.2)".
func ParseNumber(cell string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return decimal.Zero, false
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", "%", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// Describe computes per-column statistics. A column is numeric when every
// non-empty cell parses as a number.
func (t *Table) Describe() TableSummary {
	summary := TableSummary{Name: t.Name, Rows: len(t.Rows), Columns: t.Columns}
	for i := range t.Columns {
		if stats, ok := t.numericStats(i); ok {
			summary.Numeric = append(summary.Numeric, stats)
			continue
		}
		summary.Categorical = append(summary.Categorical, t.categoryStats(i))
	}
	return summary
}

// NumericColumn returns statistics for one column, or false when the column
// is not numeric.
func (t *Table) NumericColumn(column string) (ColumnStats, bool, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return ColumnStats{}, false, err
	}
	stats, ok := t.numericStats(idx)
	return stats, ok, nil
}

func (t *Table) numericStats(col int) (ColumnStats, bool) {
	stats := ColumnStats{Column: t.Columns[col]}
	var values []decimal.Decimal
	for _, row := range t.Rows {
		if strings.TrimSpace(row[col]) == "" {
			stats.Missing++
			continue
		}
		d, ok := ParseNumber(row[col])
		if !ok {
			return ColumnStats{}, false
		}
		values = append(values, d)
	}
	if len(values) == 0 {
		return ColumnStats{}, false
	}

	stats.Count = len(values)
	minV, maxV := values[0], values[0]
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
	}
	n := decimal.NewFromInt(int64(len(values)))
	mean := sum.DivRound(n, 8)

	variance := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	std := 0.0
	if len(values) > 1 {
		std = math.Sqrt(variance.DivRound(decimal.NewFromInt(int64(len(values)-1)), 8).InexactFloat64())
	}

	first, last := values[0], values[len(values)-1]
	stats.Min = minV.String()
	stats.Max = maxV.String()
	stats.Sum = sum.String()
	stats.Mean = mean.Round(statsPlaces).String()
	stats.StdDev = decimal.NewFromFloat(std).Round(statsPlaces).String()
	stats.First = first.String()
	stats.Last = last.String()
	if !first.IsZero() {
		stats.ChangePct = last.Sub(first).Div(first.Abs()).Mul(hundred).Round(2).String()
	}
	return stats, true
}

func (t *Table) categoryStats(col int) CategoryStats {
	stats := CategoryStats{Column: t.Columns[col]}
	counts := make(map[string]int)
	for _, row := range t.Rows {
		v := row[col]
		if v == "" {
			stats.Missing++
			continue
		}
		if stats.First == "" {
			stats.First = v
		}
		stats.Last = v
		counts[v]++
	}
	stats.Distinct = len(counts)

	for v, c := range counts {
		stats.Top = append(stats.Top, ValueCount{Value: v, Count: c})
	}
	sort.Slice(stats.Top, func(i, j int) bool {
		if stats.Top[i].Count != stats.Top[j].Count {
			return stats.Top[i].Count > stats.Top[j].Count
		}
		return stats.Top[i].Value < stats.Top[j].Value
	})
	if len(stats.Top) > topValues {
		stats.Top = stats.Top[:topValues]
	}
	return stats
}
