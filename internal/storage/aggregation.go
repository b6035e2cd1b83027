package storage

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/h1bexplorer/internal/database"
)

// MeasureKind selects an aggregate function
type MeasureKind string

const (
	MeasureCount         MeasureKind = "count"
	MeasureCountDistinct MeasureKind = "count_distinct"
	MeasureMean          MeasureKind = "mean"
	MeasureMin           MeasureKind = "min"
	MeasureMax           MeasureKind = "max"
	MeasureSum           MeasureKind = "sum"
	MeasureMedian        MeasureKind = "median"
	MeasurePercentile    MeasureKind = "percentile"
	MeasureCountLevel    MeasureKind = "count_level" // rows at one wage level
)

// Measure is one aggregate column of a grouped fetch
type Measure struct {
	Kind   MeasureKind `json:"kind"`
	Column string      `json:"column,omitempty"`
	P      float64     `json:"p,omitempty"`
	Level  string      `json:"level,omitempty"`
	Alias  string      `json:"alias"`
}

func Count(alias string) Measure { return Measure{Kind: MeasureCount, Alias: alias} }

// CountDistinct counts distinct values of column; blank strings are not counted
func CountDistinct(column, alias string) Measure {
	return Measure{Kind: MeasureCountDistinct, Column: column, Alias: alias}
}

func Mean(column, alias string) Measure { return Measure{Kind: MeasureMean, Column: column, Alias: alias} }

func Min(column, alias string) Measure { return Measure{Kind: MeasureMin, Column: column, Alias: alias} }

func Max(column, alias string) Measure { return Measure{Kind: MeasureMax, Column: column, Alias: alias} }

func Sum(column, alias string) Measure { return Measure{Kind: MeasureSum, Column: column, Alias: alias} }

func Median(column, alias string) Measure {
	return Measure{Kind: MeasureMedian, Column: column, Alias: alias}
}

func Percentile(column string, p float64, alias string) Measure {
	return Measure{Kind: MeasurePercentile, Column: column, P: p, Alias: alias}
}

// CountLevel counts rows at one wage level, "I" through "IV"
func CountLevel(level, alias string) Measure {
	return Measure{Kind: MeasureCountLevel, Level: level, Alias: alias}
}

// LevelCounts returns one CountLevel per wage level, aliased level_i..level_iv
func LevelCounts() []Measure {
	out := make([]Measure, 0, len(database.WageLevels))
	for _, l := range database.WageLevels {
		out = append(out, CountLevel(l, LevelAlias(l)))
	}
	return out
}

// LevelAlias is the column alias used for a wage level count
func LevelAlias(level string) string {
	return "level_" + strings.ToLower(level)
}

// WageSummary is the usual count/mean/median/min/max set over prevailing wage
func WageSummary() []Measure {
	return []Measure{
		Count("count"),
		Mean(database.ColPrevailingWage, "avg_wage"),
		Median(database.ColPrevailingWage, "median_wage"),
		Min(database.ColPrevailingWage, "min_wage"),
		Max(database.ColPrevailingWage, "max_wage"),
	}
}

// Bucket is one labelled branch of a derived grouping column. A row falls in
// the bucket when any of the When groups matches; clauses inside a group
// are AND-ed.
type Bucket struct {
	Label string     `json:"label"`
	When  [][]Clause `json:"when"`
}

// Derived is a computed group column rendered as CASE WHEN ... END. Rows
// matching no bucket get Else, or are dropped when DropElse is set. Only,
// when set, keeps the groups of that one bucket.
type Derived struct {
	Alias    string   `json:"alias"`
	Buckets  []Bucket `json:"buckets"`
	Else     string   `json:"else,omitempty"`
	DropElse bool     `json:"drop_else,omitempty"`
	Only     string   `json:"only,omitempty"`
}

// Order is one ORDER BY term. Column is a group column, a derived alias or
// a measure alias; in raw mode any schema column.
type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// AggregationSpec describes what Fetch returns. With no measures the fetch
// returns raw rows of Columns (all columns when empty).
type AggregationSpec struct {
	GroupBy  []string  `json:"group_by,omitempty"`
	Derived  *Derived  `json:"derived,omitempty"`
	Measures []Measure `json:"measures,omitempty"`
	Columns  []string  `json:"columns,omitempty"`
	Where    []Clause  `json:"where,omitempty"`
	MinCount int       `json:"min_count,omitempty"`
	OrderBy  []Order   `json:"order_by,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

// Raw reports whether the spec fetches rows rather than aggregates
func (s AggregationSpec) Raw() bool {
	return len(s.Measures) == 0
}

var aliasPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: bad alias %q", ErrInvalidAggregation, alias)
	}
	if columns[alias] {
		return fmt.Errorf("%w: alias %q shadows a column", ErrInvalidAggregation, alias)
	}
	return nil
}

// quoteLabel renders a bucket label as a string literal. Labels come from
// code, never from request input.
func quoteLabel(label string) string {
	return "'" + strings.ReplaceAll(label, "'", "''") + "'"
}

func (m Measure) expr(d database.Dialect) (string, error) {
	if m.Kind != MeasureCount && m.Kind != MeasureCountLevel {
		if err := checkColumn(m.Column); err != nil {
			return "", err
		}
	}

	switch m.Kind {
	case MeasureCount:
		return "COUNT(*)", nil
	case MeasureCountDistinct:
		if numericColumns[m.Column] {
			return fmt.Sprintf("COUNT(DISTINCT %s)", m.Column), nil
		}
		return fmt.Sprintf("COUNT(DISTINCT NULLIF(%s, ''))", m.Column), nil
	case MeasureMean:
		return fmt.Sprintf("AVG(%s)", m.Column), nil
	case MeasureMin:
		return fmt.Sprintf("MIN(%s)", m.Column), nil
	case MeasureMax:
		return fmt.Sprintf("MAX(%s)", m.Column), nil
	case MeasureSum:
		return fmt.Sprintf("SUM(%s)", m.Column), nil
	case MeasureMedian:
		return d.Median(m.Column), nil
	case MeasurePercentile:
		if m.P < 0 || m.P > 1 {
			return "", fmt.Errorf("%w: percentile %v out of [0, 1]", ErrInvalidAggregation, m.P)
		}
		return d.Quantile(m.Column, m.P), nil
	case MeasureCountLevel:
		if !slices.Contains(database.WageLevels, m.Level) {
			return "", fmt.Errorf("%w: unknown wage level %q", ErrInvalidAggregation, m.Level)
		}
		return fmt.Sprintf("COUNT(CASE WHEN %s = %s THEN 1 END)", database.ColWageLevel, quoteLabel(m.Level)), nil
	}
	return "", fmt.Errorf("%w: unknown measure %q", ErrInvalidAggregation, m.Kind)
}

func (d *Derived) expr() (string, []any, error) {
	if err := checkAlias(d.Alias); err != nil {
		return "", nil, err
	}
	if len(d.Buckets) == 0 {
		return "", nil, fmt.Errorf("%w: derived column %s has no buckets", ErrInvalidAggregation, d.Alias)
	}

	if d.Only != "" && !slices.ContainsFunc(d.Buckets, func(b Bucket) bool { return b.Label == d.Only }) {
		return "", nil, fmt.Errorf("%w: %s has no bucket %q", ErrInvalidAggregation, d.Alias, d.Only)
	}

	var b strings.Builder
	var args []any
	b.WriteString("CASE")
	for _, bucket := range d.Buckets {
		cond, cargs, err := anyOf(bucket.When)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", cond, quoteLabel(bucket.Label))
		args = append(args, cargs...)
	}
	if d.DropElse {
		b.WriteString(" ELSE NULL END")
	} else {
		fmt.Fprintf(&b, " ELSE %s END", quoteLabel(d.Else))
	}
	return b.String(), args, nil
}

// BuildQuery renders spec against table under the base predicate. Argument
// order follows placeholder order: derived buckets, WHERE, HAVING.
func BuildQuery(table string, dialect database.Dialect, where *Predicate, spec AggregationSpec) (string, []any, error) {
	if where == nil {
		where = NewPredicate()
	}
	where = where.And(spec.Where...)

	if spec.Raw() {
		return buildRaw(table, where, spec)
	}

	var (
		selects  []string
		groupBy  []string
		args     []any
		orderRef = map[string]bool{}
	)

	for _, col := range spec.GroupBy {
		if err := checkColumn(col); err != nil {
			return "", nil, err
		}
		selects = append(selects, col)
		groupBy = append(groupBy, col)
		orderRef[col] = true
	}

	if spec.Derived != nil {
		expr, dargs, err := spec.Derived.expr()
		if err != nil {
			return "", nil, err
		}
		selects = append(selects, expr+" AS "+spec.Derived.Alias)
		groupBy = append(groupBy, spec.Derived.Alias)
		args = append(args, dargs...)
		orderRef[spec.Derived.Alias] = true
	}

	for _, m := range spec.Measures {
		if err := checkAlias(m.Alias); err != nil {
			return "", nil, err
		}
		if orderRef[m.Alias] {
			return "", nil, fmt.Errorf("%w: duplicate alias %q", ErrInvalidAggregation, m.Alias)
		}
		expr, err := m.expr(dialect)
		if err != nil {
			return "", nil, err
		}
		selects = append(selects, expr+" AS "+m.Alias)
		orderRef[m.Alias] = true
	}

	whereSQL, whereArgs, err := where.Build()
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)

	var q strings.Builder
	fmt.Fprintf(&q, "SELECT %s FROM %s WHERE %s", strings.Join(selects, ", "), table, whereSQL)
	if len(groupBy) > 0 {
		fmt.Fprintf(&q, " GROUP BY %s", strings.Join(groupBy, ", "))
	}

	var having []string
	if spec.MinCount > 0 {
		having = append(having, "COUNT(*) >= ?")
		args = append(args, spec.MinCount)
	}
	if spec.Derived != nil && spec.Derived.DropElse {
		// unmatched rows would otherwise surface as a NULL group
		having = append(having, spec.Derived.Alias+" IS NOT NULL")
	}
	if spec.Derived != nil && spec.Derived.Only != "" {
		having = append(having, spec.Derived.Alias+" = "+quoteLabel(spec.Derived.Only))
	}
	if len(having) > 0 {
		fmt.Fprintf(&q, " HAVING %s", strings.Join(having, " AND "))
	}

	order := spec.OrderBy
	if len(order) == 0 {
		for _, g := range groupBy {
			order = append(order, Asc(g))
		}
	}
	if len(order) > 0 {
		terms := make([]string, 0, len(order))
		for _, o := range order {
			if !orderRef[o.Column] {
				return "", nil, fmt.Errorf("%w: cannot order by %q", ErrInvalidAggregation, o.Column)
			}
			terms = append(terms, orderTerm(o))
		}
		fmt.Fprintf(&q, " ORDER BY %s", strings.Join(terms, ", "))
	}

	if spec.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", spec.Limit)
	}

	return q.String(), args, nil
}

func orderTerm(o Order) string {
	if o.Desc {
		return o.Column + " DESC"
	}
	return o.Column + " ASC"
}

func buildRaw(table string, where *Predicate, spec AggregationSpec) (string, []any, error) {
	if len(spec.GroupBy) > 0 || spec.Derived != nil || spec.MinCount > 0 {
		return "", nil, fmt.Errorf("%w: raw fetch cannot group", ErrInvalidAggregation)
	}

	cols := spec.Columns
	if len(cols) == 0 {
		cols = AllColumns
	}
	for _, c := range cols {
		if err := checkColumn(c); err != nil {
			return "", nil, err
		}
	}

	whereSQL, args, err := where.Build()
	if err != nil {
		return "", nil, err
	}

	var q strings.Builder
	fmt.Fprintf(&q, "SELECT %s FROM %s WHERE %s", strings.Join(cols, ", "), table, whereSQL)

	if len(spec.OrderBy) > 0 {
		terms := make([]string, 0, len(spec.OrderBy))
		for _, o := range spec.OrderBy {
			if err := checkColumn(o.Column); err != nil {
				return "", nil, err
			}
			terms = append(terms, orderTerm(o))
		}
		fmt.Fprintf(&q, " ORDER BY %s", strings.Join(terms, ", "))
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", spec.Limit)
	}
	return q.String(), args, nil
}
