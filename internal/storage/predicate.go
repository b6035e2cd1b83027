package storage

import (
	"fmt"
	"strings"

	"github.com/h1bexplorer/internal/database"
)

// Op is a comparison in a predicate clause
type Op string

const (
	OpEq         Op = "eq"
	OpIn         Op = "in"
	OpBetween    Op = "between"
	OpGte        Op = "gte"
	OpContains   Op = "contains"    // case sensitive substring, no wildcards
	OpContainsCI Op = "contains_ci" // case insensitive substring, no wildcards
	OpNotLikeCI  Op = "not_like_ci" // LOWER(col) NOT LIKE pattern
	OpNotEmpty   Op = "not_empty"
	OpIsTrue     Op = "is_true"
)

// Clause is one typed (column, operator, value) condition. Values are always
// bound as parameters.
type Clause struct {
	Column string `json:"column"`
	Op     Op     `json:"op"`
	Value  any    `json:"value,omitempty"`
}

func Eq(column string, value any) Clause { return Clause{Column: column, Op: OpEq, Value: value} }

func In(column string, values []string) Clause {
	return Clause{Column: column, Op: OpIn, Value: values}
}

func Between(column string, from, to int) Clause {
	return Clause{Column: column, Op: OpBetween, Value: [2]int{from, to}}
}

func Gte(column string, value any) Clause { return Clause{Column: column, Op: OpGte, Value: value} }

func Contains(column, substr string) Clause {
	return Clause{Column: column, Op: OpContains, Value: substr}
}

func ContainsCI(column, substr string) Clause {
	return Clause{Column: column, Op: OpContainsCI, Value: substr}
}

func NotLikeCI(column, pattern string) Clause {
	return Clause{Column: column, Op: OpNotLikeCI, Value: pattern}
}

func NotEmpty(column string) Clause { return Clause{Column: column, Op: OpNotEmpty} }

func IsTrue(column string) Clause { return Clause{Column: column, Op: OpIsTrue} }

// columns is the whitelist of identifiers that may appear in generated SQL
var columns = map[string]bool{
	database.ColVisaClass:       true,
	database.ColLottery:         true,
	database.ColYear:            true,
	database.ColEmployerParent:  true,
	database.ColEmployerName:    true,
	database.ColEmployerState:   true,
	database.ColEmployerCity:    true,
	database.ColJobTitle:        true,
	database.ColNormalizedTitle: true,
	database.ColSOCTitle:        true,
	database.ColPrevailingWage:  true,
	database.ColWageLevel:       true,
	database.ColCaseNumber:      true,
}

var numericColumns = map[string]bool{
	database.ColYear:           true,
	database.ColLottery:        true,
	database.ColPrevailingWage: true,
}

// AllColumns lists the table columns in schema order
var AllColumns = []string{
	database.ColCaseNumber, database.ColVisaClass, database.ColLottery, database.ColYear,
	database.ColEmployerParent, database.ColEmployerName, database.ColEmployerState,
	database.ColEmployerCity, database.ColJobTitle, database.ColNormalizedTitle,
	database.ColSOCTitle, database.ColPrevailingWage, database.ColWageLevel,
}

func checkColumn(column string) error {
	if !columns[column] {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	return nil
}

// BaseClauses restrict every query to selected H-1B lottery petitions
func BaseClauses() []Clause {
	return []Clause{
		Eq(database.ColVisaClass, database.H1BVisaClass),
		IsTrue(database.ColLottery),
	}
}

// Predicate is a conjunction of clauses
type Predicate struct {
	clauses []Clause
}

// NewPredicate creates a predicate from clauses
func NewPredicate(clauses ...Clause) *Predicate {
	return &Predicate{clauses: append([]Clause(nil), clauses...)}
}

// And returns a new predicate with more clauses appended
func (p *Predicate) And(clauses ...Clause) *Predicate {
	out := make([]Clause, 0, len(p.clauses)+len(clauses))
	out = append(out, p.clauses...)
	out = append(out, clauses...)
	return &Predicate{clauses: out}
}

// Clauses returns a copy of the clauses
func (p *Predicate) Clauses() []Clause {
	return append([]Clause(nil), p.clauses...)
}

// Build renders the predicate as a WHERE body with positional parameters.
// An empty predicate renders as 1=1.
func (p *Predicate) Build() (string, []any, error) {
	if len(p.clauses) == 0 {
		return "1=1", nil, nil
	}

	conditions := make([]string, 0, len(p.clauses))
	var args []any
	for _, c := range p.clauses {
		cond, cargs, err := c.build()
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, cond)
		args = append(args, cargs...)
	}
	return strings.Join(conditions, " AND "), args, nil
}

func (c Clause) build() (string, []any, error) {
	if err := checkColumn(c.Column); err != nil {
		return "", nil, err
	}
	col := c.Column

	switch c.Op {
	case OpEq:
		return col + " = ?", []any{c.Value}, nil

	case OpGte:
		return col + " >= ?", []any{c.Value}, nil

	case OpIn:
		values, ok := c.Value.([]string)
		if !ok {
			return "", nil, fmt.Errorf("%w: IN on %s needs []string", ErrInvalidClause, col)
		}
		if len(values) == 0 {
			return "1=0", nil, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		return fmt.Sprintf("%s IN (%s)", col, marks), args, nil

	case OpBetween:
		bounds, ok := c.Value.([2]int)
		if !ok {
			return "", nil, fmt.Errorf("%w: BETWEEN on %s needs [2]int", ErrInvalidClause, col)
		}
		return col + " BETWEEN ? AND ?", []any{bounds[0], bounds[1]}, nil

	case OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: substring match on %s needs a string", ErrInvalidClause, col)
		}
		// POSITION takes the value literally on both backends, so % and _
		// in user input match themselves
		return "POSITION(? IN " + col + ") > 0", []any{s}, nil

	case OpContainsCI:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: substring match on %s needs a string", ErrInvalidClause, col)
		}
		return "POSITION(? IN LOWER(" + col + ")) > 0", []any{strings.ToLower(s)}, nil

	case OpNotLikeCI:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: NOT LIKE on %s needs a string", ErrInvalidClause, col)
		}
		return "LOWER(" + col + ") NOT LIKE ?", []any{strings.ToLower(s)}, nil

	case OpNotEmpty:
		if numericColumns[col] {
			return col + " IS NOT NULL", nil, nil
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s != '')", col, col), nil, nil

	case OpIsTrue:
		return col + " = true", nil, nil
	}

	return "", nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidClause, c.Op)
}

// anyOf renders a disjunction of conjunctions: (a AND b) OR (c)
func anyOf(groups [][]Clause) (string, []any, error) {
	if len(groups) == 0 {
		return "1=0", nil, nil
	}
	parts := make([]string, 0, len(groups))
	var args []any
	for _, g := range groups {
		sql, gargs, err := NewPredicate(g...).Build()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, gargs...)
	}
	return strings.Join(parts, " OR "), args, nil
}
