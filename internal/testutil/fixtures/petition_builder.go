package fixtures

import (
	"fmt"
	"sync/atomic"
)

// Petition is one row of the petitions table as written by the fixtures
type Petition struct {
	CaseNumber      string
	VisaClass       string
	Lottery         bool
	Year            int
	EmployerParent  string
	EmployerName    string
	State           string
	City            string
	JobTitle        string
	NormalizedTitle string
	SOCTitle        string
	Wage            float64
	WageLevel       string
}

// PetitionBuilder provides a fluent API for building test petitions
type PetitionBuilder struct {
	p Petition
}

var caseSeq atomic.Int64

// NewPetitionBuilder creates a builder with sensible defaults
func NewPetitionBuilder() *PetitionBuilder {
	return &PetitionBuilder{
		p: Petition{
			VisaClass:       "H-1B",
			Lottery:         true,
			Year:            2024,
			EmployerParent:  "ACME",
			EmployerName:    "ACME INC",
			State:           "CA",
			City:            "SAN JOSE",
			JobTitle:        "Software Engineer",
			NormalizedTitle: "Software Engineer",
			SOCTitle:        "Software Developers",
			Wage:            100000,
			WageLevel:       "II",
		},
	}
}

// Employer sets both the parent and raw employer name
func (b *PetitionBuilder) Employer(parent string) *PetitionBuilder {
	b.p.EmployerParent = parent
	if parent != "" {
		b.p.EmployerName = parent + " LLC"
	}
	return b
}

// Year sets the filing year
func (b *PetitionBuilder) Year(year int) *PetitionBuilder {
	b.p.Year = year
	return b
}

// Location sets worksite state and city
func (b *PetitionBuilder) Location(state, city string) *PetitionBuilder {
	b.p.State = state
	b.p.City = city
	return b
}

// Job sets raw and normalized title plus SOC title
func (b *PetitionBuilder) Job(raw, normalized, soc string) *PetitionBuilder {
	b.p.JobTitle = raw
	b.p.NormalizedTitle = normalized
	b.p.SOCTitle = soc
	return b
}

// Wage sets wage level and prevailing wage
func (b *PetitionBuilder) Wage(level string, wage float64) *PetitionBuilder {
	b.p.WageLevel = level
	b.p.Wage = wage
	return b
}

// VisaClass overrides the visa class
func (b *PetitionBuilder) VisaClass(class string) *PetitionBuilder {
	b.p.VisaClass = class
	return b
}

// NotSelected marks the petition as not picked in the lottery
func (b *PetitionBuilder) NotSelected() *PetitionBuilder {
	b.p.Lottery = false
	return b
}

// Build returns one petition with a fresh case number
func (b *PetitionBuilder) Build() Petition {
	p := b.p
	p.CaseNumber = fmt.Sprintf("I-200-%05d", caseSeq.Add(1))
	return p
}

// Times returns n petitions with distinct case numbers
func (b *PetitionBuilder) Times(n int) []Petition {
	out := make([]Petition, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.Build())
	}
	return out
}
