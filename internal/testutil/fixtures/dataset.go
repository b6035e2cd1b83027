package fixtures

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/h1bexplorer/internal/database"
)

// Figures for StandardPetitions, valid rows only (H-1B lottery selections).
const (
	StandardTotal     = 26
	StandardAvgWage   = 118500.0
	StandardMinWage   = 70000.0
	StandardMaxWage   = 200000.0
	StandardAmazon    = 11
	StandardGoogle    = 5
	StandardInfosys   = 9
	StandardYear2023  = 13
	StandardYear2024  = 13
	StandardLevelI    = 9
	StandardLevelII   = 10
	StandardLevelIII  = 6
	StandardLevelIV   = 1
	StandardStateWA   = 9
	StandardStateCA   = 7
	StandardStateTX   = 10
	StandardAmazonAvg = 1475000.0 / 11
)

// StandardPetitions is a small dataset shaped like the production table:
// three employers across WA, CA and TX in 2023 and 2024, one row with a
// blank employer, and two rows that every query must exclude.
func StandardPetitions() []Petition {
	var rows []Petition
	add := func(ps []Petition) { rows = append(rows, ps...) }

	sde := func() *PetitionBuilder {
		return NewPetitionBuilder().Employer("AMAZON").Location("WA", "SEATTLE").
			Job("Software Development Engineer II", "Software Development Engineer", "Software Developers")
	}
	add(sde().Year(2023).Wage("II", 120000).Times(4))
	add(sde().Year(2023).Wage("III", 150000).Times(2))
	add(sde().Year(2024).Wage("II", 125000).Times(3))
	add(NewPetitionBuilder().Employer("AMAZON").Year(2024).Location("CA", "SUNNYVALE").
		Job("Data Scientist", "Data Scientist", "Data Scientists").Wage("III", 160000).Times(2))

	ml := func() *PetitionBuilder {
		return NewPetitionBuilder().Employer("GOOGLE").Location("CA", "MOUNTAIN VIEW").
			Job("Senior Machine Learning Engineer", "Machine Learning Engineer", "Software Developers")
	}
	add(ml().Year(2023).Wage("III", 170000).Times(2))
	add(ml().Year(2024).Wage("IV", 200000).Times(1))
	add(NewPetitionBuilder().Employer("GOOGLE").Year(2024).Location("CA", "MOUNTAIN VIEW").
		Job("Software Engineer", "Software Engineer", "Software Developers").Wage("II", 130000).Times(2))

	analyst := func() *PetitionBuilder {
		return NewPetitionBuilder().Employer("INFOSYS").Location("TX", "PLANO").
			Job("Technology Analyst", "Technology Analyst", "Computer Systems Analysts")
	}
	add(analyst().Year(2023).Wage("I", 80000).Times(5))
	add(analyst().Year(2024).Wage("I", 82000).Times(3))
	add(NewPetitionBuilder().Employer("INFOSYS").Year(2024).Location("TX", "PLANO").
		Job("Consultant", "Consultant", "Other Computer Occupations").Wage("I", 70000).Times(1))

	add(NewPetitionBuilder().Employer("").Year(2024).Location("TX", "DALLAS").
		Job("Software Engineer", "Software Engineer", "Software Developers").Wage("II", 90000).Times(1))

	// excluded from every query
	add(NewPetitionBuilder().Employer("WIPRO").Year(2024).Location("NJ", "EDISON").
		Wage("II", 95000).NotSelected().Times(1))
	add(NewPetitionBuilder().Employer("ATLASSIAN").Year(2024).Location("CA", "SAN FRANCISCO").
		VisaClass("E-3").Wage("III", 180000).Times(1))

	return rows
}

// WageMixPetitions returns 100 petitions with levels I x20, II x50, III x20, IV x10.
func WageMixPetitions() []Petition {
	var rows []Petition
	b := NewPetitionBuilder().Employer("MIXCO").Year(2024)
	rows = append(rows, b.Wage("I", 70000).Times(20)...)
	rows = append(rows, b.Wage("II", 90000).Times(50)...)
	rows = append(rows, b.Wage("III", 110000).Times(20)...)
	rows = append(rows, b.Wage("IV", 140000).Times(10)...)
	return rows
}

// CreateTableSQL is the DDL for the petitions table
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		%s VARCHAR,
		%s VARCHAR,
		%s BOOLEAN,
		%s INTEGER,
		%s VARCHAR,
		%s VARCHAR,
		%s VARCHAR,
		%s VARCHAR,
		%s VARCHAR,
		%s VARCHAR,
		%s VARCHAR,
		%s DOUBLE,
		%s VARCHAR
	)`, table,
		database.ColCaseNumber, database.ColVisaClass, database.ColLottery, database.ColYear,
		database.ColEmployerParent, database.ColEmployerName, database.ColEmployerState,
		database.ColEmployerCity, database.ColJobTitle, database.ColNormalizedTitle,
		database.ColSOCTitle, database.ColPrevailingWage, database.ColWageLevel)
}

// InsertSQL is the parameterized insert for one petition
func InsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", table)
}

// Args returns the insert arguments in column order
func (p Petition) Args() []any {
	return []any{p.CaseNumber, p.VisaClass, p.Lottery, p.Year, p.EmployerParent, p.EmployerName,
		p.State, p.City, p.JobTitle, p.NormalizedTitle, p.SOCTitle, p.Wage, p.WageLevel}
}

// WriteDuckDB writes petitions into a new DuckDB file at path
func WriteDuckDB(t *testing.T, path, table string, petitions []Petition) {
	t.Helper()

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("Failed to open fixture database: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(CreateTableSQL(table)); err != nil {
		t.Fatalf("Failed to create fixture table: %v", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("Failed to begin fixture insert: %v", err)
	}
	stmt, err := tx.Prepare(InsertSQL(table))
	if err != nil {
		t.Fatalf("Failed to prepare fixture insert: %v", err)
	}
	for _, p := range petitions {
		if _, err := stmt.Exec(p.Args()...); err != nil {
			t.Fatalf("Failed to insert fixture petition %s: %v", p.CaseNumber, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit fixtures: %v", err)
	}
}

// NewDuckDBFile writes petitions into a fresh file under t.TempDir and
// returns its path. The default table name is used.
func NewDuckDBFile(t *testing.T, petitions []Petition) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "petitions.duckdb")
	WriteDuckDB(t, path, database.DefaultTable, petitions)
	return path
}

// OpenStandard writes StandardPetitions and opens a read-only handle on it
func OpenStandard(t *testing.T) *database.DB {
	t.Helper()
	return OpenDuckDB(t, StandardPetitions())
}

// OpenDuckDB writes petitions and opens a read-only handle on them
func OpenDuckDB(t *testing.T, petitions []Petition) *database.DB {
	t.Helper()
	path := NewDuckDBFile(t, petitions)
	db, err := database.New(database.DefaultConfig(path))
	if err != nil {
		t.Fatalf("Failed to create handle: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// StandardPool builds a pool of size read-only handles over StandardPetitions
func StandardPool(t *testing.T, size int) *database.Pool {
	t.Helper()
	return NewPool(t, StandardPetitions(), size)
}

// NewPool writes petitions and builds a pool of size handles over them
func NewPool(t *testing.T, petitions []Petition, size int) *database.Pool {
	t.Helper()
	path := NewDuckDBFile(t, petitions)
	pool, err := database.NewPool(size, func(int) (database.DatabaseInterface, error) {
		return database.New(database.DefaultConfig(path))
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}
