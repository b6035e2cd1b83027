package mocks

import (
	"context"
	"sync"

	"github.com/h1bexplorer/internal/storage"
)

// MockStorage is a scripted storage.Operations. Fetch results are looked up
// by FetchFunc when set, otherwise Table is returned. Err, when set, fails
// every call.
type MockStorage struct {
	mu sync.Mutex

	// Mock data
	Values       map[string][]string // ListDistinct results by column
	Years        []int
	Table        *storage.ResultTable
	FetchFunc    func(kind string, filters storage.FilterState, spec storage.AggregationSpec) (*storage.ResultTable, error)
	Print        storage.Fingerprint
	Err          error
	CityList     []string
	JobTitleList []string
	SOCList      []string

	// Call tracking
	Calls       map[string]int
	LastFilters storage.FilterState
	Closed      bool
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		Values: map[string][]string{},
		Table:  storage.EmptyTable(),
		Calls:  map[string]int{},
	}
}

func (m *MockStorage) record(op string, filters storage.FilterState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[op]++
	m.LastFilters = filters
}

// CallCount returns how often op was called
func (m *MockStorage) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

func (m *MockStorage) ListDistinct(ctx context.Context, column string, filters storage.FilterState) ([]string, error) {
	m.record("ListDistinct", filters)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Values[column], nil
}

func (m *MockStorage) ListYears(ctx context.Context, filters storage.FilterState) ([]int, error) {
	m.record("ListYears", filters)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Years, nil
}

func (m *MockStorage) fetch(kind string, filters storage.FilterState, spec storage.AggregationSpec) (*storage.ResultTable, error) {
	m.record(kind, filters)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FetchFunc != nil {
		return m.FetchFunc(kind, filters, spec)
	}
	return m.Table, nil
}

func (m *MockStorage) Fetch(ctx context.Context, filters storage.FilterState, spec storage.AggregationSpec) (*storage.ResultTable, error) {
	return m.fetch("Fetch", filters, spec)
}

func (m *MockStorage) FetchGeographic(ctx context.Context, filters storage.FilterState, spec storage.AggregationSpec) (*storage.ResultTable, error) {
	return m.fetch("FetchGeographic", filters, spec)
}

func (m *MockStorage) FetchYearly(ctx context.Context, filters storage.FilterState, spec storage.AggregationSpec) (*storage.ResultTable, error) {
	return m.fetch("FetchYearly", filters, spec)
}

func (m *MockStorage) Cities(ctx context.Context, filters storage.FilterState) ([]string, error) {
	m.record("Cities", filters)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.CityList, nil
}

func (m *MockStorage) JobTitles(ctx context.Context, filters storage.FilterState) ([]string, error) {
	m.record("JobTitles", filters)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.JobTitleList, nil
}

func (m *MockStorage) SOCTitles(ctx context.Context, filters storage.FilterState) ([]string, error) {
	m.record("SOCTitles", filters)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.SOCList, nil
}

func (m *MockStorage) Fingerprint(ctx context.Context) (storage.Fingerprint, error) {
	m.record("Fingerprint", storage.FilterState{})
	if m.Err != nil {
		return storage.Fingerprint{}, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Print, nil
}

// SetFingerprint changes the reported dataset version
func (m *MockStorage) SetFingerprint(f storage.Fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Print = f
}

func (m *MockStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ storage.Operations = (*MockStorage)(nil)
