package geo

import "context"

// MockService is a canned geocoder for testing.
type MockService struct {
	Place *Place
	Err   error

	Queries []string
}

func (m *MockService) Geocode(_ context.Context, query string) (*Place, error) {
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Place, nil
}

var _ Service = (*MockService)(nil)
