package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/voluntr/oppsearch/internal/domain"
	geomock "github.com/voluntr/oppsearch/internal/geo/mock"
)

// stubSearcher отдаёт заготовленный результат по координатам локации
type stubSearcher struct {
	results map[string]*domain.SearchResult
}

func coordKey(c domain.Coordinates) string {
	return fmt.Sprintf("%.1f,%.1f", c.Lat, c.Lng)
}

func (s *stubSearcher) PerformSearch(ctx context.Context, params domain.SearchParameters, opts Options) (*domain.SearchResult, error) {
	if res, ok := s.results[coordKey(params.Location)]; ok {
		return res, nil
	}
	return nil, errors.New("unexpected location")
}

func TestParseLocationInput(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"New York", []string{"New York"}},
		{"New York, Boston, Chicago", []string{"New York", "Boston", "Chicago"}},
		{"  New York ,  Boston  ", []string{"New York", "Boston"}},
		{"New York, new york, NYC", []string{"New York", "NYC"}},
		{"New York,,Boston", []string{"New York", "Boston"}},
		{"", nil},
		{" , , ", nil},
	}
	for _, tt := range tests {
		if got := ParseLocationInput(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseLocationInput(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsMultiLocationInput(t *testing.T) {
	if IsMultiLocationInput("New York") {
		t.Error("single location should not be multi")
	}
	if !IsMultiLocationInput("New York, Boston") {
		t.Error("two locations should be multi")
	}
	if IsMultiLocationInput("New York, new york") {
		t.Error("case-insensitive duplicates collapse to a single location")
	}
}

func TestValidateLocationInput(t *testing.T) {
	if v := ValidateLocationInput(""); v.Valid {
		t.Error("empty input should be invalid")
	}
	if v := ValidateLocationInput("  ,  "); v.Valid {
		t.Error("input without locations should be invalid")
	}

	if v := ValidateLocationInput("New York, X"); v.Valid {
		t.Error("single-character location should be invalid")
	}

	long := "a1, a2, a3, a4, a5, a6, a7, a8, a9, a10, a11"
	if v := ValidateLocationInput(long); v.Valid {
		t.Error("more than 10 locations should be invalid")
	} else if v.ParsedCount != 11 {
		t.Errorf("ParsedCount = %d, want 11", v.ParsedCount)
	}

	v := ValidateLocationInput("New York, Boston")
	if !v.Valid {
		t.Fatalf("valid input rejected: %s", v.Message)
	}
	if v.ParsedCount != 2 {
		t.Errorf("ParsedCount = %d, want 2", v.ParsedCount)
	}
	if len(v.Suggestions) == 0 {
		t.Error("multi-location input should come with suggestions")
	}

	if v := ValidateLocationInput("New York"); len(v.Suggestions) != 0 {
		t.Error("single location should not produce suggestions")
	}
}

func TestGeocodeLocations_PartialFailure(t *testing.T) {
	g := geomock.New().
		WithLocation("New York", domain.Coordinates{Lat: 40.7, Lng: -74.0}).
		WithFailure("Atlantis")
	s := NewMultiLocationService(g, nil, nil, nil)

	parsed, err := s.GeocodeLocations(context.Background(), []string{"New York", "Atlantis"})
	if err != nil {
		t.Fatalf("GeocodeLocations() error = %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("len(parsed) = %d, want 1 (failed location dropped)", len(parsed))
	}
	if parsed[0].OriginalInput != "New York" || parsed[0].Index != 0 {
		t.Errorf("parsed[0] = %+v, want New York at index 0", parsed[0])
	}
}

func TestGeocodeLocations_AllFail(t *testing.T) {
	g := geomock.New().WithFailure("Atlantis").WithFailure("El Dorado")
	s := NewMultiLocationService(g, nil, nil, nil)

	_, err := s.GeocodeLocations(context.Background(), []string{"Atlantis", "El Dorado"})
	if !errors.Is(err, domain.ErrAllGeocodingFailed) {
		t.Errorf("error = %v, want ErrAllGeocodingFailed", err)
	}
}

func TestSearch_GroupsAndStatistics(t *testing.T) {
	ny := domain.Coordinates{Lat: 40.7, Lng: -74.0}
	boston := domain.Coordinates{Lat: 42.4, Lng: -71.1}
	chicago := domain.Coordinates{Lat: 41.9, Lng: -87.6}

	g := geomock.New().
		WithLocation("New York", ny).
		WithLocation("Boston", boston).
		WithLocation("Chicago", chicago)

	searcher := &stubSearcher{results: map[string]*domain.SearchResult{
		coordKey(ny):     {Opportunities: opps("Park Cleanup", "Tutoring"), Sources: []string{"A"}, TotalResults: 2},
		coordKey(boston): {Opportunities: opps("Beach Cleanup"), Sources: []string{"A"}, TotalResults: 1},
		coordKey(chicago): {
			Errors:         []domain.SearchError{*domain.NewSearchError("A", domain.ErrorServer, "boom")},
			PartialResults: true,
		},
	}}
	s := NewMultiLocationService(g, searcher, nil, nil)

	res, err := s.Search(context.Background(), "New York, Boston, Chicago", domain.SearchParameters{RadiusMiles: 25}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(res.Groups) != 3 {
		t.Fatalf("len(Groups) = %d, want 3", len(res.Groups))
	}
	// группы сохраняют порядок ввода
	for i, want := range []string{"New York", "Boston", "Chicago"} {
		if res.Groups[i].Location.OriginalInput != want {
			t.Errorf("Groups[%d] = %s, want %s", i, res.Groups[i].Location.OriginalInput, want)
		}
	}
	if res.Groups[2].SearchSuccess {
		t.Error("Chicago group should be marked failed")
	}

	st := res.Statistics
	if st.TotalLocations != 3 || st.SuccessfulLocations != 2 || st.FailedLocations != 1 {
		t.Errorf("locations = %d/%d/%d, want 3/2/1", st.TotalLocations, st.SuccessfulLocations, st.FailedLocations)
	}
	if st.TotalOpportunities != 3 {
		t.Errorf("TotalOpportunities = %d, want 3", st.TotalOpportunities)
	}
	// 3 предложения на 2 успешные локации: round(1.5) = 2
	if st.AverageOpportunitiesPerLocation != 2 {
		t.Errorf("AverageOpportunitiesPerLocation = %d, want 2", st.AverageOpportunitiesPerLocation)
	}

	if len(res.Opportunities) != 3 {
		t.Fatalf("len(Opportunities) = %d, want 3 merged", len(res.Opportunities))
	}
	for _, lo := range res.Opportunities {
		if lo.SearchLocation == "" || lo.OriginalInput == "" {
			t.Errorf("merged opportunity %s missing location context", lo.ID)
		}
	}

	if !res.PartialResults || len(res.Errors) != 1 {
		t.Errorf("partial = %v, errors = %d, want partial with 1 error", res.PartialResults, len(res.Errors))
	}
}

func TestSearch_EmptyLocationsAreNotFailures(t *testing.T) {
	ny := domain.Coordinates{Lat: 40.7, Lng: -74.0}
	nowhere := domain.Coordinates{Lat: 44.0, Lng: -70.0}

	g := geomock.New().
		WithLocation("New York", ny).
		WithLocation("Nowhere", nowhere)

	searcher := &stubSearcher{results: map[string]*domain.SearchResult{
		coordKey(ny):      {Opportunities: opps("Park Cleanup"), TotalResults: 1},
		coordKey(nowhere): {Opportunities: nil, TotalResults: 0},
	}}
	s := NewMultiLocationService(g, searcher, nil, nil)

	res, err := s.Search(context.Background(), "New York, Nowhere", domain.SearchParameters{RadiusMiles: 25}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if res.PartialResults {
		t.Error("location with zero results but no errors must not mark the search partial")
	}
	if res.Statistics.SuccessfulLocations != 2 {
		t.Errorf("SuccessfulLocations = %d, want 2", res.Statistics.SuccessfulLocations)
	}
}

func TestSearch_PartialProviderErrorsSurface(t *testing.T) {
	ny := domain.Coordinates{Lat: 40.7, Lng: -74.0}
	g := geomock.New().WithLocation("New York", ny)

	searcher := &stubSearcher{results: map[string]*domain.SearchResult{
		coordKey(ny): {
			Opportunities:  opps("Park Cleanup"),
			Errors:         []domain.SearchError{*domain.NewSearchError("B", domain.ErrorServer, "boom")},
			PartialResults: true,
			TotalResults:   1,
		},
	}}
	s := NewMultiLocationService(g, searcher, nil, nil)

	res, err := s.Search(context.Background(), "New York", domain.SearchParameters{RadiusMiles: 25}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if !res.Groups[0].SearchSuccess {
		t.Error("location with results should count as successful")
	}
	if res.Groups[0].Err == nil {
		t.Error("provider failure inside a successful location should stay on the group")
	}
	if !res.PartialResults || len(res.Errors) != 1 {
		t.Errorf("partial = %v, errors = %d, want partial with 1 error", res.PartialResults, len(res.Errors))
	}
	if st := res.Statistics; st.SuccessfulLocations != 1 || st.FailedLocations != 0 {
		t.Errorf("locations = %d/%d, want 1 successful and 0 failed", st.SuccessfulLocations, st.FailedLocations)
	}
}

func TestSearch_InputErrors(t *testing.T) {
	s := NewMultiLocationService(geomock.New(), nil, nil, nil)

	if _, err := s.Search(context.Background(), "", domain.SearchParameters{}, Options{}); !errors.Is(err, domain.ErrEmptyLocation) {
		t.Errorf("empty input: error = %v, want ErrEmptyLocation", err)
	}

	long := "a1, a2, a3, a4, a5, a6, a7, a8, a9, a10, a11"
	if _, err := s.Search(context.Background(), long, domain.SearchParameters{}, Options{}); !errors.Is(err, domain.ErrTooManyLocations) {
		t.Errorf("11 locations: error = %v, want ErrTooManyLocations", err)
	}

	// короткий элемент отбрасывается валидацией, до геокодера не доходит
	if _, err := s.Search(context.Background(), "New York, X", domain.SearchParameters{}, Options{}); !errors.Is(err, domain.ErrLocationTooShort) {
		t.Errorf("short location: error = %v, want ErrLocationTooShort", err)
	}
}

func TestStatistics_NoSuccessfulLocations(t *testing.T) {
	groups := []domain.LocationGroup{
		{Location: domain.ParsedLocation{OriginalInput: "A"}},
		{Location: domain.ParsedLocation{OriginalInput: "B"}},
	}
	st := Statistics(groups)
	if st.AverageOpportunitiesPerLocation != 0 {
		t.Errorf("average = %d, want 0 without successful locations", st.AverageOpportunitiesPerLocation)
	}
	if st.SuccessfulLocations+st.FailedLocations != st.TotalLocations {
		t.Error("successful + failed must equal total")
	}
}
