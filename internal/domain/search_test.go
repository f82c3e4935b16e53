package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestSearchParameters_Validate(t *testing.T) {
	valid := SearchParameters{
		Location:    Coordinates{Lat: 40.7128, Lng: -74.006},
		RadiusMiles: 25,
		Type:        TypeBoth,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name    string
		mutate  func(*SearchParameters)
		wantErr error
	}{
		{"zero radius", func(p *SearchParameters) { p.RadiusMiles = 0 }, ErrInvalidRadius},
		{"negative radius", func(p *SearchParameters) { p.RadiusMiles = -5 }, ErrInvalidRadius},
		{"lat out of range", func(p *SearchParameters) { p.Location.Lat = 91 }, ErrInvalidCoordinates},
		{"lng out of range", func(p *SearchParameters) { p.Location.Lng = -181 }, ErrInvalidCoordinates},
		{"bad type", func(p *SearchParameters) { p.Type = "hybrid" }, ErrInvalidType},
		{"negative limit", func(p *SearchParameters) { p.Limit = -1 }, ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchParameters_Sanitize_Causes(t *testing.T) {
	p := SearchParameters{
		Location:    Coordinates{Lat: 40, Lng: -74},
		RadiusMiles: 10,
		Causes:      []string{"Environment", " education ", "environment", ""},
	}
	p.Sanitize()

	want := []string{"education", "environment"}
	if !reflect.DeepEqual(p.Causes, want) {
		t.Errorf("Sanitize() causes = %v, want %v", p.Causes, want)
	}
	if p.Type != TypeBoth {
		t.Errorf("Sanitize() type = %s, want %s", p.Type, TypeBoth)
	}
}

func TestOpportunityType_IsValid(t *testing.T) {
	for _, ot := range []OpportunityType{TypeInPerson, TypeVirtual, TypeBoth} {
		if !ot.IsValid() {
			t.Errorf("%s should be valid", ot)
		}
	}
	if OpportunityType("remote").IsValid() {
		t.Error("unknown type should be invalid")
	}
}
