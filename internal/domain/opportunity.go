package domain

import "time"

// Coordinates - пара широта/долгота (WGS84)
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

type OpportunityType string

const (
	TypeInPerson OpportunityType = "in-person"
	TypeVirtual  OpportunityType = "virtual"
	TypeBoth     OpportunityType = "both"
)

func (t OpportunityType) IsValid() bool {
	switch t {
	case TypeInPerson, TypeVirtual, TypeBoth:
		return true
	}
	return false
}

type ContactInfo struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// Opportunity - одно волонтёрское предложение, нормализованное адаптером провайдера.
// Поля Distance и дефолты проставляет только процессор результатов,
// оркестратор и кеш запись не трогают.
type Opportunity struct {
	ID                  string          `json:"id"`
	Source              string          `json:"source"`
	Title               string          `json:"title"`
	Organization        string          `json:"organization"`
	Description         string          `json:"description"`
	Location            string          `json:"location"`
	Coordinates         *Coordinates    `json:"coordinates,omitempty"`
	Type                OpportunityType `json:"type"`
	Cause               string          `json:"cause"`
	Skills              []string        `json:"skills"`
	TimeCommitment      string          `json:"timeCommitment"`
	Date                string          `json:"date"`
	Participants        int             `json:"participants,omitempty"`
	Contact             ContactInfo     `json:"contactInfo"`
	ExternalURL         string          `json:"externalUrl"`
	Image               string          `json:"image,omitempty"`
	LastUpdated         time.Time       `json:"lastUpdated"`
	Verified            bool            `json:"verified"`
	Distance            *float64        `json:"distance,omitempty"` // мили, отсутствует у virtual
	ApplicationDeadline string          `json:"applicationDeadline,omitempty"`
	Requirements        []string        `json:"requirements,omitempty"`
}

// Virtual - удалённые предложения не имеют дистанции и не режутся радиусом
func (o *Opportunity) Virtual() bool {
	return o.Type == TypeVirtual
}
