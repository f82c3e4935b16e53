package domain

import "time"

// LocationInfo - разрешённый адрес от геокодера
type LocationInfo struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// ParsedLocation - один геокодированный элемент мультилокационного запроса.
// После геокодинга не мутируется.
type ParsedLocation struct {
	OriginalInput string       `json:"originalInput"`
	Info          LocationInfo `json:"locationInfo"`
	Coordinates   Coordinates  `json:"coordinates"`
	Index         int          `json:"index"` // позиция во вводе
}

// LocationGroup - результат поиска по одной локации.
// SearchSuccess с ненулевым Err - частичный успех: результаты есть,
// но часть источников упала.
type LocationGroup struct {
	Location      ParsedLocation `json:"location"`
	Opportunities []Opportunity  `json:"opportunities"`
	SearchSuccess bool           `json:"searchSuccess"`
	Err           *SearchError   `json:"error,omitempty"`
}

// LocatedOpportunity - предложение со штампом локации, из которой его нашли
type LocatedOpportunity struct {
	Opportunity
	SearchLocation    string      `json:"searchLocation"`
	SearchCoordinates Coordinates `json:"searchCoordinates"`
	OriginalInput     string      `json:"originalLocationInput"`
}

type LocationCount struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// SearchStatistics - агрегат по мультилокационному прогону, пересчитывается каждый раз.
// Инвариант: SuccessfulLocations + FailedLocations == TotalLocations.
type SearchStatistics struct {
	TotalLocations                  int             `json:"totalLocations"`
	SuccessfulLocations             int             `json:"successfulLocations"`
	FailedLocations                 int             `json:"failedLocations"`
	TotalOpportunities              int             `json:"totalOpportunities"`
	AverageOpportunitiesPerLocation int             `json:"averageOpportunitiesPerLocation"`
	LocationBreakdown               []LocationCount `json:"locationBreakdown"`
}

// MultiSearchResult - итог мультилокационного поиска
type MultiSearchResult struct {
	Groups         []LocationGroup      `json:"groups"`
	Opportunities  []LocatedOpportunity `json:"opportunities"`
	Statistics     SearchStatistics     `json:"statistics"`
	Errors         []SearchError        `json:"errors,omitempty"`
	PartialResults bool                 `json:"partialResults"`
	ResponseTime   time.Duration        `json:"responseTime"`
}

// LocationValidation - результат проверки пользовательского ввода локаций
type LocationValidation struct {
	Valid       bool     `json:"valid"`
	Message     string   `json:"message,omitempty"`
	ParsedCount int      `json:"parsedCount"`
	Suggestions []string `json:"suggestions,omitempty"`
}
