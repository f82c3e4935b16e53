package domain

import (
	"sort"
	"strings"
	"time"
)

const MaxKeywordsLength = 200

// SearchParameters - неизменяемый вход одного прогона оркестратора
type SearchParameters struct {
	Location    Coordinates     `json:"location"`
	RadiusMiles float64         `json:"radius"`
	Keywords    string          `json:"keywords,omitempty"`
	Causes      []string        `json:"causes,omitempty"`
	Type        OpportunityType `json:"type"`
	Limit       int             `json:"limit,omitempty"`
}

func (p *SearchParameters) Validate() error {
	if !p.Location.Valid() {
		return ErrInvalidCoordinates
	}
	if p.RadiusMiles <= 0 {
		return ErrInvalidRadius
	}
	if p.Type != "" && !p.Type.IsValid() {
		return ErrInvalidType
	}
	if p.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

func (p *SearchParameters) Sanitize() {
	p.Keywords = strings.TrimSpace(p.Keywords)
	if len(p.Keywords) > MaxKeywordsLength {
		p.Keywords = p.Keywords[:MaxKeywordsLength]
	}
	if p.Type == "" {
		p.Type = TypeBoth
	}

	// причины: trim, lower, без дубликатов, порядок не важен
	seen := make(map[string]bool, len(p.Causes))
	causes := p.Causes[:0]
	for _, c := range p.Causes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		causes = append(causes, c)
	}
	sort.Strings(causes)
	p.Causes = causes
}

// ProviderResult - ответ одного провайдера в рамках одного прогона
type ProviderResult struct {
	Source        string
	Opportunities []Opportunity
	Success       bool
	Err           *SearchError
	ResponseTime  time.Duration
}

// SearchResult - итог одного прогона оркестратора
type SearchResult struct {
	Opportunities  []Opportunity  `json:"opportunities"`
	Errors         []SearchError  `json:"errors,omitempty"`
	PartialResults bool           `json:"partialResults"`
	TotalResults   int            `json:"totalResults"`
	Sources        []string       `json:"sources"`
	ResponseTime   time.Duration  `json:"responseTime"`
	FromCache      bool           `json:"fromCache"`
}

// SearchRun - запись журнала о завершённом прогоне (репозиторий)
type SearchRun struct {
	ID           string
	LocationKey  string
	Sources      []string
	TotalResults int
	ErrorCount   int
	Partial      bool
	FromCache    bool
	Duration     time.Duration
	CreatedAt    time.Time
}

// ProviderConfig - настройки одного провайдера, ключ - имя
type ProviderConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	PerMinute  int
	PerHour    int
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Enabled    bool
	UpdatedAt  time.Time
}
