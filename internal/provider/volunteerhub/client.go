package volunteerhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/provider"
	"github.com/voluntr/oppsearch/internal/ratelimit"
	"github.com/voluntr/oppsearch/internal/retry"
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Limits  ratelimit.Config
	Retry   retry.Config
}

// Client - адаптер VolunteerHub API (POST + JSON body).
// Повторы здесь не делаем: этим занимается retry.Executor в оркестраторе.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	limits  ratelimit.Config
	retry   retry.Config
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.volunteerhub.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		limits:  cfg.Limits,
		retry:   cfg.Retry,
	}
}

func (c *Client) Name() string                  { return provider.SourceVolunteerHub }
func (c *Client) RateLimit() ratelimit.Config   { return c.limits }
func (c *Client) Retry() retry.Config           { return c.retry }

type searchRequest struct {
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	RadiusMiles float64  `json:"radius_miles"`
	Keywords    string   `json:"keywords,omitempty"`
	Causes      []string `json:"causes,omitempty"`
	EventType   string   `json:"event_type,omitempty"`
	PageSize    int      `json:"page_size,omitempty"`
}

type searchResponse struct {
	Events []event `json:"events"`
	Total  int     `json:"total"`
}

type event struct {
	UID          string   `json:"uid"`
	Title        string   `json:"title"`
	OrgName      string   `json:"organization_name"`
	Description  string   `json:"description"`
	Address      string   `json:"address"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	EventType    string   `json:"event_type"`
	Cause        string   `json:"cause_area"`
	Skills       []string `json:"skills_needed"`
	Commitment   string   `json:"time_commitment"`
	StartDate    string   `json:"start_date"`
	Capacity     int      `json:"capacity"`
	ContactEmail string   `json:"contact_email"`
	ContactPhone string   `json:"contact_phone"`
	DetailsURL   string   `json:"details_url"`
	ImageURL     string   `json:"image_url"`
	UpdatedAt    string   `json:"updated_at"`
	Verified     bool     `json:"verified"`
	Deadline     string   `json:"application_deadline"`
	Requirements []string `json:"requirements"`
}

func (c *Client) Search(ctx context.Context, params domain.SearchParameters) ([]domain.Opportunity, error) {
	req := searchRequest{
		Latitude:    params.Location.Lat,
		Longitude:   params.Location.Lng,
		RadiusMiles: params.RadiusMiles,
		Keywords:    params.Keywords,
		Causes:      params.Causes,
		EventType:   eventType(params.Type),
		PageSize:    params.Limit,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/api/v2/events/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	opps := make([]domain.Opportunity, 0, len(resp.Events))
	for _, ev := range resp.Events {
		opps = append(opps, c.normalize(ev))
	}
	return opps, nil
}

func (c *Client) Details(ctx context.Context, id string) (*domain.Opportunity, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/api/v2/events/"+id, nil)
	if err != nil {
		return nil, err
	}

	var ev event
	if err := json.Unmarshal(respBody, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	opp := c.normalize(ev)
	return &opp, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v2/ping", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return respBody, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, rateLimitError(resp.Header.Get("Retry-After"))
	case http.StatusBadRequest:
		return nil, domain.ErrInvalidRequest
	case http.StatusNotFound:
		return nil, domain.ErrOpportunityNotFound
	default:
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", domain.ErrServerError, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	}
}

// rateLimitError сохраняет Retry-After, если сервер его прислал
func rateLimitError(retryAfter string) error {
	se := domain.NewSearchError(provider.SourceVolunteerHub, domain.ErrorRateLimit, domain.ErrRateLimited.Error())
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		se.RetryAfter = time.Duration(secs) * time.Second
	}
	return se
}

func (c *Client) normalize(ev event) domain.Opportunity {
	opp := domain.Opportunity{
		ID:                  ev.UID,
		Source:              provider.SourceVolunteerHub,
		Title:               ev.Title,
		Organization:        ev.OrgName,
		Description:         ev.Description,
		Location:            ev.Address,
		Type:                opportunityType(ev.EventType),
		Cause:               ev.Cause,
		Skills:              ev.Skills,
		TimeCommitment:      ev.Commitment,
		Date:                ev.StartDate,
		Participants:        ev.Capacity,
		Contact:             domain.ContactInfo{Email: ev.ContactEmail, Phone: ev.ContactPhone},
		ExternalURL:         ev.DetailsURL,
		Image:               ev.ImageURL,
		Verified:            ev.Verified,
		ApplicationDeadline: ev.Deadline,
		Requirements:        ev.Requirements,
	}
	if ev.Latitude != nil && ev.Longitude != nil {
		opp.Coordinates = &domain.Coordinates{Lat: *ev.Latitude, Lng: *ev.Longitude}
	}
	if ts, err := time.Parse(time.RFC3339, ev.UpdatedAt); err == nil {
		opp.LastUpdated = ts
	}
	return opp
}

func eventType(t domain.OpportunityType) string {
	switch t {
	case domain.TypeVirtual:
		return "virtual"
	case domain.TypeInPerson:
		return "onsite"
	}
	return "" // both - без фильтра
}

func opportunityType(s string) domain.OpportunityType {
	if s == "virtual" {
		return domain.TypeVirtual
	}
	return domain.TypeInPerson
}
