package justserve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
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

// Client - адаптер JustServe API (GET + query string, км вместо миль)
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
		cfg.BaseURL = "https://api.justserve.org"
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

func (c *Client) Name() string                { return provider.SourceJustServe }
func (c *Client) RateLimit() ratelimit.Config { return c.limits }
func (c *Client) Retry() retry.Config         { return c.retry }

const milesPerKm = 0.621371

type projectList struct {
	Projects []project `json:"projects"`
}

type project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Sponsor     string  `json:"sponsor"`
	Summary     string  `json:"summary"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	IsVirtual   bool    `json:"isVirtual"`
	Category    string  `json:"category"`
	SkillTags   string  `json:"skillTags"` // comma-separated
	Hours       string  `json:"hoursNeeded"`
	Date        string  `json:"projectDate"`
	Volunteers  int     `json:"volunteersNeeded"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Website     string  `json:"website"`
	ProjectURL  string  `json:"projectUrl"`
	PhotoURL    string  `json:"photoUrl"`
	ModifiedUTC int64   `json:"modifiedUtc"` // unix seconds
	Approved    bool    `json:"approved"`
}

func (c *Client) Search(ctx context.Context, params domain.SearchParameters) ([]domain.Opportunity, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(params.Location.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(params.Location.Lng, 'f', 6, 64))
	q.Set("radiusKm", strconv.FormatFloat(params.RadiusMiles/milesPerKm, 'f', 1, 64))
	if params.Keywords != "" {
		q.Set("q", params.Keywords)
	}
	if len(params.Causes) > 0 {
		q.Set("categories", strings.Join(params.Causes, ","))
	}
	if params.Type == domain.TypeVirtual {
		q.Set("virtual", "true")
	}
	if params.Limit > 0 {
		q.Set("pageSize", strconv.Itoa(params.Limit))
	}

	body, err := c.get(ctx, "/api/projects?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var list projectList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	opps := make([]domain.Opportunity, 0, len(list.Projects))
	for _, p := range list.Projects {
		opps = append(opps, c.normalize(p))
	}
	return opps, nil
}

func (c *Client) Details(ctx context.Context, id string) (*domain.Opportunity, error) {
	body, err := c.get(ctx, "/api/projects/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var p project
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unmarshal project: %w", err)
	}

	opp := c.normalize(p)
	return &opp, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, "/api/status")
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
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

func (c *Client) normalize(p project) domain.Opportunity {
	typ := domain.TypeInPerson
	if p.IsVirtual {
		typ = domain.TypeVirtual
	}

	var skills []string
	for _, s := range strings.Split(p.SkillTags, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}

	location := p.City
	if p.State != "" {
		location = p.City + ", " + p.State
	}

	opp := domain.Opportunity{
		ID:             p.ID,
		Source:         provider.SourceJustServe,
		Title:          p.Name,
		Organization:   p.Sponsor,
		Description:    p.Summary,
		Location:       location,
		Type:           typ,
		Cause:          p.Category,
		Skills:         skills,
		TimeCommitment: p.Hours,
		Date:           p.Date,
		Participants:   p.Volunteers,
		Contact:        domain.ContactInfo{Email: p.Email, Phone: p.Phone, Website: p.Website},
		ExternalURL:    p.ProjectURL,
		Image:          p.PhotoURL,
		Verified:       p.Approved,
	}
	if p.Lat != 0 || p.Lon != 0 {
		opp.Coordinates = &domain.Coordinates{Lat: p.Lat, Lng: p.Lon}
	}
	if p.ModifiedUTC > 0 {
		opp.LastUpdated = time.Unix(p.ModifiedUTC, 0).UTC()
	}
	return opp
}
