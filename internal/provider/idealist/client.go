package idealist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

// Client - адаптер Idealist API (GET, вложенные listing-объекты)
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
		cfg.BaseURL = "https://api.idealist.org"
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

func (c *Client) Name() string                { return provider.SourceIdealist }
func (c *Client) RateLimit() ratelimit.Config { return c.limits }
func (c *Client) Retry() retry.Config         { return c.retry }

type listingsEnvelope struct {
	Data []listing `json:"data"`
}

type listingEnvelope struct {
	Data listing `json:"data"`
}

type listing struct {
	ID    string `json:"id"`
	Attrs struct {
		Name     string `json:"name"`
		Org      struct {
			Name string `json:"name"`
		} `json:"org"`
		Description string `json:"description"`
		Remote      bool   `json:"remote"`
		Locality    struct {
			City    string   `json:"city"`
			Region  string   `json:"region"`
			Country string   `json:"country"`
			LatLng  []float64 `json:"latLng"` // [lat, lng]
		} `json:"locality"`
		AreasOfFocus []string `json:"areasOfFocus"`
		Skills       []string `json:"skills"`
		Commitment   string   `json:"commitment"`
		StartsAt     string   `json:"startsAt"`
		GroupSize    int      `json:"groupSize"`
		Contact      struct {
			Email string `json:"email"`
			Phone string `json:"phone"`
			URL   string `json:"url"`
		} `json:"contact"`
		URL       string `json:"url"`
		ImageURL  string `json:"imageUrl"`
		UpdatedAt string `json:"updatedAt"`
		Deadline  string `json:"applyBy"`
	} `json:"attributes"`
}

func (c *Client) Search(ctx context.Context, params domain.SearchParameters) ([]domain.Opportunity, error) {
	q := url.Values{}
	q.Set("type", "VOLOP")
	q.Set("lat", strconv.FormatFloat(params.Location.Lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(params.Location.Lng, 'f', 6, 64))
	q.Set("radius", strconv.FormatFloat(params.RadiusMiles, 'f', 1, 64))
	if params.Keywords != "" {
		q.Set("query", params.Keywords)
	}
	for _, cause := range params.Causes {
		q.Add("areasOfFocus", cause)
	}
	switch params.Type {
	case domain.TypeVirtual:
		q.Set("remote", "only")
	case domain.TypeInPerson:
		q.Set("remote", "exclude")
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	body, err := c.get(ctx, "/v1/listings?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var env listingsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	opps := make([]domain.Opportunity, 0, len(env.Data))
	for _, l := range env.Data {
		opps = append(opps, c.normalize(l))
	}
	return opps, nil
}

func (c *Client) Details(ctx context.Context, id string) (*domain.Opportunity, error) {
	body, err := c.get(ctx, "/v1/listings/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var env listingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal listing: %w", err)
	}

	opp := c.normalize(env.Data)
	return &opp, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, "/v1/health")
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.SetBasicAuth(c.apiKey, "")

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

func (c *Client) normalize(l listing) domain.Opportunity {
	a := l.Attrs

	typ := domain.TypeInPerson
	if a.Remote {
		typ = domain.TypeVirtual
	}

	location := a.Locality.City
	if a.Locality.Region != "" {
		location += ", " + a.Locality.Region
	}

	cause := ""
	if len(a.AreasOfFocus) > 0 {
		cause = a.AreasOfFocus[0]
	}

	opp := domain.Opportunity{
		ID:                  l.ID,
		Source:              provider.SourceIdealist,
		Title:               a.Name,
		Organization:        a.Org.Name,
		Description:         a.Description,
		Location:            location,
		Type:                typ,
		Cause:               cause,
		Skills:              a.Skills,
		TimeCommitment:      a.Commitment,
		Date:                a.StartsAt,
		Participants:        a.GroupSize,
		Contact:             domain.ContactInfo{Email: a.Contact.Email, Phone: a.Contact.Phone, Website: a.Contact.URL},
		ExternalURL:         a.URL,
		Image:               a.ImageURL,
		ApplicationDeadline: a.Deadline,
	}
	if len(a.Locality.LatLng) == 2 {
		opp.Coordinates = &domain.Coordinates{Lat: a.Locality.LatLng[0], Lng: a.Locality.LatLng[1]}
	}
	if ts, err := time.Parse(time.RFC3339, a.UpdatedAt); err == nil {
		opp.LastUpdated = ts
	}
	return opp
}
