package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"referral-map/backend/internal/graph"
	apperrors "referral-map/backend/pkg/errors"
	"referral-map/backend/pkg/logger"
)

// PlacesClient queries the Google Places text search endpoint
type PlacesClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// textSearchResponse is the body of a text search reply
type textSearchResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Results      []json.RawMessage `json:"results"`
}

// NewPlacesClient creates a new places client. baseURL points at the
// place API root, e.g. https://maps.googleapis.com/maps/api/place.
func NewPlacesClient(apiKey, baseURL string, timeout time.Duration) *PlacesClient {
	return &PlacesClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Get(),
	}
}

// Search runs one text search for query
func (c *PlacesClient) Search(ctx context.Context, query string) (Status, []graph.PlaceResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "/textsearch/json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", nil, apperrors.NewLookupRequestFailed(query, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Searching places", zap.String("query", query))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, apperrors.NewLookupRequestFailed(query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, apperrors.NewLookupRequestFailed(query, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Places API error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("query", query),
			zap.String("response_body", string(body)),
		)
		return "", nil, apperrors.NewLookupRequestFailed(query, fmt.Errorf("places API error: status %d", resp.StatusCode))
	}

	var decoded textSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", nil, apperrors.NewLookupRequestFailed(query, fmt.Errorf("failed to decode response: %w", err))
	}

	results := make([]graph.PlaceResult, 0, len(decoded.Results))
	for _, raw := range decoded.Results {
		var result graph.PlaceResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", nil, apperrors.NewLookupRequestFailed(query, fmt.Errorf("failed to decode result: %w", err))
		}
		results = append(results, result)
	}

	status := Status(decoded.Status)
	if Classify(status, len(results)) == OutcomeFatal {
		c.logger.Warn("Places search returned fatal status",
			zap.String("query", query),
			zap.String("status", decoded.Status),
			zap.String("error_message", decoded.ErrorMessage),
		)
	}

	return status, results, nil
}
