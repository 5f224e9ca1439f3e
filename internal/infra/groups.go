package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GroupInfo is one pricing group as the external classification service
// defines it. ExternalID is the service's stable identifier for the group;
// Code is what price list documents reference.
type GroupInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ExternalID string `json:"id"`
}

// GroupsClient talks to the external classification service that owns pricing
// group definitions. Lookups go through a circuit breaker so a slow or dead
// service cannot stall imports: callers fall back to locally cached groups.
type GroupsClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

func NewGroupsClient(baseURL string, breaker *CircuitBreaker) *GroupsClient {
	return &GroupsClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker,
	}
}

// ListGroups fetches every pricing group the classification service knows.
// Returns ErrCircuitOpen immediately while the breaker is tripped.
func (c *GroupsClient) ListGroups(ctx context.Context) ([]GroupInfo, error) {
	var groups []GroupInfo
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pricing-groups", nil)
		if err != nil {
			return fmt.Errorf("groups: create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("groups: service unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("groups: service returned %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&groups)
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ResolveGroup looks up a single group by code.
// A 404 maps to (nil, nil) so callers can distinguish "unknown code" from
// "service down".
func (c *GroupsClient) ResolveGroup(ctx context.Context, code string) (*GroupInfo, error) {
	var info *GroupInfo
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pricing-groups/"+code, nil)
		if err != nil {
			return fmt.Errorf("groups: create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("groups: service unreachable: %w", err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			info = &GroupInfo{}
			return json.NewDecoder(resp.Body).Decode(info)
		case http.StatusNotFound:
			return nil
		default:
			return fmt.Errorf("groups: service returned %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
