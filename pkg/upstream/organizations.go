package upstream

import (
	"context"
	"net/http"
	"time"
)

// Organization is the backend organization record
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// OrganizationPatch carries the mutable organization fields
type OrganizationPatch struct {
	Name     *string `json:"name,omitempty"`
	Industry *string `json:"industry,omitempty"`
}

// OrganizationsService accesses the backend organization resource
type OrganizationsService struct {
	client *Client
}

// Organizations returns the organization resource service
func (c *Client) Organizations() *OrganizationsService {
	return &OrganizationsService{client: c}
}

// Current fetches the caller's organization settings
func (s *OrganizationsService) Current(ctx context.Context) (*Organization, error) {
	var org Organization
	if err := s.client.do(ctx, http.MethodGet, "/api/organizations/current/", nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// UpdateCurrent patches the caller's organization settings
func (s *OrganizationsService) UpdateCurrent(ctx context.Context, patch OrganizationPatch) (*Organization, error) {
	var org Organization
	if err := s.client.do(ctx, http.MethodPatch, "/api/organizations/current/", patch, &org); err != nil {
		return nil, err
	}
	return &org, nil
}
