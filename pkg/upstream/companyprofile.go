package upstream

import (
	"context"
	"net/http"
)

// CompanyProfile is the branding profile posters are themed from
type CompanyProfile struct {
	ID          string   `json:"id"`
	CompanyName string   `json:"company_name"`
	LogoURL     string   `json:"logo_url,omitempty"`
	Colors      []string `json:"brand_colors,omitempty"`
	Tagline     string   `json:"tagline,omitempty"`
}

// CompanyProfileStatus reports branding completeness
type CompanyProfileStatus struct {
	Complete      bool     `json:"complete"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// CompanyProfilesService accesses the backend branding resource
type CompanyProfilesService struct {
	client *Client
}

// CompanyProfiles returns the branding resource service
func (c *Client) CompanyProfiles() *CompanyProfilesService {
	return &CompanyProfilesService{client: c}
}

// Get fetches the organization's branding profile
func (s *CompanyProfilesService) Get(ctx context.Context) (*CompanyProfile, error) {
	var p CompanyProfile
	if err := s.client.do(ctx, http.MethodGet, "/api/company-profiles/", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Status fetches branding completion status
func (s *CompanyProfilesService) Status(ctx context.Context) (*CompanyProfileStatus, error) {
	var st CompanyProfileStatus
	if err := s.client.do(ctx, http.MethodGet, "/api/company-profiles/status/", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
