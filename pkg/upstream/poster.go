package upstream

import (
	"context"
	"net/http"
	"time"
)

// Poster calls are the slow path: the backend drives an external AI
// service. Each operation carries its own deadline instead of the client
// default; these are the only calls in the gateway with explicit
// per-operation timeouts.
type PosterTimeouts struct {
	Generate  time.Duration
	Edit      time.Duration
	Composite time.Duration
	Status    time.Duration
}

// DefaultPosterTimeouts mirrors the limits the product has always run with
func DefaultPosterTimeouts() PosterTimeouts {
	return PosterTimeouts{
		Generate:  45 * time.Second,
		Edit:      30 * time.Second,
		Composite: 45 * time.Second,
		Status:    15 * time.Second,
	}
}

// PosterRequest describes a generation request
type PosterRequest struct {
	Prompt      string   `json:"prompt"`
	Style       string   `json:"style,omitempty"`
	FabricImage string   `json:"fabric_image,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
}

// PosterEditRequest describes an edit of an existing poster
type PosterEditRequest struct {
	PosterID    string `json:"poster_id"`
	Instruction string `json:"instruction"`
}

// PosterCompositeRequest merges a product shot into a generated scene
type PosterCompositeRequest struct {
	PosterID     string `json:"poster_id"`
	ProductImage string `json:"product_image"`
}

// Poster is a generated poster reference
type Poster struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"image_url"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PosterServiceStatus is the AI service health report
type PosterServiceStatus struct {
	Available bool   `json:"available"`
	Model     string `json:"model,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PosterService accesses the AI poster endpoints
type PosterService struct {
	client   *Client
	timeouts PosterTimeouts
}

// Poster returns the AI poster service
func (c *Client) Poster(timeouts PosterTimeouts) *PosterService {
	if timeouts == (PosterTimeouts{}) {
		timeouts = DefaultPosterTimeouts()
	}
	return &PosterService{client: c, timeouts: timeouts}
}

// Generate creates a new poster from a prompt
func (s *PosterService) Generate(ctx context.Context, req PosterRequest) (*Poster, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Generate)
	defer cancel()

	var p Poster
	if err := s.client.doSlow(ctx, http.MethodPost, "/api/ai/ai-poster/generate_poster/", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Edit applies an instruction to an existing poster
func (s *PosterService) Edit(ctx context.Context, req PosterEditRequest) (*Poster, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Edit)
	defer cancel()

	var p Poster
	if err := s.client.doSlow(ctx, http.MethodPost, "/api/ai/ai-poster/edit_poster/", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Composite merges a product image into a poster
func (s *PosterService) Composite(ctx context.Context, req PosterCompositeRequest) (*Poster, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Composite)
	defer cancel()

	var p Poster
	if err := s.client.doSlow(ctx, http.MethodPost, "/api/ai/ai-poster/composite_poster/", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Status checks the AI service health
func (s *PosterService) Status(ctx context.Context) (*PosterServiceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Status)
	defer cancel()

	var st PosterServiceStatus
	if err := s.client.doSlow(ctx, http.MethodGet, "/api/ai/ai-poster/status/", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
