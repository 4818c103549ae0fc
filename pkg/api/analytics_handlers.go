package api

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

// AnalyticsResponse aggregates the operator dashboard feed. Sections
// fail independently: a dead poster service must not blank out the
// user counts.
type AnalyticsResponse struct {
	Users         *UserStats                    `json:"users,omitempty"`
	UsersError    string                        `json:"users_error,omitempty"`
	Organization  *upstream.Organization        `json:"organization,omitempty"`
	OrgError      string                        `json:"organization_error,omitempty"`
	PosterService *upstream.PosterServiceStatus `json:"poster_service,omitempty"`
	PosterError   string                        `json:"poster_service_error,omitempty"`
}

// UserStats summarizes the user population
type UserStats struct {
	Total  int            `json:"total"`
	Active int            `json:"active"`
	ByRole map[string]int `json:"by_role"`
}

// Analytics fans out to the backend and assembles whatever came back.
// Only a total blackout (every section failed) turns into an error
// response.
func (h *AdminHandlers) Analytics(w http.ResponseWriter, r *http.Request) {
	var resp AnalyticsResponse

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		users, err := h.client.Users().List(ctx)
		if err != nil {
			resp.UsersError = "user stats unavailable"
			return nil
		}
		resp.Users = summarizeUsers(users)
		return nil
	})
	g.Go(func() error {
		org, err := h.client.Organizations().Current(ctx)
		if err != nil {
			resp.OrgError = "organization unavailable"
			return nil
		}
		resp.Organization = org
		return nil
	})
	g.Go(func() error {
		status, err := h.client.Poster(upstream.DefaultPosterTimeouts()).Status(ctx)
		if err != nil {
			resp.PosterError = "poster service unavailable"
			return nil
		}
		resp.PosterService = status
		return nil
	})
	g.Wait()

	if resp.Users == nil && resp.Organization == nil && resp.PosterService == nil {
		httputil.WriteBadGateway(w, "backend unreachable")
		return
	}
	httputil.WriteSuccess(w, resp)
}

func summarizeUsers(users []upstream.User) *UserStats {
	stats := &UserStats{
		Total:  len(users),
		ByRole: make(map[string]int),
	}
	for _, u := range users {
		if u.IsActive {
			stats.Active++
		}
		if u.Role != "" {
			stats.ByRole[u.Role]++
		}
	}
	return stats
}
