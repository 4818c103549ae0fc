package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is the backend user record
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Perms     []string  `json:"permissions,omitempty"`
	OrgID     string    `json:"organization_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DisplayName normalizes the backend's optional naming fields with a
// fixed precedence: name, then username, then email.
func (u *User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// UserPatch carries the mutable user fields for PATCH
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UsersService accesses the backend user resource
type UsersService struct {
	client *Client
}

// Users returns the user resource service
func (c *Client) Users() *UsersService {
	return &UsersService{client: c}
}

// List fetches the users visible to the caller
func (s *UsersService) List(ctx context.Context) ([]User, error) {
	var raw json.RawMessage
	if err := s.client.do(ctx, http.MethodGet, "/api/users/", nil, &raw); err != nil {
		return nil, err
	}
	return decodeUsers(raw)
}

// Current fetches the calling user's own profile
func (s *UsersService) Current(ctx context.Context) (*User, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("backend returned no profile for the current user")
	}
	return &users[0], nil
}

// Update patches a user record
func (s *UsersService) Update(ctx context.Context, id string, patch UserPatch) (*User, error) {
	var u User
	if err := s.client.do(ctx, http.MethodPatch, "/api/users/"+id+"/", patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a user
func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, "/api/users/"+id+"/", nil, nil)
}

// decodeUsers accepts both response shapes the backend produces: a bare
// array and a single object. The frontend used to probe this dynamically
// per call site; here the normalization happens once.
func decodeUsers(raw json.RawMessage) ([]User, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var users []User
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, fmt.Errorf("failed to decode user list: %w", err)
		}
		return users, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return []User{u}, nil
}
