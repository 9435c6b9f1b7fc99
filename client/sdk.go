package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// projectKeyHeader carries the project API key on SDK requests.
const projectKeyHeader = "X-API-Key"

// ErrNoProjectKey is returned by SDK calls on a client built without WithProjectKey.
var ErrNoProjectKey = errors.New("buildhub: project key not configured")

// SDKService fetches the active build payload the way an app SDK does.
type SDKService struct {
	c *Client
}

// Active returns the project's active builds for mode ("preview" or "production").
func (s *SDKService) Active(ctx context.Context, mode string) (*ActivePayload, error) {
	if s.c.projectKey == "" {
		return nil, ErrNoProjectKey
	}

	header := http.Header{}
	header.Set(projectKeyHeader, s.c.projectKey)

	body, err := s.c.send(ctx, http.MethodGet, "/api/v1/sdk/builds/"+url.PathEscape(mode), nil, header)
	if err != nil {
		return nil, err
	}

	var payload ActivePayload
	if err := decode(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
