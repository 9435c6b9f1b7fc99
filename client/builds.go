package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// BuildService handles build, mode and diff operations.
type BuildService struct {
	c *Client
}

type buildResponse struct {
	Build Build `json:"build"`
}

// Create snapshots the project's current configuration of one feature type into a new build.
func (s *BuildService) Create(ctx context.Context, req *CreateBuildRequest) (*Build, error) {
	var resp buildResponse
	if err := s.c.post(ctx, "/api/v1/builds", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Build, nil
}

// List returns a project's builds, newest first. featureType may be empty.
func (s *BuildService) List(ctx context.Context, projectID, featureType string) ([]Build, error) {
	params := url.Values{"projectId": {projectID}}
	if featureType != "" {
		params.Set("featureType", featureType)
	}
	var resp struct {
		Builds []Build `json:"builds"`
	}
	if err := s.c.get(ctx, "/api/v1/builds", params, &resp); err != nil {
		return nil, err
	}
	return resp.Builds, nil
}

// Get returns a build with its snapshots and creation change log.
func (s *BuildService) Get(ctx context.Context, id string) (*BuildDetail, error) {
	var resp BuildDetail
	if err := s.c.get(ctx, "/api/v1/builds/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update edits a build's name or description.
func (s *BuildService) Update(ctx context.Context, id string, req *UpdateBuildRequest) (*Build, error) {
	var resp buildResponse
	if err := s.c.patch(ctx, "/api/v1/builds/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Build, nil
}

// Delete removes an inactive build. Active builds yield a conflict error.
func (s *BuildService) Delete(ctx context.Context, id string) error {
	return s.c.del(ctx, "/api/v1/builds/"+url.PathEscape(id), nil)
}

// SetMode makes the build active in a mode.
func (s *BuildService) SetMode(ctx context.Context, id string, req *SetModeRequest) (*Build, error) {
	var resp buildResponse
	if err := s.c.patch(ctx, "/api/v1/builds/"+url.PathEscape(id)+"/mode", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Build, nil
}

// ClearMode removes the build's assignments for a mode.
func (s *BuildService) ClearMode(ctx context.Context, id, mode string) (*Build, error) {
	var resp buildResponse
	path := "/api/v1/builds/" + url.PathEscape(id) + "/mode/" + url.PathEscape(mode)
	if err := s.c.del(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp.Build, nil
}

// Diff compares two builds of the same project.
func (s *BuildService) Diff(ctx context.Context, oldID, newID string) (BuildDiff, error) {
	var resp struct {
		Diff BuildDiff `json:"diff"`
	}
	if err := s.c.get(ctx, diffPath(oldID, newID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Diff, nil
}

// Patch renders the difference between two builds as a unified patch.
// A negative contextLines uses the server default.
func (s *BuildService) Patch(ctx context.Context, oldID, newID string, contextLines int) (string, error) {
	path := diffPath(oldID, newID) + "/patch"
	if contextLines >= 0 {
		path += "?" + url.Values{"context": {strconv.Itoa(contextLines)}}.Encode()
	}
	body, err := s.c.send(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Changes returns the change log recorded when the build was created.
func (s *BuildService) Changes(ctx context.Context, id string) ([]ChangeLog, error) {
	var resp struct {
		Changes []ChangeLog `json:"changes"`
	}
	if err := s.c.get(ctx, "/api/v1/builds/"+url.PathEscape(id)+"/changes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Changes, nil
}

func diffPath(oldID, newID string) string {
	return "/api/v1/builds/diff/" + url.PathEscape(oldID) + "/" + url.PathEscape(newID)
}
