package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nivostack/buildhub/internal/models"
)

const apiMocksQuery = `
	SELECT e.name, e.base_url, e.is_enabled,
		ep.id::text, ep.method, ep.path, ep.description,
		r.name, r.status_code, r.body, r.headers, r.delay_ms, r.is_default
	FROM mock_environments e
	JOIN mock_endpoints ep ON ep.environment_id = e.id AND ep.is_enabled
	LEFT JOIN mock_responses r ON r.endpoint_id = ep.id
	WHERE e.project_id = $1
	ORDER BY e.name, ep.method, ep.path, r.sort_order, r.is_default DESC, r.created_at, r.id`

type mockEndpoint struct {
	Environment        string         `json:"environment"`
	BaseURL            *string        `json:"baseUrl"`
	EnvironmentEnabled bool           `json:"environmentEnabled"`
	Method             string         `json:"method"`
	Path               string         `json:"path"`
	Description        *string        `json:"description"`
	Responses          []mockResponse `json:"responses"`
}

type mockResponse struct {
	Name       *string         `json:"name"`
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
	Headers    json.RawMessage `json:"headers"`
	DelayMs    int             `json:"delayMs"`
	IsDefault  bool            `json:"isDefault"`
}

// MockKey is the snapshot key of an endpoint: "<environment>:<METHOD> <path>".
func MockKey(environment, method, path string) string {
	return environment + ":" + strings.ToUpper(method) + " " + path
}

// readAPIMocks emits one item per enabled endpoint, carrying its environment
// and its responses in display order.
func readAPIMocks(ctx context.Context, q Querier, projectID string) ([]models.SnapshotItem, error) {
	rows, err := q.Query(ctx, apiMocksQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying mock endpoints: %w", err)
	}
	defer rows.Close()

	order := make([]string, 0, 32)
	byID := make(map[string]*mockEndpoint, 32)

	for rows.Next() {
		var (
			ep         mockEndpoint
			endpointID string
			respName   *string
			statusCode *int
			body       []byte
			headers    []byte
			delayMs    *int
			isDefault  *bool
		)

		if err := rows.Scan(
			&ep.Environment, &ep.BaseURL, &ep.EnvironmentEnabled,
			&endpointID, &ep.Method, &ep.Path, &ep.Description,
			&respName, &statusCode, &body, &headers, &delayMs, &isDefault,
		); err != nil {
			return nil, fmt.Errorf("scanning mock endpoint: %w", err)
		}

		cur, ok := byID[endpointID]
		if !ok {
			ep.Method = strings.ToUpper(ep.Method)
			ep.Responses = make([]mockResponse, 0, 1)
			cur = &ep
			byID[endpointID] = cur
			order = append(order, endpointID)
		}

		// LEFT JOIN yields a NULL response row for endpoints without responses.
		if statusCode == nil {
			continue
		}

		resp, err := newMockResponse(respName, *statusCode, body, headers, delayMs, isDefault)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s %s: %w", cur.Method, cur.Path, err)
		}

		cur.Responses = append(cur.Responses, resp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mock endpoints: %w", err)
	}

	items := make([]models.SnapshotItem, 0, len(order))

	for _, id := range order {
		ep := byID[id]

		value, err := encode(ep)
		if err != nil {
			return nil, err
		}

		label := ep.Environment + " - " + ep.Method + " " + ep.Path
		items = append(items, models.SnapshotItem{
			Key:   MockKey(ep.Environment, ep.Method, ep.Path),
			Label: &label,
			Value: value,
		})
	}

	return items, nil
}

func newMockResponse(name *string, status int, body, headers []byte, delayMs *int, isDefault *bool) (mockResponse, error) {
	r := mockResponse{Name: name, StatusCode: status}

	var err error
	if r.Body, err = canonicalJSON(body); err != nil {
		return r, fmt.Errorf("response body: %w", err)
	}
	if r.Headers, err = canonicalJSON(headers); err != nil {
		return r, fmt.Errorf("response headers: %w", err)
	}

	if delayMs != nil {
		r.DelayMs = *delayMs
	}
	if isDefault != nil {
		r.IsDefault = *isDefault
	}

	return r, nil
}
