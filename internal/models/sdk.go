package models

import "time"

// ActiveBuildPayload is what SDK clients receive for a project's preview or
// production mode: one frozen snapshot per feature type that has an active build.
type ActiveBuildPayload struct {
	ProjectID string                          `json:"projectId"`
	Mode      Mode                            `json:"mode"`
	Features  map[FeatureType]ActiveBuildInfo `json:"features"`
	FetchedAt time.Time                       `json:"fetchedAt"`
}

// ActiveBuildInfo summarises the active build of one feature type.
type ActiveBuildInfo struct {
	BuildID   string         `json:"buildId"`
	Version   int            `json:"version"`
	Name      *string        `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	Items     []SnapshotItem `json:"items"`
}
