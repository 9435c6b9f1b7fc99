package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/cache"
	"github.com/nivostack/buildhub/internal/domain"
	"github.com/nivostack/buildhub/internal/metrics"
	"github.com/nivostack/buildhub/internal/models"
)

var _ domain.SDKService = (*SDKService)(nil)

// SDKService serves the active build payload to SDK clients through a read-through cache.
type SDKService struct {
	modes    ModeStore
	payloads cache.PayloadCache
	log      *logrus.Logger
	now      func() time.Time
}

// NewSDKService creates an SDKService. A nil cache disables caching.
func NewSDKService(modes ModeStore, payloads cache.PayloadCache, log *logrus.Logger) *SDKService {
	if payloads == nil {
		payloads = cache.NopCache{}
	}

	return &SDKService{modes: modes, payloads: payloads, log: log, now: time.Now}
}

// ActivePayload returns the project's active builds for mode, keyed by feature type.
// Cache failures fall through to the database and skip the cache write.
func (s *SDKService) ActivePayload(
	ctx context.Context, projectID string, mode models.Mode,
) (*models.ActiveBuildPayload, error) {
	cached, gen, ok, err := s.payloads.Get(ctx, projectID, mode)
	cacheable := err == nil
	switch {
	case err != nil:
		metrics.SDKCacheRequests.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("project_id", projectID).Warn("sdk cache read failed")
	case ok:
		metrics.SDKCacheRequests.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.SDKCacheRequests.WithLabelValues("miss").Inc()
	}

	builds, err := s.modes.ActiveBuilds(ctx, projectID, mode)
	if err != nil {
		return nil, err
	}

	payload := &models.ActiveBuildPayload{
		ProjectID: projectID,
		Mode:      mode,
		Features:  make(map[models.FeatureType]models.ActiveBuildInfo),
		FetchedAt: s.now().UTC(),
	}

	for i := range builds {
		b := &builds[i]
		for _, a := range b.Modes {
			if a.Mode != mode {
				continue
			}

			f := b.Feature(a.FeatureType)
			if f == nil {
				continue
			}

			items := f.Items
			if items == nil {
				items = []models.SnapshotItem{}
			}

			payload.Features[a.FeatureType] = models.ActiveBuildInfo{
				BuildID:   b.ID,
				Version:   b.Version,
				Name:      b.Name,
				CreatedAt: b.CreatedAt,
				Items:     items,
			}
		}
	}

	if cacheable {
		if err := s.payloads.Set(ctx, payload, gen); err != nil {
			s.log.WithError(err).WithField("project_id", projectID).Warn("sdk cache write failed")
		}
	}

	return payload, nil
}
