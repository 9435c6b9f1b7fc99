package service

import "context"

// QuotaChecker decides whether a user may create another build in a project.
// Implementations return models.ErrQuotaExceeded to refuse.
type QuotaChecker interface {
	CheckBuildQuota(ctx context.Context, userID, projectID string) error
}

// AllowAll is the default QuotaChecker; it never refuses.
type AllowAll struct{}

// CheckBuildQuota always succeeds.
func (AllowAll) CheckBuildQuota(context.Context, string, string) error { return nil }
