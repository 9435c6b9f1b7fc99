package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/middleware"
	"github.com/nivostack/buildhub/internal/models"
)

// SDKHandler serves active build payloads to SDK clients.
type SDKHandler struct {
	repo SDKRepository
	log  *logrus.Logger
}

// NewSDKHandler creates an SDKHandler.
func NewSDKHandler(repo SDKRepository, log *logrus.Logger) *SDKHandler {
	return &SDKHandler{repo: repo, log: log}
}

// Active handles GET /api/v1/sdk/builds/:mode for the project named by the API key.
func (h *SDKHandler) Active(c *gin.Context) {
	mode, err := models.ParseMode(c.Param("mode"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	projectID := c.GetString(middleware.ProjectIDKey)
	if projectID == "" {
		respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing project")

		return
	}

	payload, err := h.repo.ActivePayload(c.Request.Context(), projectID, mode)
	if err != nil {
		respondServiceError(c, h.log, "loading active builds", err)

		return
	}

	etag := payloadETag(payload)
	c.Header("ETag", etag)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)

		return
	}

	c.JSON(http.StatusOK, payload)
}

// payloadETag identifies the active builds of a payload. Snapshots are immutable,
// so build identity and metadata determine the body; FetchedAt is ignored.
func payloadETag(p *models.ActiveBuildPayload) string {
	features := make([]string, 0, len(p.Features))
	for ft := range p.Features {
		features = append(features, string(ft))
	}
	sort.Strings(features)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n", p.ProjectID, p.Mode)
	for _, ft := range features {
		info := p.Features[models.FeatureType(ft)]
		name := ""
		if info.Name != nil {
			name = *info.Name
		}
		fmt.Fprintf(h, "%s=%s@%d:%q\n", ft, info.BuildID, info.Version, name)
	}

	return `"` + hex.EncodeToString(h.Sum(nil)[:16]) + `"`
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
