package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/diff"
	"github.com/nivostack/buildhub/internal/models"
)

// maxPatchContext caps the context lines a patch request may ask for.
const maxPatchContext = 50

// BuildHandler serves build, mode and diff endpoints.
type BuildHandler struct {
	builds BuildRepository
	modes  ModeRepository
	diffs  DiffRepository
	log    *logrus.Logger
}

// NewBuildHandler creates a BuildHandler.
func NewBuildHandler(builds BuildRepository, modes ModeRepository, diffs DiffRepository, log *logrus.Logger) *BuildHandler {
	return &BuildHandler{builds: builds, modes: modes, diffs: diffs, log: log}
}

// Create handles POST /api/v1/builds.
func (h *BuildHandler) Create(c *gin.Context) {
	var req models.CreateBuildRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	build, err := h.builds.CreateBuild(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, h.log, "creating build", err)

		return
	}

	h.log.WithFields(logrus.Fields{
		"action": "build.create", "user_id": userID, "project_id": build.ProjectID,
		"build_id": build.ID, "version": build.Version,
	}).Info("audit")

	c.JSON(http.StatusCreated, gin.H{"build": build})
}

// List handles GET /api/v1/builds?projectId=&featureType=.
func (h *BuildHandler) List(c *gin.Context) {
	projectID := c.Query("projectId")
	if projectID == "" {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, models.ErrMissingProjectID.Error())

		return
	}

	var featureType models.FeatureType
	if ft := c.Query("featureType"); ft != "" {
		parsed, err := models.ParseFeatureType(ft)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

			return
		}
		featureType = parsed
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	builds, err := h.builds.ListBuilds(c.Request.Context(), userID, projectID, featureType)
	if err != nil {
		respondServiceError(c, h.log, "listing builds", err)

		return
	}

	if builds == nil {
		builds = []models.Build{}
	}

	c.JSON(http.StatusOK, gin.H{"builds": builds})
}

// Get handles GET /api/v1/builds/:id. The response carries the snapshots and
// the change log recorded at creation.
func (h *BuildHandler) Get(c *gin.Context) {
	buildID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	build, err := h.builds.GetBuild(c.Request.Context(), userID, buildID)
	if err != nil {
		respondServiceError(c, h.log, "getting build", err)

		return
	}

	changes, err := h.diffs.ChangeLogs(c.Request.Context(), userID, buildID)
	if err != nil {
		respondServiceError(c, h.log, "loading change log", err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"build": build, "changes": nonNilChanges(changes)})
}

// Update handles PATCH /api/v1/builds/:id.
func (h *BuildHandler) Update(c *gin.Context) {
	buildID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBuildRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	build, err := h.builds.UpdateBuild(c.Request.Context(), userID, buildID, req)
	if err != nil {
		respondServiceError(c, h.log, "updating build", err)

		return
	}

	h.log.WithFields(logrus.Fields{"action": "build.update", "user_id": userID, "build_id": buildID}).Info("audit")

	c.JSON(http.StatusOK, gin.H{"build": build})
}

// Delete handles DELETE /api/v1/builds/:id.
func (h *BuildHandler) Delete(c *gin.Context) {
	buildID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	if err := h.builds.DeleteBuild(c.Request.Context(), userID, buildID); err != nil {
		respondServiceError(c, h.log, "deleting build", err)

		return
	}

	h.log.WithFields(logrus.Fields{"action": "build.delete", "user_id": userID, "build_id": buildID}).Info("audit")

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetMode handles PATCH /api/v1/builds/:id/mode.
func (h *BuildHandler) SetMode(c *gin.Context) {
	buildID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.SetModeRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	build, err := h.modes.SetMode(c.Request.Context(), userID, buildID, req)
	if err != nil {
		respondServiceError(c, h.log, "setting build mode", err)

		return
	}

	h.log.WithFields(logrus.Fields{
		"action": "build.mode.set", "user_id": userID, "build_id": buildID,
		"mode": req.Mode, "feature_type": req.FeatureType,
	}).Info("audit")

	c.JSON(http.StatusOK, gin.H{"build": build})
}

// ClearMode handles DELETE /api/v1/builds/:id/mode/:mode.
func (h *BuildHandler) ClearMode(c *gin.Context) {
	buildID, ok := pathID(c, "id")
	if !ok {
		return
	}

	mode, err := models.ParseMode(c.Param("mode"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	build, err := h.modes.ClearMode(c.Request.Context(), userID, buildID, mode)
	if err != nil {
		respondServiceError(c, h.log, "clearing build mode", err)

		return
	}

	h.log.WithFields(logrus.Fields{"action": "build.mode.clear", "user_id": userID, "build_id": buildID, "mode": mode}).Info("audit")

	c.JSON(http.StatusOK, gin.H{"build": build})
}

// Diff handles GET /api/v1/builds/diff/:oldId/:newId.
func (h *BuildHandler) Diff(c *gin.Context) {
	oldID, newID, ok := diffIDs(c)
	if !ok {
		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	d, err := h.diffs.DiffBuilds(c.Request.Context(), userID, oldID, newID)
	if err != nil {
		respondServiceError(c, h.log, "diffing builds", err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"diff": d})
}

// Patch handles GET /api/v1/builds/diff/:oldId/:newId/patch?context=N.
func (h *BuildHandler) Patch(c *gin.Context) {
	oldID, newID, ok := diffIDs(c)
	if !ok {
		return
	}

	contextLines := diff.DefaultContext
	if raw := c.Query("context"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > maxPatchContext {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "context must be an integer between 0 and 50")

			return
		}
		contextLines = v
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	patch, err := h.diffs.PatchBuilds(c.Request.Context(), userID, oldID, newID, contextLines)
	if err != nil {
		respondServiceError(c, h.log, "rendering build patch", err)

		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(patch))
}

// Changes handles GET /api/v1/builds/:id/changes.
func (h *BuildHandler) Changes(c *gin.Context) {
	buildID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID := getUserID(c)
	if userID == "" {
		return
	}

	changes, err := h.diffs.ChangeLogs(c.Request.Context(), userID, buildID)
	if err != nil {
		respondServiceError(c, h.log, "loading change log", err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"changes": nonNilChanges(changes)})
}

func diffIDs(c *gin.Context) (oldID, newID string, ok bool) {
	if oldID, ok = pathID(c, "oldId"); !ok {
		return "", "", false
	}
	if newID, ok = pathID(c, "newId"); !ok {
		return "", "", false
	}
	return oldID, newID, true
}

func nonNilChanges(changes []models.BuildChangeLog) []models.BuildChangeLog {
	if changes == nil {
		return []models.BuildChangeLog{}
	}
	return changes
}
