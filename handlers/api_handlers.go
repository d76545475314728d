package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/config"
	"github.com/CMPEQ0/lab-mark-api/db"
	"github.com/CMPEQ0/lab-mark-api/grading"
	"github.com/CMPEQ0/lab-mark-api/metrics"
	"github.com/CMPEQ0/lab-mark-api/models"
	"github.com/CMPEQ0/lab-mark-api/sheets"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// APIHandler holds the dependencies shared by all requests. Course config and
// spreadsheet backends are loaded fresh on every request.
type APIHandler struct {
	Catalog      config.Catalog
	Open         sheets.Opener
	CI           grading.CI
	RedisService *db.RedisService // nil when Redis is not configured
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(catalog config.Catalog, open sheets.Opener, ci grading.CI, redis *db.RedisService, m *metrics.Metrics) *APIHandler {
	return &APIHandler{
		Catalog:      catalog,
		Open:         open,
		CI:           ci,
		RedisService: redis,
		Metrics:      m,
		Now:          time.Now,
	}
}

// statusFor maps a failure kind to an HTTP status. conflict is the status used
// for Conflict, which differs between registration and grading.
func statusFor(err error, conflict int) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return conflict
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindUpstream:
		return http.StatusBadGateway
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, conflict int) {
	status := statusFor(err, conflict)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("path", c.FullPath()).Int("status", status).Msg("Request failed")

	message := apperr.MessageOf(err)
	if apperr.KindOf(err) == apperr.KindInternal {
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message})
}

func (h *APIHandler) course(c *gin.Context) (*models.Course, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, apperr.BadRequest("course id must be a number")
	}
	return h.Catalog.Course(id)
}

func (h *APIHandler) pipeline(c *gin.Context) (*grading.Pipeline, error) {
	course, err := h.course(c)
	if err != nil {
		return nil, err
	}
	backend, err := h.Open(c.Request.Context(), course.Spreadsheet)
	if err != nil {
		return nil, err
	}
	p := &grading.Pipeline{
		Course: course,
		Sheet:  sheets.New(backend),
		CI:     h.CI,
		Now:    h.Now,
	}
	if h.RedisService != nil {
		p.Journal = h.RedisService.Journal(course.Spreadsheet)
	}
	return p, nil
}

// --- Course Handlers ---

// GetCourses handles GET /courses/
func (h *APIHandler) GetCourses(c *gin.Context) {
	courses, err := h.Catalog.List()
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// GetCourse handles GET /courses/:id
func (h *APIHandler) GetCourse(c *gin.Context) {
	course, err := h.course(c)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, course.Detail())
}

// GetGroups handles GET /courses/:id/groups
func (h *APIHandler) GetGroups(c *gin.Context) {
	p, err := h.pipeline(c)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	groups, err := p.Groups(c.Request.Context())
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// GetLabs handles GET /courses/:id/groups/:group/labs
func (h *APIHandler) GetLabs(c *gin.Context) {
	p, err := h.pipeline(c)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	labs, err := p.Labs(c.Request.Context(), c.Param("group"))
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, labs)
}

// --- Student Handlers ---

// Register handles POST /courses/:id/groups/:group/register
func (h *APIHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.BadRequest("invalid request body: %v", err), http.StatusUnprocessableEntity)
		return
	}

	p, err := h.pipeline(c)
	if err != nil {
		h.Metrics.ObserveRegistration(c.Param("id"), "", err)
		respondError(c, err, http.StatusUnprocessableEntity)
		return
	}
	student := models.StudentName{Surname: req.Surname, Name: req.Name, Patronymic: req.Patronymic}
	outcome, err := p.Register(c.Request.Context(), c.Param("group"), student, req.GitHub)
	if err != nil {
		h.Metrics.ObserveRegistration(c.Param("id"), "", err)
		respondError(c, err, http.StatusUnprocessableEntity)
		return
	}

	if outcome == grading.AlreadyRegistered {
		h.Metrics.ObserveRegistration(c.Param("id"), "unchanged", nil)
		c.JSON(http.StatusAccepted, gin.H{"message": "This GitHub account is already registered for this student. Contact your instructor to change it"})
		return
	}
	h.Metrics.ObserveRegistration(c.Param("id"), "registered", nil)
	c.JSON(http.StatusOK, gin.H{"message": "GitHub account registered"})
}

// --- Grading Handlers ---

// Grade handles POST /courses/:id/groups/:group/labs/:lab/grade
func (h *APIHandler) Grade(c *gin.Context) {
	var req models.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.BadRequest("invalid request body: %v", err), http.StatusConflict)
		return
	}

	p, err := h.pipeline(c)
	if err != nil {
		h.Metrics.ObserveGrade(c.Param("id"), err)
		respondError(c, err, http.StatusConflict)
		return
	}
	result, err := p.Grade(c.Request.Context(), c.Param("group"), c.Param("lab"), req.GitHub)
	h.Metrics.ObserveGrade(c.Param("id"), err)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Lab successfully graded",
		"penalty": result.Penalty,
		"mark":    result.Mark,
	})
}

// GetGradeHistory handles GET /courses/:id/groups/:group/grades
func (h *APIHandler) GetGradeHistory(c *gin.Context) {
	journal, err := h.journal(c)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	history, err := journal.History(c.Request.Context(), c.Param("group"))
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetGradedGroups handles GET /courses/:id/grades
func (h *APIHandler) GetGradedGroups(c *gin.Context) {
	journal, err := h.journal(c)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	groups, err := journal.Groups(c.Request.Context())
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *APIHandler) journal(c *gin.Context) (*db.Journal, error) {
	if h.RedisService == nil {
		return nil, apperr.NotFound("grade journal is not enabled")
	}
	course, err := h.course(c)
	if err != nil {
		return nil, err
	}
	return h.RedisService.Journal(course.Spreadsheet), nil
}

// --- Ping Handler ---

// Ping handles GET /ping, checking Redis when it is configured.
func (h *APIHandler) Ping(c *gin.Context) {
	if h.RedisService != nil {
		if err := h.RedisService.Ping(c.Request.Context()); err != nil {
			respondError(c, apperr.Upstream(err, "redis is unreachable"), http.StatusConflict)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
