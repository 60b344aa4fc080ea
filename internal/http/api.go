package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"whenthen/internal/domain"
	"whenthen/internal/downloader"
	"whenthen/internal/engine"
	"whenthen/internal/service"
)

// Handler wires HTTP routes to the automation engine and content manager.
type Handler struct {
	engine  *engine.Engine
	manager downloader.Manager
	users   service.UserService
	issuer  *tokenIssuer
}

func NewHandler(eng *engine.Engine, manager downloader.Manager, users service.UserService, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		engine:  eng,
		manager: manager,
		users:   users,
		issuer:  newTokenIssuer(jwtSecret, tokenTTL),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)

		authed := api.Group("", authMiddleware(h.issuer))
		{
			authed.POST("/playlets", h.createPlaylet)
			authed.GET("/playlets", h.listPlaylets)
			authed.GET("/playlets/:id", h.getPlaylet)
			authed.PUT("/playlets/:id", h.updatePlaylet)
			authed.DELETE("/playlets/:id", h.deletePlaylet)
			authed.POST("/playlets/:id/enable", h.setPlayletEnabled(true))
			authed.POST("/playlets/:id/disable", h.setPlayletEnabled(false))

			authed.GET("/tasks", h.listTasks)
			authed.GET("/tasks/:id", h.getTask)
			authed.POST("/tasks/:id/retry", h.retryTask)
			authed.DELETE("/tasks/:id", h.deleteTask)
			authed.POST("/tasks/assign", h.assignTask)

			authed.POST("/contents", h.addContent)
			authed.GET("/contents", h.listContents)
			authed.POST("/contents/:id/pause", h.pauseContent)
			authed.POST("/contents/:id/resume", h.resumeContent)
			authed.DELETE("/contents/:id", h.deleteContent)

			authed.GET("/events", h.streamEvents)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	RegisterSecret string `json:"register_secret" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterSecret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegistrationPassword):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, expires, err := h.issuer.issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
		"username":   user.Username,
	})
}

func (h *Handler) createPlaylet(c *gin.Context) {
	var req playletPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.engine.AddPlaylet(c.Request.Context(), req.toDomain())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, playletToPayload(created))
}

func (h *Handler) listPlaylets(c *gin.Context) {
	playlets, err := h.engine.ListPlaylets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]playletPayload, len(playlets))
	for i := range playlets {
		resp[i] = playletToPayload(playlets[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPlaylet(c *gin.Context) {
	playlet, err := h.engine.GetPlaylet(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, playletToPayload(playlet))
}

func (h *Handler) updatePlaylet(c *gin.Context) {
	var req playletPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playlet := req.toDomain()
	playlet.ID = c.Param("id")

	if err := h.engine.UpdatePlaylet(c.Request.Context(), playlet); err != nil {
		h.renderEngineError(c, err)
		return
	}
	updated, err := h.engine.GetPlaylet(c.Request.Context(), playlet.ID)
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, playletToPayload(updated))
}

func (h *Handler) deletePlaylet(c *gin.Context) {
	if err := h.engine.RemovePlaylet(c.Request.Context(), c.Param("id")); err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) setPlayletEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.engine.SetPlayletEnabled(c.Request.Context(), c.Param("id"), enabled); err != nil {
			h.renderEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "enabled": enabled})
	}
}

func (h *Handler) listTasks(c *gin.Context) {
	tasks, err := h.engine.ListTasks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]taskPayload, len(tasks))
	for i := range tasks {
		resp[i] = taskToPayload(tasks[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTask(c *gin.Context) {
	task, err := h.engine.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToPayload(task))
}

func (h *Handler) retryTask(c *gin.Context) {
	if err := h.engine.RetryTask(c.Request.Context(), c.Param("id")); err != nil {
		h.renderEngineError(c, err)
		return
	}
	task, err := h.engine.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToPayload(task))
}

func (h *Handler) deleteTask(c *gin.Context) {
	if err := h.engine.RemoveTask(c.Request.Context(), c.Param("id")); err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

type assignRequest struct {
	PlayletID string `json:"playlet_id" binding:"required"`
	ContentID string `json:"content_id" binding:"required"`
}

func (h *Handler) assignTask(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.engine.AssignManually(c.Request.Context(), req.PlayletID, req.ContentID)
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, taskToPayload(task))
}

type addContentRequest struct {
	Magnet      string `json:"magnet"`
	TorrentFile string `json:"torrent_file"`
	// PlayletID assigns this content to a specific playlet instead of the
	// automatic trigger matching.
	PlayletID string `json:"playlet_id"`
}

func (h *Handler) addContent(c *gin.Context) {
	var req addContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.Magnet == "") == (req.TorrentFile == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of magnet or torrent_file is required"})
		return
	}

	// With an explicit playlet the automatic owner pick must not also fire.
	if req.PlayletID != "" {
		h.engine.SuppressNextAutoAssign()
	}

	var (
		info  domain.ContentInfo
		added bool
		err   error
	)
	if req.Magnet != "" {
		info, added, err = h.manager.AddMagnet(c.Request.Context(), req.Magnet)
	} else {
		info, added, err = h.manager.AddTorrentFile(c.Request.Context(), req.TorrentFile)
	}
	// A failed or duplicate add emits no content event, so the armed
	// suppression must be given back or it would swallow an unrelated add.
	if req.PlayletID != "" && (err != nil || !added) {
		h.engine.ReleaseAutoAssignSuppression()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"content_id": info.ID, "name": info.Name}
	if req.PlayletID != "" {
		task, assignErr := h.engine.AssignManually(c.Request.Context(), req.PlayletID, info.ID)
		if assignErr != nil {
			h.renderEngineError(c, assignErr)
			return
		}
		resp["task"] = taskToPayload(task)
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) listContents(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.List(c.Request.Context()))
}

func (h *Handler) pauseContent(c *gin.Context) {
	if err := h.manager.Pause(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "paused": true})
}

func (h *Handler) resumeContent(c *gin.Context) {
	if err := h.manager.Resume(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "paused": false})
}

func (h *Handler) deleteContent(c *gin.Context) {
	deleteFiles, err := strconv.ParseBool(c.DefaultQuery("delete_files", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag delete_files"})
		return
	}
	if err := h.manager.Delete(c.Request.Context(), c.Param("id"), deleteFiles); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// streamEvents pushes task lifecycle notifications over SSE until the client
// disconnects.
func (h *Handler) streamEvents(c *gin.Context) {
	events, cancel := h.engine.Subscribe(16)
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("task", gin.H{
				"type": event.Type,
				"task": taskToPayload(event.Task),
			})
			return true
		}
	})
}

func (h *Handler) renderEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrPlayletDisabled),
		errors.Is(err, engine.ErrDuplicateAssignment),
		errors.Is(err, engine.ErrNotRetryable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrEngineClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
