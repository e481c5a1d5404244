package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sqlite-user-service/internal/usecase/user"
	pkgerrors "sqlite-user-service/pkg/errors"
	"sqlite-user-service/pkg/logger"
)

// MaxCreateBodyBytes caps the size of a create request body
const MaxCreateBodyBytes = 64 << 10

// msgBodyTooLarge answers a create request over MaxCreateBodyBytes
const msgBodyTooLarge = "Request body too large"

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.UserUsecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.UserUsecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	log := logger.WithContext(c.Request.Context(), h.log)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxCreateBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("create user body too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: msgBodyTooLarge})
			return
		}
		log.Warn("failed to read create user body", zap.Error(err))
		h.handleError(c, pkgerrors.ErrNoData)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		log.Warn("invalid create user request", zap.Int("body_size", len(body)), zap.Error(err))
		h.handleError(c, pkgerrors.ErrNoData)
		return
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Name:  stringField(fields, "name"),
		Email: stringField(fields, "email"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:    resp.ID,
		Name:  resp.Name,
		Email: resp.Email,
	})
}

// GetUser handles GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 63)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			// Well-formed but larger than any id the store can assign.
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "User not found"})
			return
		}
		NotFound(c)
		return
	}

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: int64(id)})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:    resp.ID,
		Name:  resp.Name,
		Email: resp.Email,
	})
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	resp, err := h.uc.ListUsers(c.Request.Context(), user.ListUsersRequest{})
	if err != nil {
		h.handleError(c, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = UserResponse{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
		}
	}

	c.JSON(http.StatusOK, users)
}

// NotFound answers requests that match no route
func NotFound(c *gin.Context) {
	c.JSON(pkgerrors.HTTPStatus(pkgerrors.ErrNotFound), ErrorResponse{Error: pkgerrors.PublicMessage(pkgerrors.ErrNotFound)})
}

// handleError converts usecase errors to HTTP responses.
// Internal causes are logged and never sent to the client.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	status := pkgerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context(), h.log).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
	}

	c.JSON(status, ErrorResponse{Error: pkgerrors.PublicMessage(err)})
}

// stringField returns the named field when it holds a JSON string, else "".
func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
