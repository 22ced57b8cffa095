package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"taskmanager/internal/models"
	"taskmanager/internal/storage/sqlite"
	"taskmanager/internal/task"
)

type createTaskRequest struct {
	Name     string `json:"name" binding:"required"`
	DueDate  string `json:"dueDate" binding:"required,datetime=2006-01-02"`
	Priority int    `json:"priority" binding:"required,min=1,max=5"`
}

type updateTaskRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1"`
	DueDate  *string `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
	Priority *int    `json:"priority" binding:"omitempty,min=1,max=5"`
}

// shapeTask attaches the derived overdue flag at response time.
func shapeTask(t models.Task) models.Task {
	t.IsOverdue = task.IsOverdue(t.DueDate, task.Today())
	return t
}

// handleListTasks returns all tasks, optionally narrowed by ?type=pending
// or ?type=overdue, in the canonical listing order.
func (s *Server) handleListTasks(c *gin.Context) {
	filter, err := task.ParseFilter(c.Query("type"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	tasks, err := s.store.FindAll(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	task.Annotate(tasks, task.Today())
	c.JSON(http.StatusOK, tasks)
}

// handleGetTask returns a single task by id.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	t, err := s.store.FindByID(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, shapeTask(t))
}

// handleCreateTask validates and inserts a new task.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, validationError(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("name must not be empty"))
		return
	}

	t, err := s.store.Create(c.Request.Context(), req.Name, req.DueDate, req.Priority)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, shapeTask(t))
}

// handleUpdateTask applies a partial update to an existing task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, validationError(err))
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			s.respondError(c, http.StatusBadRequest, fmt.Errorf("name must not be empty"))
			return
		}
		req.Name = &trimmed
	}

	t, err := s.store.Update(c.Request.Context(), id, sqlite.Changes{
		Name:     req.Name,
		DueDate:  req.DueDate,
		Priority: req.Priority,
	})
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, shapeTask(t))
}

// handleDeleteTask removes a task and echoes the deleted record.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	t, err := s.store.Remove(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, shapeTask(t))
}

// validationError rewrites binding failures into field-level messages.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := jsonField(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "min":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	case "datetime":
		return fmt.Errorf("%s must be a date in %s format", field, models.DateLayout)
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

func jsonField(structField string) string {
	if structField == "" {
		return structField
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}
