// Package api exposes tasks, their transactions and messages, and task types over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/nimburion/taskmanager/pkg/tasks"
	"github.com/nimburion/taskmanager/pkg/tasktypes"
	"github.com/nimburion/taskmanager/pkg/version"
	"github.com/tidwall/gjson"
)

// Handler serves the public resources.
type Handler struct {
	tasks     *tasks.Store
	taskTypes *tasktypes.Store
	info      version.Info
	clock     repository.Clock
	logger    logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces the time source used by PUT, PATCH and task type creation.
func WithClock(clock repository.Clock) Option {
	return func(h *Handler) { h.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(h *Handler) { h.logger = log }
}

// New creates a Handler over both stores.
func New(taskStore *tasks.Store, taskTypeStore *tasktypes.Store, info version.Info, opts ...Option) (*Handler, error) {
	if taskStore == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if taskTypeStore == nil {
		return nil, fmt.Errorf("task type store is required")
	}
	h := &Handler{
		tasks:     taskStore,
		taskTypes: taskTypeStore,
		info:      info,
		clock:     repository.SystemClock,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts every route on r.
func (h *Handler) Register(r router.Router) {
	r.GET("/help/info", h.helpInfo)

	r.POST("/tasks", h.createTask)
	r.GET("/tasks", h.tasksPage)
	r.GET("/tasks/:taskId", h.getTask)
	r.PUT("/tasks/:taskId", h.updateTask)
	r.PATCH("/tasks/:taskId", h.mergeTask)
	r.DELETE("/tasks/:taskId", h.deleteTask)
	r.POST("/tasks/:taskId/transactions", h.addTransaction)
	r.POST("/tasks/:taskId/transactions/:transactionId/messages", h.addMessage)
	r.GET("/taskTransactions", h.transactionsPage)
	r.GET("/messages", h.messagesPage)

	r.POST("/taskTypes", h.createTaskType)
	r.GET("/taskTypes", h.taskTypesPage)
	r.GET("/taskTypes/:taskTypeId", h.getTaskType)
	r.PUT("/taskTypes/:taskTypeId", h.updateTaskType)
	r.PATCH("/taskTypes/:taskTypeId", h.mergeTaskType)
	r.DELETE("/taskTypes/:taskTypeId", h.deleteTaskType)
}

func (h *Handler) helpInfo(c router.Context) error {
	return controller.Success(c, h.info)
}

// fail answers err and logs server side failures with the request scoped logger.
func (h *Handler) fail(c router.Context, err error) error {
	status, _ := controller.MapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request().Context()).Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}
	return controller.Error(c, err)
}

// readObject returns the request body when it is a JSON object. Any other body
// fails with code.
func readObject(c router.Context, code string) ([]byte, error) {
	req := c.Request()
	if req.Body == nil || req.Body == http.NoBody {
		return nil, controller.BadRequest(code, "the request body is empty")
	}
	defer req.Body.Close()

	raw, err := io.ReadAll(req.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, &controller.HTTPError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    controller.CodeTooLarge,
			Message: fmt.Sprintf("the request body exceeds %d bytes", tooLarge.Limit),
			Cause:   err,
		}
	}
	if err != nil {
		return nil, controller.BadRequest(code, "the request body cannot be read").WithCause(err)
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, controller.BadRequest(code, "the request body is not a JSON object")
	}
	return raw, nil
}

// decodeObject reads the body into v.
func decodeObject(c router.Context, code string, v interface{}) error {
	raw, err := readObject(c, code)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return controller.BadRequest(code, "the request body is not a valid model").WithCause(err)
	}
	return nil
}

// patchModel merges the request body into current and decodes the result into out.
func patchModel(c router.Context, code string, current, out interface{}) error {
	patch, err := readObject(c, code)
	if err != nil {
		return err
	}
	stored, err := json.Marshal(current)
	if err != nil {
		return repository.Serialization(err, "cannot encode the stored model")
	}
	merged, err := mergeJSON(stored, patch)
	if err != nil {
		return controller.BadRequest(code, "the request body cannot be merged").WithCause(err)
	}
	if err := json.Unmarshal(merged, out); err != nil {
		return controller.BadRequest(code, "the merged model is not valid").WithCause(err)
	}
	return nil
}
