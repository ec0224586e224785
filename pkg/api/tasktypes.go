package api

import (
	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/nimburion/taskmanager/pkg/tasktypes"
)

// createTaskType stamps both timestamps here because the task type store keeps
// whatever it is given.
func (h *Handler) createTaskType(c router.Context) error {
	var taskType tasktypes.TaskType
	if err := decodeObject(c, codeBadTaskType, &taskType); err != nil {
		return h.fail(c, err)
	}
	now := h.clock.Now()
	taskType.CreationTs = now
	taskType.LastUpdateTs = now
	stored, err := h.taskTypes.Store(c.Request().Context(), &taskType)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Created(c, stored)
}

func (h *Handler) getTaskType(c router.Context) error {
	taskType, err := h.taskTypes.Search(c.Request().Context(), c.Param("taskTypeId"))
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, taskType)
}

func (h *Handler) updateTaskType(c router.Context) error {
	stored, err := h.taskTypes.Search(c.Request().Context(), c.Param("taskTypeId"))
	if err != nil {
		return h.fail(c, err)
	}
	var taskType tasktypes.TaskType
	if err := decodeObject(c, codeBadTaskType, &taskType); err != nil {
		return h.fail(c, err)
	}
	return h.saveTaskType(c, stored, &taskType)
}

func (h *Handler) mergeTaskType(c router.Context) error {
	stored, err := h.taskTypes.Search(c.Request().Context(), c.Param("taskTypeId"))
	if err != nil {
		return h.fail(c, err)
	}
	var taskType tasktypes.TaskType
	if err := patchModel(c, codeBadTaskType, stored, &taskType); err != nil {
		return h.fail(c, err)
	}
	return h.saveTaskType(c, stored, &taskType)
}

func (h *Handler) saveTaskType(c router.Context, stored, taskType *tasktypes.TaskType) error {
	taskType.ID = stored.ID
	taskType.CreationTs = stored.CreationTs
	taskType.LastUpdateTs = h.clock.Now()
	if err := h.taskTypes.Update(c.Request().Context(), taskType); err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, taskType)
}

func (h *Handler) deleteTaskType(c router.Context) error {
	if err := h.taskTypes.Delete(c.Request().Context(), c.Param("taskTypeId")); err != nil {
		return h.fail(c, err)
	}
	return controller.NoContent(c)
}

func (h *Handler) taskTypesPage(c router.Context) error {
	page, err := readPage(c)
	if err != nil {
		return h.fail(c, err)
	}
	filter, err := tasktypes.PageQuery(taskTypeFilters(c))
	if err != nil {
		return h.fail(c, err)
	}
	sort, err := tasktypes.Sort(page.order)
	if err != nil {
		return h.fail(c, err)
	}
	result, err := h.taskTypes.RetrieveTaskTypesPage(c.Request().Context(), filter, sort, page.offset, page.limit)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, result)
}
