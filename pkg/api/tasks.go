package api

import (
	"strconv"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/nimburion/taskmanager/pkg/tasks"
)

// Codes of malformed bodies.
const (
	codeBadTask        = "bad_task"
	codeBadTransaction = "bad_task_transaction"
	codeBadMessage     = "bad_message"
	codeBadTaskType    = "bad_task_type"
)

func (h *Handler) createTask(c router.Context) error {
	var task tasks.Task
	if err := decodeObject(c, codeBadTask, &task); err != nil {
		return h.fail(c, err)
	}
	now := h.clock.Now()
	for i := range task.Transactions {
		task.Transactions[i].ID = strconv.Itoa(i)
		task.Transactions[i].CreationTs = now
		task.Transactions[i].LastUpdateTs = now
	}
	stored, err := h.tasks.Store(c.Request().Context(), &task)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Created(c, stored)
}

func (h *Handler) getTask(c router.Context) error {
	task, err := h.tasks.Search(c.Request().Context(), c.Param("taskId"))
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, task)
}

func (h *Handler) updateTask(c router.Context) error {
	ctx := c.Request().Context()
	stored, err := h.tasks.Search(ctx, c.Param("taskId"))
	if err != nil {
		return h.fail(c, err)
	}
	var task tasks.Task
	if err := decodeObject(c, codeBadTask, &task); err != nil {
		return h.fail(c, err)
	}
	return h.saveTask(c, stored, &task)
}

func (h *Handler) mergeTask(c router.Context) error {
	ctx := c.Request().Context()
	stored, err := h.tasks.Search(ctx, c.Param("taskId"))
	if err != nil {
		return h.fail(c, err)
	}
	var task tasks.Task
	if err := patchModel(c, codeBadTask, stored, &task); err != nil {
		return h.fail(c, err)
	}
	return h.saveTask(c, stored, &task)
}

// saveTask updates stored with the fields of task. The identity, the creation time
// and the transactions always come from stored.
func (h *Handler) saveTask(c router.Context, stored, task *tasks.Task) error {
	task.ID = stored.ID
	task.CreationTs = stored.CreationTs
	task.LastUpdateTs = h.clock.Now()
	task.Transactions = stored.Transactions
	if err := h.tasks.Update(c.Request().Context(), task); err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, task)
}

func (h *Handler) deleteTask(c router.Context) error {
	if err := h.tasks.Delete(c.Request().Context(), c.Param("taskId")); err != nil {
		return h.fail(c, err)
	}
	return controller.NoContent(c)
}

func (h *Handler) tasksPage(c router.Context) error {
	page, err := readPage(c)
	if err != nil {
		return h.fail(c, err)
	}
	params, err := taskFilters(c, "")
	if err != nil {
		return h.fail(c, err)
	}
	filter, err := tasks.TasksPageQuery(params)
	if err != nil {
		return h.fail(c, err)
	}
	sort, err := tasks.TasksSort(page.order)
	if err != nil {
		return h.fail(c, err)
	}
	result, err := h.tasks.RetrieveTasksPage(c.Request().Context(), filter, sort, page.offset, page.limit)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, result)
}

func (h *Handler) addTransaction(c router.Context) error {
	var transaction tasks.TaskTransaction
	if err := decodeObject(c, codeBadTransaction, &transaction); err != nil {
		return h.fail(c, err)
	}
	added, err := h.tasks.AddTransactionIntoTask(c.Request().Context(), c.Param("taskId"), &transaction)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Created(c, added)
}

func (h *Handler) addMessage(c router.Context) error {
	var message tasks.Message
	if err := decodeObject(c, codeBadMessage, &message); err != nil {
		return h.fail(c, err)
	}
	added, err := h.tasks.AddMessageIntoTransaction(c.Request().Context(), c.Param("taskId"), c.Param("transactionId"), &message)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Created(c, added)
}

func (h *Handler) transactionsPage(c router.Context) error {
	page, err := readPage(c)
	if err != nil {
		return h.fail(c, err)
	}
	params, err := transactionFilters(c, "")
	if err != nil {
		return h.fail(c, err)
	}
	filter, err := tasks.TransactionsPageQuery(params)
	if err != nil {
		return h.fail(c, err)
	}
	sort, err := tasks.TransactionsSort(page.order)
	if err != nil {
		return h.fail(c, err)
	}
	result, err := h.tasks.RetrieveTaskTransactionsPage(c.Request().Context(), filter, sort, page.offset, page.limit)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, result)
}

func (h *Handler) messagesPage(c router.Context) error {
	page, err := readPage(c)
	if err != nil {
		return h.fail(c, err)
	}
	params, err := messageFilters(c)
	if err != nil {
		return h.fail(c, err)
	}
	filter, err := tasks.MessagesPageQuery(params)
	if err != nil {
		return h.fail(c, err)
	}
	sort, err := tasks.MessagesSort(page.order)
	if err != nil {
		return h.fail(c, err)
	}
	result, err := h.tasks.RetrieveMessagesPage(c.Request().Context(), filter, sort, page.offset, page.limit)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, result)
}
