package api

import (
	"strings"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/nimburion/taskmanager/pkg/tasks"
	"github.com/nimburion/taskmanager/pkg/tasktypes"
)

// pageRequest holds the parameters shared by every page.
type pageRequest struct {
	order  []string
	offset int
	limit  int
}

func readPage(c router.Context) (pageRequest, error) {
	offset, limit, err := controller.Pagination(c)
	if err != nil {
		return pageRequest{}, err
	}
	return pageRequest{order: document.ParseOrder(c.Query("order")), offset: offset, limit: limit}, nil
}

// int64Reader collects the first parse failure of a run of integer parameters.
type int64Reader struct {
	c   router.Context
	err error
}

func (r *int64Reader) read(name string) *int64 {
	if r.err != nil {
		return nil
	}
	value, err := controller.QueryInt64(r.c, name)
	if err != nil {
		r.err = err
	}
	return value
}

// queryKeywords accepts both a comma separated value and repeated parameters.
func queryKeywords(c router.Context, name string) []string {
	var out []string
	for _, value := range controller.QueryList(c, name) {
		out = append(out, splitKeywords(value)...)
	}
	return out
}

// splitKeywords splits value on commas, except inside a token written as
// /pattern/, so /a{1,3}/ stays one keyword. Empty tokens are kept for the
// caller to reject.
func splitKeywords(value string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i < len(value) && value[i] != ',' {
			continue
		}
		token := value[start:i]
		if i < len(value) && openPattern(token) {
			continue
		}
		out = append(out, token)
		start = i + 1
	}
	return out
}

func openPattern(token string) bool {
	if !strings.HasPrefix(token, document.RegexDelimiter) || token == document.RegexDelimiter {
		return false
	}
	_, closed := document.Pattern(token)
	return !closed
}

// taskFilters reads the task filters. prefix is prepended to the time range names
// when the task is not the paged resource, so creationFrom becomes taskCreationFrom.
func taskFilters(c router.Context, prefix string) (tasks.TasksPageParams, error) {
	hasCloseTs, err := controller.QueryBool(c, "hasCloseTs")
	if err != nil {
		return tasks.TasksPageParams{}, err
	}
	ints := &int64Reader{c: c}
	p := tasks.TasksPageParams{
		AppID:           controller.QueryString(c, "appId"),
		RequesterID:     controller.QueryString(c, "requesterId"),
		TaskTypeID:      controller.QueryString(c, "taskTypeId"),
		GoalName:        controller.QueryString(c, "goalName"),
		GoalDescription: controller.QueryString(c, "goalDescription"),
		GoalKeywords:    queryKeywords(c, "goalKeywords"),
		CreationFrom:    ints.read(paramName(prefix, "creationFrom")),
		CreationTo:      ints.read(paramName(prefix, "creationTo")),
		UpdateFrom:      ints.read(paramName(prefix, "updateFrom")),
		UpdateTo:        ints.read(paramName(prefix, "updateTo")),
		HasCloseTs:      hasCloseTs,
		CloseFrom:       ints.read("closeFrom"),
		CloseTo:         ints.read("closeTo"),
	}
	return p, ints.err
}

// transactionFilters reads the transaction filters. prefix is prepended to every
// transaction parameter when messages are paged, so label becomes transactionLabel.
func transactionFilters(c router.Context, prefix string) (tasks.TransactionsPageParams, error) {
	task, err := taskFilters(c, "task")
	if err != nil {
		return tasks.TransactionsPageParams{}, err
	}
	ints := &int64Reader{c: c}
	p := tasks.TransactionsPageParams{
		Task:         task,
		TaskID:       controller.QueryString(c, "taskId"),
		ID:           controller.QueryString(c, paramName(prefix, "id")),
		Label:        controller.QueryString(c, paramName(prefix, "label")),
		ActioneerID:  controller.QueryString(c, paramName(prefix, "actioneerId")),
		CreationFrom: ints.read(paramName(prefix, "creationFrom")),
		CreationTo:   ints.read(paramName(prefix, "creationTo")),
		UpdateFrom:   ints.read(paramName(prefix, "updateFrom")),
		UpdateTo:     ints.read(paramName(prefix, "updateTo")),
	}
	return p, ints.err
}

func messageFilters(c router.Context) (tasks.MessagesPageParams, error) {
	transaction, err := transactionFilters(c, "transaction")
	if err != nil {
		return tasks.MessagesPageParams{}, err
	}
	return tasks.MessagesPageParams{
		Transaction: transaction,
		ReceiverID:  controller.QueryString(c, "receiverId"),
		Label:       controller.QueryString(c, "label"),
	}, nil
}

func taskTypeFilters(c router.Context) tasktypes.PageParams {
	return tasktypes.PageParams{
		Name:        controller.QueryString(c, "name"),
		Description: controller.QueryString(c, "description"),
		Keywords:    queryKeywords(c, "keywords"),
	}
}

// paramName joins prefix and name in camel case.
func paramName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + strings.ToUpper(name[:1]) + name[1:]
}
