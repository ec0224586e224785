package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/nimburion/taskmanager/pkg/controller"
	ginrouter "github.com/nimburion/taskmanager/pkg/server/router/gin"
	"github.com/nimburion/taskmanager/pkg/tasks"
	"github.com/nimburion/taskmanager/pkg/tasktypes"
	"github.com/nimburion/taskmanager/pkg/testutil/memstore"
	"github.com/nimburion/taskmanager/pkg/version"
)

type fixedClock int64

func (c fixedClock) Now() int64 { return int64(c) }

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	exec := memstore.New()
	taskStore, err := tasks.NewStore(exec, tasks.WithClock(fixedClock(100)))
	if err != nil {
		t.Fatalf("tasks.NewStore failed: %v", err)
	}
	taskTypeStore, err := tasktypes.NewStore(exec)
	if err != nil {
		t.Fatalf("tasktypes.NewStore failed: %v", err)
	}
	h, err := New(taskStore, taskTypeStore, version.Info{Service: "taskmanager", Version: "1.0.0"}, WithClock(fixedClock(200)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r := ginrouter.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, out interface{}) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("cannot decode %s: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	var body controller.ErrorResponse
	expect(t, rec, status, &body)
	if body.Code != code {
		t.Fatalf("expected code %q, got %q (%s)", code, body.Code, body.Message)
	}
}

func TestNew_RequiresStores(t *testing.T) {
	if _, err := New(nil, nil, version.Info{}); err == nil {
		t.Fatal("expected error without stores")
	}
}

func TestHelpInfo(t *testing.T) {
	api := newTestAPI(t)
	var info version.Info
	expect(t, do(t, api, http.MethodGet, "/help/info", ""), http.StatusOK, &info)
	if info.Service != "taskmanager" || info.Version != "1.0.0" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestTasks_Lifecycle(t *testing.T) {
	api := newTestAPI(t)

	var created tasks.Task
	body := `{"id":"t1","appId":"app","goal":{"name":"g","description":"d"},"transactions":[{"id":"7","label":"x"}]}`
	expect(t, do(t, api, http.MethodPost, "/tasks", body), http.StatusCreated, &created)
	if created.ID != "t1" || created.CreationTs != 100 || created.LastUpdateTs != 100 {
		t.Fatalf("unexpected created task %+v", created)
	}
	if len(created.Transactions) != 1 || created.Transactions[0].ID != "0" {
		t.Fatalf("initial transactions must be numbered by position, got %+v", created.Transactions)
	}

	expectError(t, do(t, api, http.MethodPost, "/tasks", `{"id":"t1"}`), http.StatusConflict, controller.CodeDuplicated)

	var updated tasks.Task
	expect(t, do(t, api, http.MethodPut, "/tasks/t1", `{"id":"other","appId":"app2","_creationTs":1}`), http.StatusOK, &updated)
	if updated.ID != "t1" || updated.CreationTs != 100 || updated.LastUpdateTs != 200 {
		t.Fatalf("PUT must keep identity and creation time, got %+v", updated)
	}
	if updated.Goal != nil || len(updated.Transactions) != 1 {
		t.Fatalf("PUT replaces fields but keeps transactions, got %+v", updated)
	}

	var patched tasks.Task
	expect(t, do(t, api, http.MethodPatch, "/tasks/t1", `{"goal":{"name":"patched"},"requesterId":"r","transactions":null}`), http.StatusOK, &patched)
	if patched.AppID != "app2" || patched.RequesterID != "r" || patched.Goal == nil || patched.Goal.Name != "patched" {
		t.Fatalf("PATCH must merge into the stored task, got %+v", patched)
	}

	var found tasks.Task
	expect(t, do(t, api, http.MethodGet, "/tasks/t1", ""), http.StatusOK, &found)
	if found.RequesterID != "r" || len(found.Transactions) != 1 || found.Transactions[0].Label != "x" {
		t.Fatalf("unexpected stored task %+v", found)
	}

	expect(t, do(t, api, http.MethodDelete, "/tasks/t1", ""), http.StatusNoContent, nil)
	expectError(t, do(t, api, http.MethodGet, "/tasks/t1", ""), http.StatusNotFound, controller.CodeNotFound)
	expectError(t, do(t, api, http.MethodDelete, "/tasks/t1", ""), http.StatusNotFound, controller.CodeNotFound)
}

func TestTasks_BadRequests(t *testing.T) {
	api := newTestAPI(t)
	expect(t, do(t, api, http.MethodPost, "/tasks", `{"id":"t"}`), http.StatusCreated, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"array body", http.MethodPost, "/tasks", `[]`, http.StatusBadRequest, codeBadTask},
		{"broken body", http.MethodPost, "/tasks", `{`, http.StatusBadRequest, codeBadTask},
		{"empty body", http.MethodPost, "/tasks", ``, http.StatusBadRequest, codeBadTask},
		{"wrong types", http.MethodPut, "/tasks/t", `{"goal":"flat"}`, http.StatusBadRequest, codeBadTask},
		{"put missing", http.MethodPut, "/tasks/none", `{}`, http.StatusNotFound, controller.CodeNotFound},
		{"patch missing", http.MethodPatch, "/tasks/none", `{}`, http.StatusNotFound, controller.CodeNotFound},
		{"patch breaks model", http.MethodPatch, "/tasks/t", `{"closeTs":"soon"}`, http.StatusBadRequest, codeBadTask},
		{"bad transaction", http.MethodPost, "/tasks/t/transactions", `1`, http.StatusBadRequest, codeBadTransaction},
		{"transaction on missing task", http.MethodPost, "/tasks/none/transactions", `{"label":"a"}`, http.StatusNotFound, controller.CodeNotFound},
		{"bad message", http.MethodPost, "/tasks/t/transactions/0/messages", `"hi"`, http.StatusBadRequest, codeBadMessage},
		{"message on missing transaction", http.MethodPost, "/tasks/t/transactions/0/messages", `{"label":"hi"}`, http.StatusNotFound, controller.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, do(t, api, tt.method, tt.path, tt.body), tt.status, tt.code)
		})
	}
}

func TestTasks_Page(t *testing.T) {
	api := newTestAPI(t)
	for _, body := range []string{
		`{"id":"a","appId":"app1","goal":{"keywords":["k1","k2"]}}`,
		`{"id":"b","appId":"app2","goal":{"keywords":["k2"]}}`,
		`{"id":"c","appId":"app1","closeTs":5}`,
	} {
		expect(t, do(t, api, http.MethodPost, "/tasks", body), http.StatusCreated, nil)
	}

	tests := []struct {
		name  string
		query string
		total int64
		want  []string
	}{
		{"exact app descending", "appId=app1&order=-id", 2, []string{"c", "a"}},
		{"keyword", "goalKeywords=k2&order=id", 2, []string{"a", "b"}},
		{"every keyword", "goalKeywords=k1,/^k/&order=id", 1, []string{"a"}},
		{"repeated keyword parameters", "goalKeywords=k1&goalKeywords=k2&order=id", 1, []string{"a"}},
		{"keyword pattern with a comma", "goalKeywords=/%5Ek%5B12%5D%7B1,2%7D$/&order=id", 2, []string{"a", "b"}},
		{"open tasks by pattern", "hasCloseTs=false&appId=/^app/&order=id", 2, []string{"a", "b"}},
		{"closed in range", "closeFrom=1&closeTo=5", 1, []string{"c"}},
		{"window", "order=id&offset=1&limit=1", 3, []string{"b"}},
		{"past the end", "offset=10", 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page tasks.TasksPage
			expect(t, do(t, api, http.MethodGet, "/tasks?"+tt.query, ""), http.StatusOK, &page)
			var got []string
			for _, task := range page.Tasks {
				got = append(got, task.ID)
			}
			if page.Total != tt.total || strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("got total %d %v, want %d %v", page.Total, got, tt.total, tt.want)
			}
		})
	}

	rec := do(t, api, http.MethodGet, "/tasks?offset=10", "")
	if !strings.Contains(rec.Body.String(), `"tasks":null`) {
		t.Fatalf("empty window must serialise tasks as null: %s", rec.Body.String())
	}

	failures := []struct {
		query string
		code  string
	}{
		{"order=nope", "bad_order[0]"},
		{"order=id,,appId", "bad_order[1]"},
		{"limit=-1", "bad_limit"},
		{"offset=x", "bad_offset"},
		{"creationFrom=x", "bad_creationFrom"},
		{"hasCloseTs=maybe", "bad_hasCloseTs"},
		{"goalKeywords=k1,,k2", "bad_goal.keywords[1]"},
	}
	for _, f := range failures {
		expectError(t, do(t, api, http.MethodGet, "/tasks?"+f.query, ""), http.StatusBadRequest, f.code)
	}
}

func TestTasks_TransactionsAndMessages(t *testing.T) {
	api := newTestAPI(t)
	expect(t, do(t, api, http.MethodPost, "/tasks", `{"id":"t","appId":"app"}`), http.StatusCreated, nil)

	for i, want := range []string{"0", "1"} {
		var added tasks.TaskTransaction
		body := `{"label":"accept","actioneerId":"u` + want + `"}`
		expect(t, do(t, api, http.MethodPost, "/tasks/t/transactions", body), http.StatusCreated, &added)
		if added.ID != want || added.TaskID != "t" {
			t.Fatalf("transaction %d: unexpected %+v", i, added)
		}
	}

	var message tasks.Message
	expect(t, do(t, api, http.MethodPost, "/tasks/t/transactions/1/messages", `{"receiverId":"r","label":"hi"}`), http.StatusCreated, &message)
	if message.Label != "hi" {
		t.Fatalf("unexpected message %+v", message)
	}
	expectError(t, do(t, api, http.MethodPost, "/tasks/t/transactions/9/messages", `{"label":"hi"}`), http.StatusNotFound, controller.CodeNotFound)

	var transactions tasks.TaskTransactionsPage
	expect(t, do(t, api, http.MethodGet, "/taskTransactions?taskId=t", ""), http.StatusOK, &transactions)
	if transactions.Total != 2 || len(transactions.Transactions) != 2 || transactions.Transactions[0].ID != "0" {
		t.Fatalf("unexpected transactions page %+v", transactions)
	}

	transactions = tasks.TaskTransactionsPage{}
	expect(t, do(t, api, http.MethodGet, "/taskTransactions?label=accept&actioneerId=u1", ""), http.StatusOK, &transactions)
	if transactions.Total != 1 || transactions.Transactions[0].ID != "1" {
		t.Fatalf("unexpected filtered transactions page %+v", transactions)
	}

	var messages tasks.MessagesPage
	expect(t, do(t, api, http.MethodGet, "/messages?transactionId=1&transactionLabel=accept", ""), http.StatusOK, &messages)
	if messages.Total != 1 || messages.Messages[0].ReceiverID != "r" {
		t.Fatalf("unexpected messages page %+v", messages)
	}

	rec := do(t, api, http.MethodGet, "/messages?transactionId=0", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"messages":null`) {
		t.Fatalf("expected an empty messages page, got %d %s", rec.Code, rec.Body.String())
	}

	expectError(t, do(t, api, http.MethodGet, "/messages?order=nope", ""), http.StatusBadRequest, "bad_order[0]")
	expectError(t, do(t, api, http.MethodGet, "/taskTransactions?taskCreationTo=x", ""), http.StatusBadRequest, "bad_taskCreationTo")
}

func TestTaskTypes_Lifecycle(t *testing.T) {
	api := newTestAPI(t)

	var created tasktypes.TaskType
	expect(t, do(t, api, http.MethodPost, "/taskTypes", `{"id":"tt","name":"n","keywords":["a"],"_creationTs":1}`), http.StatusCreated, &created)
	if created.CreationTs != 200 || created.LastUpdateTs != 200 {
		t.Fatalf("task types are stamped on creation, got %+v", created)
	}

	var updated tasktypes.TaskType
	expect(t, do(t, api, http.MethodPut, "/taskTypes/tt", `{"name":"m"}`), http.StatusOK, &updated)
	if updated.ID != "tt" || updated.CreationTs != 200 || len(updated.Keywords) != 0 {
		t.Fatalf("unexpected updated task type %+v", updated)
	}

	var patched tasktypes.TaskType
	expect(t, do(t, api, http.MethodPatch, "/taskTypes/tt", `{"transactions":{"accept":{"description":"d"}}}`), http.StatusOK, &patched)
	if patched.Name != "m" || patched.Transactions["accept"].Description != "d" {
		t.Fatalf("unexpected patched task type %+v", patched)
	}

	var page tasktypes.TaskTypesPage
	expect(t, do(t, api, http.MethodGet, "/taskTypes?name=/^m$/&order=-name", ""), http.StatusOK, &page)
	if page.Total != 1 || page.TaskTypes[0].ID != "tt" {
		t.Fatalf("unexpected page %+v", page)
	}
	expectError(t, do(t, api, http.MethodGet, "/taskTypes?order=goalName", ""), http.StatusBadRequest, "bad_order[0]")
	expectError(t, do(t, api, http.MethodPost, "/taskTypes", `{"id":"tt"}`), http.StatusConflict, controller.CodeDuplicated)
	expectError(t, do(t, api, http.MethodPost, "/taskTypes", `{"keywords":"a"}`), http.StatusBadRequest, codeBadTaskType)

	expect(t, do(t, api, http.MethodDelete, "/taskTypes/tt", ""), http.StatusNoContent, nil)
	expectError(t, do(t, api, http.MethodGet, "/taskTypes/tt", ""), http.StatusNotFound, controller.CodeNotFound)
}

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"k1", []string{"k1"}},
		{"k1,k2", []string{"k1", "k2"}},
		{"k1,,k2", []string{"k1", "", "k2"}},
		{"/a{1,3}/", []string{"/a{1,3}/"}},
		{"k1,/a{1,3}/,k2", []string{"k1", "/a{1,3}/", "k2"}},
		{"/,k", []string{"/", "k"}},
		{"/a,b", []string{"/a,b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := splitKeywords(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitKeywords(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
