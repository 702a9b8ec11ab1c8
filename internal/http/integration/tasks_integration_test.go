package integration__test

import (
	"net/http"
	"testing"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

func TestTwoUsersScenario(t *testing.T) {
	a := setupTestApp(t)
	r := a.router

	userA := register(t, r, "A", "a@x.com", "secret1")
	t1 := userA.Token

	w := doRequest(r, http.MethodPost, "/tasks", `{"description":"buy milk"}`, t1)
	mustStatus(t, w, http.StatusCreated)

	var created task.Task
	mustReadJSON(t, w, &created)

	if created.Owner != userA.User.ID || created.Completed || created.Priority != task.PriorityMedium {
		t.Fatalf("unexpected task %+v", created)
	}

	w = doRequest(r, http.MethodGet, "/tasks?completed=true", "", t1)
	mustStatus(t, w, http.StatusOK)
	if w.Body.String() != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}

	w = doRequest(r, http.MethodPatch, "/tasks/"+created.ID, `{"completed":true}`, t1)
	mustStatus(t, w, http.StatusOK)

	var patched task.Task
	mustReadJSON(t, w, &patched)
	if !patched.Completed {
		t.Fatalf("task not completed after patch: %+v", patched)
	}

	userB := register(t, r, "B", "b@x.com", "secret2")
	w = doRequest(r, http.MethodPost, "/tasks", `{"description":"walk dog","priority":"high"}`, userB.Token)
	mustStatus(t, w, http.StatusCreated)

	w = doRequest(r, http.MethodGet, "/tasks", "", t1)
	mustStatus(t, w, http.StatusOK)

	var list []task.Task
	mustReadJSON(t, w, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("A should see only their own task, got %+v", list)
	}
}

func TestForeignTaskLooksMissing(t *testing.T) {
	a := setupTestApp(t)
	r := a.router

	owner := register(t, r, "Owner", "owner@x.com", "secret1")
	other := register(t, r, "Other", "other@x.com", "secret1")

	w := doRequest(r, http.MethodPost, "/tasks", `{"description":"private"}`, owner.Token)
	mustStatus(t, w, http.StatusCreated)

	var tk task.Task
	mustReadJSON(t, w, &tk)

	missing := "00000000-0000-0000-0000-000000000000"

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		body := ""
		if method == http.MethodPatch {
			body = `{"completed":true}`
		}

		foreign := doRequest(r, method, "/tasks/"+tk.ID, body, other.Token)
		absent := doRequest(r, method, "/tasks/"+missing, body, other.Token)

		mustStatus(t, foreign, http.StatusNotFound)
		mustStatus(t, absent, http.StatusNotFound)

		var fe, ae apiError
		mustReadJSON(t, foreign, &fe)
		mustReadJSON(t, absent, &ae)

		if fe != ae || fe.Error.Message != "task not found" {
			t.Fatalf("%s: foreign %+v differs from absent %+v", method, fe, ae)
		}
	}

	// the owner's task survived the attempts
	w = doRequest(r, http.MethodGet, "/tasks/"+tk.ID, "", owner.Token)
	mustStatus(t, w, http.StatusOK)

	var got task.Task
	mustReadJSON(t, w, &got)
	if got.Completed {
		t.Fatalf("foreign patch leaked through: %+v", got)
	}
}

func TestPatchTaskRejectsUnknownKeys(t *testing.T) {
	a := setupTestApp(t)
	r := a.router

	owner := register(t, r, "Owner", "owner@x.com", "secret1")

	w := doRequest(r, http.MethodPost, "/tasks", `{"description":"mine"}`, owner.Token)
	mustStatus(t, w, http.StatusCreated)

	var tk task.Task
	mustReadJSON(t, w, &tk)

	w = doRequest(r, http.MethodPatch, "/tasks/"+tk.ID, `{"owner":"someone-else"}`, owner.Token)
	mustStatus(t, w, http.StatusBadRequest)

	w = doRequest(r, http.MethodPatch, "/tasks/"+tk.ID, `{}`, owner.Token)
	mustStatus(t, w, http.StatusBadRequest)
}

func TestListTasksSortAndPage(t *testing.T) {
	a := setupTestApp(t)
	r := a.router

	owner := register(t, r, "Owner", "owner@x.com", "secret1")

	for _, body := range []string{
		`{"description":"low one","priority":"low"}`,
		`{"description":"high one","priority":"high"}`,
		`{"description":"medium one"}`,
	} {
		mustStatus(t, doRequest(r, http.MethodPost, "/tasks", body, owner.Token), http.StatusCreated)
	}

	w := doRequest(r, http.MethodGet, "/tasks?sortBy=priority:desc&limit=2", "", owner.Token)
	mustStatus(t, w, http.StatusOK)

	var list []task.Task
	mustReadJSON(t, w, &list)
	if len(list) != 2 || list[0].Priority != task.PriorityHigh || list[1].Priority != task.PriorityMedium {
		t.Fatalf("unexpected page %+v", list)
	}

	w = doRequest(r, http.MethodGet, "/tasks?sortBy=priority:desc&limit=2&skip=2", "", owner.Token)
	mustStatus(t, w, http.StatusOK)

	list = nil
	mustReadJSON(t, w, &list)
	if len(list) != 1 || list[0].Priority != task.PriorityLow {
		t.Fatalf("unexpected second page %+v", list)
	}
}

func TestTasksRequireAuth(t *testing.T) {
	a := setupTestApp(t)

	for _, token := range []string{"", "not-a-jwt"} {
		w := doRequest(a.router, http.MethodGet, "/tasks", "", token)
		mustStatus(t, w, http.StatusUnauthorized)

		var e apiError
		mustReadJSON(t, w, &e)
		if e.Error.Message != "please authenticate" {
			t.Fatalf("unexpected message %q", e.Error.Message)
		}
	}
}
