package main

import (
	"bytes"
	"strings"
	"testing"

	dom "taskboard/internal/domain"
	"taskboard/internal/reconcile"
)

func TestRenderBoardGroupsByStatus(t *testing.T) {
	alice := &dom.UserRef{ID: 1, Username: "alice"}
	tasks := []dom.Task{
		{ID: "11111111-aaaa", Title: "Write spec", Status: dom.StatusTodo},
		{ID: "22222222-bbbb", Title: "Wire push", Status: dom.StatusInProgress, AssignedTo: alice},
	}
	var buf bytes.Buffer
	renderBoard(&buf, tasks)
	out := buf.String()

	for _, want := range []string{"To Do (1)", "In Progress (1)", "Done (0)", "11111111", "@alice"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "-aaaa") {
		t.Error("ids not shortened")
	}
	if strings.Index(out, "Write spec") > strings.Index(out, "Wire push") {
		t.Error("columns out of order")
	}
}

func TestRenderWorkloadFlagsOverload(t *testing.T) {
	var buf bytes.Buffer
	renderWorkload(&buf, reconcile.Workload{
		Unassigned: 2,
		Members: []reconcile.MemberLoad{
			{User: dom.UserRef{ID: 1, Username: "alice"}, Tasks: 5},
			{User: dom.UserRef{ID: 2, Username: "bob"}, Tasks: 1},
		},
	})
	lines := strings.Split(buf.String(), "\n")
	var alice, bob string
	for _, l := range lines {
		switch {
		case strings.Contains(l, "alice"):
			alice = l
		case strings.Contains(l, "bob"):
			bob = l
		}
	}
	if !strings.Contains(alice, "overloaded") || strings.Contains(bob, "overloaded") {
		t.Errorf("alice=%q bob=%q", alice, bob)
	}
	if !strings.Contains(buf.String(), "Unassigned") {
		t.Error("unassigned row missing")
	}
}

func TestMatchID(t *testing.T) {
	tasks := []dom.Task{{ID: "abc123"}, {ID: "abd456"}, {ID: "ab"}}
	if id, err := matchID(tasks, "abc"); err != nil || id != "abc123" {
		t.Errorf("abc = %q, %v", id, err)
	}
	if id, err := matchID(tasks, "ab"); err != nil || id != "ab" {
		t.Errorf("exact ab = %q, %v", id, err)
	}
	if _, err := matchID(tasks, "a"); err == nil {
		t.Error("ambiguous prefix accepted")
	}
	if _, err := matchID(tasks, "zz"); err == nil {
		t.Error("unknown prefix accepted")
	}
}
