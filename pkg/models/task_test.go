package models

import "testing"

func TestTaskStateValid(t *testing.T) {
	valid := []TaskState{TaskPending, TaskRunning, TaskSucceeded, TaskFailed, TaskTimedOut, TaskCancelled}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if TaskState("exploded").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestTaskStateTerminal(t *testing.T) {
	tests := []struct {
		state    TaskState
		terminal bool
	}{
		{TaskPending, false},
		{TaskRunning, false},
		{TaskSucceeded, true},
		{TaskFailed, true},
		{TaskTimedOut, true},
		{TaskCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("state %q: Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestTaskDependsOnTask(t *testing.T) {
	task := &Task{
		ID: "t2",
		DependsOn: []Dependency{
			{TaskID: "t1"},
			{TaskID: "t0", BestEffort: true},
		},
	}

	if !task.DependsOnTask("t1") {
		t.Error("expected dependency on t1")
	}
	if !task.DependsOnTask("t0") {
		t.Error("expected dependency on t0")
	}
	if task.DependsOnTask("t9") {
		t.Error("unexpected dependency on t9")
	}
}

func TestPlanCompleted(t *testing.T) {
	plan := &Plan{
		ID: "p1",
		Tasks: []*Task{
			{ID: "a", State: TaskSucceeded},
			{ID: "b", State: TaskRunning},
		},
	}

	if plan.Completed() {
		t.Error("plan with a running task should not be completed")
	}

	plan.Tasks[1].State = TaskCancelled
	if !plan.Completed() {
		t.Error("plan with all-terminal tasks should be completed")
	}

	if got := plan.Task("a"); got == nil || got.ID != "a" {
		t.Errorf("Task(a) = %v, want task a", got)
	}
	if got := plan.Task("missing"); got != nil {
		t.Errorf("Task(missing) = %v, want nil", got)
	}
}
