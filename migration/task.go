// Package migration implements the per-proxy slot-migration state machine:
// a Task drives one slot range through PreCheck, PreBlocking, Blocking,
// Committing and SwitchCommitted (or Aborted), and a ProxyMigrationMap
// tracks every task currently live on one proxy and routes commands to
// whichever task owns the command's slot.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package migration

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/clustermeta/broker/meta"
	"github.com/clustermeta/broker/xid"
)

// Role distinguishes the source side of a handoff (Migrating) from the
// destination side (Importing). Both sides run the identical state machine;
// only the role-specific transition actions differ.
type Role int

const (
	RoleMigrating Role = iota
	RoleImporting
)

func (r Role) String() string {
	if r == RoleImporting {
		return "Importing"
	}
	return "Migrating"
}

// State is a task's position in the handoff state machine.
type State int

const (
	PreCheck State = iota
	PreBlocking
	Blocking
	Committing
	SwitchCommitted
	Aborted
)

var stateNames = map[State]string{
	PreCheck:        "PreCheck",
	PreBlocking:     "PreBlocking",
	Blocking:        "Blocking",
	Committing:      "Committing",
	SwitchCommitted: "SwitchCommitted",
	Aborted:         "Aborted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// ErrNotReady is returned by HandleSwitch when the destination hasn't yet
// reached Blocking; it is retriable.
var ErrNotReady = errors.New("migration: destination not ready for switch")

// ErrPeerMigrating is returned by HandleSwitch when a switch request lands
// on a source-role (Migrating) task instead of a destination — a protocol
// bug on the caller's side, logged loudly rather than silently retried.
var ErrPeerMigrating = errors.New("migration: switch sent to a migrating (source) task")

// Task is one migration activity: the slot range it is moving, its
// identity, its role, and the state and cancellation handle of its run.
type Task struct {
	ID    string
	Meta  meta.MigrationMeta
	Role  Role
	Start int
	End   int

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// Contains reports whether slot falls within the task's range.
func (t *Task) Contains(slot int) bool { return slot >= t.Start && slot < t.End }

// State returns the task's current state under lock.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	glog.V(4).Infof("migration: task %s (%s) -> %s", t.ID, t.Role, s)
}

// newTask starts a task's cooperative activity: it advances from PreCheck
// through its own scan/copy work and settles in Blocking (source) or stays
// ready to accept a switch (destination), at which point the coordinator's
// migration-sync loop or the peer's HandleSwitch call drives it further.
// The activity observes ctx cancellation at every suspension point, the
// spec's cooperative-cancellation rule: a dropped stop-handle (here, the
// returned cancel from Stop) must not rely on any other side effect to
// actually halt the work.
func newTask(id string, m meta.MigrationMeta, role Role, start, end int, copy func(ctx context.Context, t *Task) error) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{ID: id, Meta: m, Role: role, Start: start, End: end, state: PreCheck, cancel: cancel, done: make(chan struct{})}
	go t.run(ctx, copy)
	return t
}

func (t *Task) run(ctx context.Context, copy func(ctx context.Context, t *Task) error) {
	defer close(t.done)
	t.setState(PreBlocking)
	if copy != nil {
		if err := copy(ctx, t); err != nil {
			if ctx.Err() != nil {
				glog.V(3).Infof("migration: task %s cancelled during copy", t.ID)
			} else {
				glog.Errorf("migration: task %s copy failed: %v", t.ID, err)
			}
			t.setState(Aborted)
			return
		}
	}
	select {
	case <-ctx.Done():
		t.setState(Aborted)
		return
	default:
	}
	t.setState(Blocking)
}

// Stop signals cancellation and waits for the activity to observe it at its
// next suspension point. Idempotent.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// HandleSwitch implements the receiving side of the switch protocol. Only a
// destination (Importing) task not yet at Blocking replies ErrNotReady; a
// source (Migrating) task receiving a switch request is a caller bug.
func (t *Task) HandleSwitch(arg meta.MigrationMeta) error {
	if !t.Meta.Equal(arg) {
		return errors.Errorf("migration: switch arg %+v does not match task %+v", arg, t.Meta)
	}
	if t.Role == RoleMigrating {
		glog.Errorf("migration: handle_switch delivered to migrating task %s, expected importing", t.ID)
		return ErrPeerMigrating
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Blocking {
		return ErrNotReady
	}
	t.state = Committing
	glog.V(4).Infof("migration: task %s -> Committing", t.ID)
	return nil
}

// Commit moves the task to SwitchCommitted, its terminal success state. The
// coordinator's migration-sync loop commits the task on the broker once
// both the source and the destination report this state.
func (t *Task) Commit() {
	t.setState(SwitchCommitted)
}

func newTaskID() string { return "mtask-" + xid.Gen() }
