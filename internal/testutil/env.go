// Package testutil provides shared fixtures for package tests: a miniredis-backed
// remote store, a pending queue, and session builders.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/dyluth/rollcall/pkg/remotestore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Environment is an isolated remote store plus local queue for one test.
type Environment struct {
	T         *testing.T
	Ctx       context.Context
	Redis     *miniredis.Miniredis
	Store     *remotestore.Client
	Queue     *pending.Memory
	Namespace string
}

// SetupEnvironment starts miniredis, connects a store client and creates an empty queue.
// Everything is torn down via t.Cleanup.
func SetupEnvironment(t *testing.T) *Environment {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	namespace := "test-school"
	store, err := remotestore.NewClient(&redis.Options{Addr: mr.Addr()}, namespace)
	require.NoError(t, err, "Failed to create store client")
	t.Cleanup(func() { store.Close() })

	return &Environment{
		T:         t,
		Ctx:       context.Background(),
		Redis:     mr,
		Store:     store,
		Queue:     pending.NewMemory(),
		Namespace: namespace,
	}
}

// GoOffline stops the server so store calls fail with connection errors.
// Stored data survives until GoOnline.
func (env *Environment) GoOffline() {
	env.Redis.Close()
}

// GoOnline restarts the server on the same address.
func (env *Environment) GoOnline() {
	env.T.Helper()
	require.NoError(env.T, env.Redis.Restart(), "Failed to restart miniredis")
}

// StoredSession fetches the remote copy of id, failing the test if absent.
func (env *Environment) StoredSession(id string) *attendance.Session {
	env.T.Helper()
	s, err := env.Store.GetSession(env.Ctx, id)
	require.NoError(env.T, err, "Session %s not in remote store", id)
	return s
}

// RequireQueued checks the queue holds exactly n entries and returns them.
func (env *Environment) RequireQueued(n int) []*pending.Entry {
	env.T.Helper()
	entries, err := env.Queue.ListPending(env.Ctx)
	require.NoError(env.T, err)
	require.Len(env.T, entries, n, "Unexpected pending queue length")
	return entries
}

// StoredKeys lists all session document keys in the remote store.
func (env *Environment) StoredKeys() []string {
	keys := make([]string, 0)
	for _, k := range env.Redis.Keys() {
		if k != remotestore.SessionsByDateKey(env.Namespace) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Session builds a valid draft for classID/teacherID on date with one record per status.
// The ID is left empty so writers derive it.
func Session(classID, teacherID, date string, statuses ...attendance.MarkStatus) *attendance.Session {
	s := &attendance.Session{
		ClassID:     classID,
		ClassName:   "Class " + classID,
		TeacherID:   teacherID,
		TeacherName: "Teacher " + teacherID,
		Date:        date,
		Status:      attendance.StatusDraft,
	}
	genders := []attendance.Gender{attendance.GenderFemale, attendance.GenderMale}
	for i, st := range statuses {
		r := attendance.Record{
			LearnerID:   fmt.Sprintf("learner-%d", i+1),
			LearnerName: fmt.Sprintf("Learner %d", i+1),
			Gender:      genders[i%len(genders)],
			Status:      st,
			MarkedAt:    time.Date(2024, 3, 4, 8, 0, i, 0, time.UTC),
		}
		if st == attendance.MarkExcused {
			r.ExcusedReason = "medical"
		}
		s.Records = append(s.Records, r)
	}
	return s
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
