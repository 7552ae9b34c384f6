package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/memory"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestActivityRecorderToSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	sink := NewActivitySink(pubSub, store.ActivityLogs(), zap.NewNop())
	_, err := sink.Subscribe(ctx)
	require.NoError(t, err)

	recorder := NewActivityRecorder(pubSub, zap.NewNop())
	instID := uuid.New()
	userID := uuid.New()
	recorder.Record(ctx, &model.ActivityLog{
		InstitutionID: &instID,
		Actor:         "admin:north",
		Action:        model.ActivityTeacherAdded,
		TargetUserID:  &userID,
		Details:       map[string]string{"email": "a@x.edu"},
	})

	require.Eventually(t, func() bool {
		logs, err := store.ActivityLogs().ListByInstitution(ctx, instID, 10)
		return err == nil && len(logs) == 1
	}, time.Second, 10*time.Millisecond)

	logs, err := store.ActivityLogs().ListByInstitution(ctx, instID, 10)
	require.NoError(t, err)
	assert.Equal(t, "admin:north", logs[0].Actor)
	assert.Equal(t, "a@x.edu", logs[0].Details["email"])
	assert.Equal(t, userID, *logs[0].TargetUserID)
}

func TestMembershipActivityReachesLog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	_, err := NewActivitySink(pubSub, f.store.ActivityLogs(), zap.NewNop()).Subscribe(ctx)
	require.NoError(t, err)

	members := NewMembershipService(f.store, NewAuthorizer(), NewPlanSigner(f.jwt, time.Minute), NewActivityRecorder(pubSub, zap.NewNop()), zap.NewNop())
	inst := f.institution(t, "north", 5, 5)
	admin := f.admin(t, inst)

	_, err = members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		entries, err := members.ListActivity(f.ctx, admin, inst.ID, 0)
		return err == nil && len(entries) == 1 && entries[0].Action == model.ActivityTeacherAdded
	}, time.Second, 10*time.Millisecond)
}

func TestSinkWritesRecordsOfCancelledRequests(t *testing.T) {
	store := memory.NewStore()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	sinkCtx, cancelSink := context.WithCancel(context.Background())
	defer cancelSink()
	done, err := NewActivitySink(pubSub, store.ActivityLogs(), zap.NewNop()).Subscribe(sinkCtx)
	require.NoError(t, err)

	// Запрос завершился до того, как запись дошла до журнала
	reqCtx, cancelReq := context.WithCancel(context.Background())
	cancelReq()

	instID := uuid.New()
	NewActivityRecorder(pubSub, zap.NewNop()).Record(reqCtx, &model.ActivityLog{
		InstitutionID: &instID,
		Actor:         "admin:north",
		Action:        model.ActivityTeacherAdded,
	})

	require.Eventually(t, func() bool {
		logs, err := store.ActivityLogs().ListByInstitution(context.Background(), instID, 10)
		return err == nil && len(logs) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, pubSub.Close())
	cancelSink()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink did not stop after pubsub close")
	}
}
