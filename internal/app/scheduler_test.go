package app

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/memory"
	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSchedulerRunsReconcileOnStart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	inst := &model.Institution{Name: "north", IsActive: true, MaxTeachers: 1}
	require.NoError(t, store.Institutions().Create(ctx, inst))

	u := &model.User{Role: model.RoleTeacher, Name: "lee", Email: "lee@x.edu"}
	require.NoError(t, store.Users().Create(ctx, u))
	require.NoError(t, store.Teachers().Create(ctx, &model.Teacher{ID: u.ID, TeacherCode: "TCHAAAAA"}))
	require.NoError(t, store.Memberships().Create(ctx, &model.Membership{UserID: u.ID, InstitutionID: inst.ID, Role: model.RoleTeacher, IsActive: true}))

	reconcile := service.NewReconcileService(store, nil, zap.NewNop())
	scheduler := NewScheduler(reconcile, time.Hour, zap.NewNop())
	scheduler.Start(ctx)

	require.Eventually(t, func() bool {
		teacher, err := store.Teachers().GetByID(ctx, u.ID)
		return err == nil && teacher.InstitutionID != nil && *teacher.InstitutionID == inst.ID
	}, time.Second, 10*time.Millisecond)

	scheduler.Stop()
	// повторный Stop не паникует
	scheduler.Stop()
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reconcile := service.NewReconcileService(memory.NewStore(), nil, zap.NewNop())
	scheduler := NewScheduler(reconcile, time.Hour, zap.NewNop())

	scheduler.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestZapWatermillLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapWatermillLogger(zap.New(core))

	logger.With(watermill.LogFields{"topic": "admin_activity"}).Info("subscribed", watermill.LogFields{"n": 1})
	logger.Error("publish failed", assert.AnError, nil)
	logger.Trace("tick", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "subscribed", entries[0].Message)
	assert.Equal(t, "watermill", entries[0].LoggerName)
	assert.Equal(t, "admin_activity", entries[0].ContextMap()["topic"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, assert.AnError.Error(), entries[1].ContextMap()["error"])

	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}
