package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitStudent_ConcurrentAdmissionsNeverOverfill(t *testing.T) {
	const seats, contenders = 5, 40

	h := newHarness(t)
	courseID := h.store.addCourse(nil)
	h.store.addCapacity(courseID, intPtr(seats))

	var admitted, full int32
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
			switch {
			case err == nil:
				atomic.AddInt32(&admitted, 1)
			case errors.Is(err, apperrors.ErrCourseFull):
				atomic.AddInt32(&full, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(seats), admitted)
	assert.Equal(t, int32(contenders-seats), full)
	assert.Equal(t, seats, h.store.capacityCount(courseID))
}

func TestAdmitStudent_FallsBackToCourseCounters(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(intPtr(1))

	res, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.CapacitySourceCourse, res.Capacity.Source)
	assert.True(t, res.Capacity.IsFull)

	_, err = h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
	assert.Equal(t, apperrors.MsgCourseFull, apperrors.From(err).Message)
	assert.Equal(t, apperrors.KindCapacityExceeded, apperrors.KindOf(err))
}

func TestAdmitStudent_UnknownCourse(t *testing.T) {
	h := newHarness(t)

	_, err := h.admission.AdmitStudent(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdmitStudent_RetriesConcurrentUpdates(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(nil)
	h.store.addCapacity(courseID, intPtr(3))
	h.store.reserveConflicts = 2

	res, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Capacity.CurrentEnrollment)
}

func TestAdmitStudent_GivesUpAfterRetryBudget(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(nil)
	h.store.addCapacity(courseID, intPtr(3))
	h.store.reserveConflicts = 10

	_, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
	assert.Equal(t, apperrors.KindExternalService, apperrors.KindOf(err))
	assert.Equal(t, 0, h.store.capacityCount(courseID))
}

func TestAdmitStudent_UnlimitedCourseIsNeverFull(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(nil)
	h.store.addCapacity(courseID, nil)

	for i := 0; i < 25; i++ {
		res, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
		require.NoError(t, err)
		assert.False(t, res.Capacity.IsFull)
		assert.Nil(t, res.Capacity.AvailableSpots)
	}

	view, err := h.admission.GetCourseCapacity(context.Background(), courseID)
	require.NoError(t, err)
	assert.Equal(t, 25, view.CurrentEnrollment)
	assert.False(t, view.IsFull)
}

func TestRelease_ReturnsSeatOnce(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(nil)
	h.store.addCapacity(courseID, intPtr(2))

	res, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
	require.NoError(t, err)
	require.True(t, res.NeedsRelease)

	require.NoError(t, h.admission.Release(context.Background(), res))
	require.NoError(t, h.admission.Release(context.Background(), res))
	assert.Equal(t, 0, h.store.capacityCount(courseID))
}

func TestGetCourseCapacity_Derivations(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(intPtr(10))

	view, err := h.admission.GetCourseCapacity(context.Background(), courseID)
	require.NoError(t, err)
	assert.Equal(t, models.CapacitySourceCourse, view.Source)
	require.NotNil(t, view.AvailableSpots)
	assert.Equal(t, 10, *view.AvailableSpots)

	h.store.addCapacity(courseID, intPtr(0))
	view, err = h.admission.GetCourseCapacity(context.Background(), courseID)
	require.NoError(t, err)
	assert.Equal(t, models.CapacitySourceDedicated, view.Source)
	assert.True(t, view.IsFull)
}

func TestSetCourseCapacity(t *testing.T) {
	h := newHarness(t)
	courseID := h.store.addCourse(nil)
	h.store.addCapacity(courseID, intPtr(5))
	for i := 0; i < 3; i++ {
		_, err := h.admission.AdmitStudent(context.Background(), courseID, uuid.New())
		require.NoError(t, err)
	}

	t.Run("requires capability", func(t *testing.T) {
		_, err := h.admission.SetCourseCapacity(context.Background(), student(), courseID, intPtr(10))
		assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
	})

	t.Run("cannot drop below enrollment", func(t *testing.T) {
		_, err := h.admission.SetCourseCapacity(context.Background(), admin(), courseID, intPtr(2))
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("clearing makes course unlimited", func(t *testing.T) {
		view, err := h.admission.SetCourseCapacity(context.Background(), admin(), courseID, nil)
		require.NoError(t, err)
		assert.Nil(t, view.MaxStudents)
		assert.Equal(t, 3, view.CurrentEnrollment)
		assert.False(t, view.IsFull)
	})
}
