package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"problem_market/internal/app/service"
	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/platform/events"
	"problem_market/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(context.Context), error) {
	if l.held {
		return nil, common.ErrLockNotAcquired
	}
	l.held = true
	return func(context.Context) { l.held = false; l.released++ }, nil
}

type sweepFixture struct {
	store   *testutil.MemStore
	sweeper *DeadlineSweeper
	locker  *fakeLocker
	poster  model.User
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	clock := testutil.NewClock(now)
	store := testutil.NewMemStore(clock)
	resolver := service.NewSubmissionService(store.SubmissionRepo(), store.ProblemRepo(), store.UserRepo(), store, &events.Recorder{})
	locker := &fakeLocker{}
	sw := NewDeadlineSweeper(store.ProblemRepo(), resolver, locker, SweeperConfig{
		GracePeriod: 7 * day,
		LockKey:     "deadline_sweeper_lock",
		BatchSize:   2,
	})
	sw.now = clock.Now
	return &sweepFixture{store: store, sweeper: sw, locker: locker, poster: store.SeedUser("Poster")}
}

func (f *sweepFixture) problem(status model.ProblemStatus, deadline time.Time) model.Problem {
	p := model.Problem{
		ID:          uuid.NewString(),
		Title:       "Night trains stop running before shifts end",
		Category:    model.CategoryTransportation,
		PostedByID:  f.poster.ID,
		Status:      status,
		Deadline:    deadline,
		Submissions: []string{},
		UpvotedBy:   []string{},
		CreatedAt:   deadline.Add(-30 * day),
	}
	f.store.PutProblem(p)
	return p
}

func (f *sweepFixture) submission(problemID string, votes int, createdAt time.Time) model.Submission {
	dev := f.store.SeedUser("Dev")
	voters := make([]string, votes)
	for i := range voters {
		voters[i] = uuid.NewString()
	}
	sub := model.Submission{
		ID:          uuid.NewString(),
		ProblemID:   problemID,
		DeveloperID: dev.ID,
		Title:       "Shift-aware ride sharing board",
		Status:      model.SubmissionStatusSubmitted,
		VotedBy:     voters,
		CreatedAt:   createdAt,
	}
	f.store.PutSubmission(sub)
	return sub
}

func TestSweep_TieGoesToEarliestSubmission(t *testing.T) {
	f := newSweepFixture(t)
	p := f.problem(model.ProblemStatusInReview, now.Add(-8*day))
	t1 := now.Add(-20 * day)
	first := f.submission(p.ID, 5, t1)
	f.submission(p.ID, 5, t1.Add(time.Hour))
	f.submission(p.ID, 3, t1.Add(2*time.Hour))

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Candidates: 1, Solved: 1}, report)

	stored, _ := f.store.Problem(p.ID)
	assert.Equal(t, model.ProblemStatusSolved, stored.Status)
	require.NotNil(t, stored.SelectedWinnerID)
	assert.Equal(t, first.ID, *stored.SelectedWinnerID)

	winner, _ := f.store.Submission(first.ID)
	assert.True(t, winner.IsWinner)
	dev, _ := f.store.User(first.DeveloperID)
	assert.Equal(t, 1, dev.Wins)
}

func TestSweep_ClosesProblemsWithoutSubmissions(t *testing.T) {
	f := newSweepFixture(t)
	p := f.problem(model.ProblemStatusInReview, now.Add(-10*day))

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed)

	stored, _ := f.store.Problem(p.ID)
	assert.Equal(t, model.ProblemStatusClosed, stored.Status)
	assert.Nil(t, stored.SelectedWinnerID)
}

func TestSweep_LeavesIneligibleProblemsAlone(t *testing.T) {
	f := newSweepFixture(t)
	inGrace := f.problem(model.ProblemStatusInReview, now.Add(-6*day))
	f.submission(inGrace.ID, 2, now.Add(-9*day))
	open := f.problem(model.ProblemStatusOpen, now.Add(-30*day))

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)

	for _, id := range []string{inGrace.ID, open.ID} {
		stored, _ := f.store.Problem(id)
		assert.Nil(t, stored.SelectedWinnerID)
	}
}

func TestSweep_IsIdempotentAcrossBatches(t *testing.T) {
	f := newSweepFixture(t)
	var ids []string
	for i := 0; i < 5; i++ {
		p := f.problem(model.ProblemStatusInReview, now.Add(-time.Duration(8+i)*day))
		f.submission(p.ID, i, now.Add(-40*day))
		ids = append(ids, p.ID)
	}

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Candidates)
	assert.Equal(t, 5, report.Solved)

	again, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, again)

	for _, id := range ids {
		stored, _ := f.store.Problem(id)
		assert.Equal(t, model.ProblemStatusSolved, stored.Status)
	}
}

func TestSweep_FailureOfOneProblemDoesNotStopTheRun(t *testing.T) {
	f := newSweepFixture(t)
	p1 := f.problem(model.ProblemStatusInReview, now.Add(-9*day))
	f.submission(p1.ID, 1, now.Add(-20*day))
	f.store.FailOn("SubmissionRepository.MarkWinner", errors.New("deadlock detected"))
	p2 := f.problem(model.ProblemStatusInReview, now.Add(-8*day))

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Closed)

	failed, _ := f.store.Problem(p1.ID)
	assert.Equal(t, model.ProblemStatusInReview, failed.Status)
	closed, _ := f.store.Problem(p2.ID)
	assert.Equal(t, model.ProblemStatusClosed, closed.Status)
}

func TestSweep_FailedBatchDoesNotHideLaterProblems(t *testing.T) {
	f := newSweepFixture(t)
	var failing []string
	for i := 0; i < 2; i++ {
		p := f.problem(model.ProblemStatusInReview, now.Add(-time.Duration(20-i)*day))
		f.submission(p.ID, 1, now.Add(-30*day))
		failing = append(failing, p.ID)
	}
	later := f.problem(model.ProblemStatusInReview, now.Add(-8*day))
	f.store.FailOn("SubmissionRepository.MarkWinner", errors.New("deadlock detected"))

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Candidates: 3, Closed: 1, Failed: 2}, report)

	closed, _ := f.store.Problem(later.ID)
	assert.Equal(t, model.ProblemStatusClosed, closed.Status)
	for _, id := range failing {
		stored, _ := f.store.Problem(id)
		assert.Equal(t, model.ProblemStatusInReview, stored.Status)
	}

	f.store.FailOn("SubmissionRepository.MarkWinner", nil)
	retry, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Candidates: 2, Solved: 2}, retry)
}

func TestSweep_PagesThroughSharedDeadlines(t *testing.T) {
	f := newSweepFixture(t)
	deadline := now.Add(-9 * day)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.problem(model.ProblemStatusInReview, deadline).ID)
	}
	f.store.FailOn("ProblemRepository.UpdateStatus", errors.New("connection reset"))

	report, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Candidates: 5, Failed: 5}, report)
	for _, id := range ids {
		stored, _ := f.store.Problem(id)
		assert.Equal(t, model.ProblemStatusInReview, stored.Status)
	}
}

func TestSweep_RespectsLock(t *testing.T) {
	f := newSweepFixture(t)
	p := f.problem(model.ProblemStatusInReview, now.Add(-10*day))
	f.locker.held = true

	_, err := f.sweeper.Sweep(context.Background())
	assert.ErrorIs(t, err, common.ErrLockNotAcquired)
	stored, _ := f.store.Problem(p.ID)
	assert.Equal(t, model.ProblemStatusInReview, stored.Status)

	f.locker.held = false
	_, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.locker.released)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	f := newSweepFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, f.sweeper.Start(ctx, "every morning"))
	assert.NoError(t, f.sweeper.Start(ctx, "0 9 * * *"))
}
