//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"problem_market/internal/app/service"
	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"
	"problem_market/internal/platform/database"
	"problem_market/internal/platform/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("problem_market"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		panic(err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic(err)
	}
	if err := database.Migrate("file://../../../migrations", dsn, "up"); err != nil {
		_ = container.Terminate(ctx)
		panic(err)
	}
	testDB, err = database.Open(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

type repos struct {
	users       repository.UserRepository
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	txm         repository.TxManager
}

func newRepos() repos {
	return repos{
		users:       repository.NewPgUserRepository(testDB),
		problems:    repository.NewPgProblemRepository(testDB),
		submissions: repository.NewPgSubmissionRepository(testDB),
		txm:         repository.NewPgTxManager(testDB),
	}
}

func createUser(t *testing.T, r repos, name string) model.User {
	t.Helper()
	u := model.User{ID: uuid.NewString(), ExternalID: "ext_" + uuid.NewString(), Email: uuid.NewString() + "@example.com", Name: name}
	require.NoError(t, r.users.Create(context.Background(), nil, &u))
	return u
}

func createProblem(t *testing.T, r repos, poster model.User, status model.ProblemStatus, deadline time.Time) model.Problem {
	t.Helper()
	p := model.Problem{
		ID:               uuid.NewString(),
		Title:            "Pharmacies run out of common prescriptions",
		Category:         model.CategoryHealthcare,
		AffectedAudience: []model.Audience{model.AudienceElderly},
		Description:      "Local pharmacies are out of stock every other week and nobody knows which one has supply.",
		PainLevel:        model.PainStressful,
		Frequency:        model.FrequencyWeekly,
		DesiredOutcome:   "Patients can see which pharmacy has stock",
		PostedByID:       poster.ID,
		Status:           status,
		Deadline:         deadline,
		PriorityScore:    model.PriorityScore(model.PainStressful, model.FrequencyWeekly),
	}
	p.Slug = "pharmacies-" + p.ID[:8]
	require.NoError(t, r.problems.CreateProblem(context.Background(), nil, &p))
	return p
}

func createSubmission(t *testing.T, r repos, problemID string, dev model.User, voters int) model.Submission {
	t.Helper()
	ctx := context.Background()
	s := model.Submission{
		ID:          uuid.NewString(),
		ProblemID:   problemID,
		DeveloperID: dev.ID,
		Title:       "Pharmacy stock map",
		Description: "Crowdsourced stock reports on a map with alerts when a pharmacy restocks a watched drug.",
		GithubLink:  "https://github.com/example/stock-map",
		TechStack:   []string{"go"},
		Features:    []string{},
		Status:      model.SubmissionStatusSubmitted,
	}
	require.NoError(t, r.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := r.submissions.CreateSubmission(ctx, tx, &s); err != nil {
			return err
		}
		return r.problems.AddSubmission(ctx, tx, problemID, s.ID)
	}))
	for i := 0; i < voters; i++ {
		_, err := r.submissions.ToggleVote(ctx, s.ID, uuid.NewString())
		require.NoError(t, err)
	}
	return s
}

func TestCreateProblem_QuotaHoldsUnderConcurrency(t *testing.T) {
	r := newRepos()
	poster := createUser(t, r, "Poster")
	svc := service.NewProblemService(r.problems, r.users, r.txm, events.NopPublisher{})

	titles := []string{
		"Bus schedules in the north district are unreliable",
		"Library opening hours change without any notice",
		"Recycling pickup days are impossible to remember",
		"Water outages are announced after they already happen",
		"Parents cannot find open slots at daycare centres",
	}
	var wg sync.WaitGroup
	errs := make([]error, len(titles))
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			in := model.CreateProblemInput{
				Title:               title,
				Category:            model.CategoryOther,
				AffectedAudience:    []model.Audience{model.AudienceEveryone},
				Description:         "This keeps happening to everyone in the neighbourhood and there is no good way around it.",
				PainLevel:           model.PainTimeConsuming,
				Frequency:           model.FrequencyWeekly,
				DesiredOutcome:      "People can plan around it without guessing",
				Deadline:            time.Now().Add(30 * 24 * time.Hour),
				ConfirmNotDuplicate: true,
			}
			_, errs[i] = svc.CreateProblem(context.Background(), poster.ID, in)
		}(i, title)
	}
	wg.Wait()

	created, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, common.ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, model.MonthlyProblemLimit, created)
	assert.Equal(t, len(titles)-model.MonthlyProblemLimit, rejected)

	u, err := r.users.FindByID(context.Background(), poster.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MonthlyProblemLimit, u.TotalProblemsPosted)
}

func TestUsers_DuplicateExternalIDConflicts(t *testing.T) {
	r := newRepos()
	u := createUser(t, r, "First")

	dup := model.User{ID: uuid.NewString(), ExternalID: u.ExternalID, Email: "other@example.com", Name: "Second"}
	err := r.users.Create(context.Background(), nil, &dup)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestResolveExpiredProblem_PicksMostVoted(t *testing.T) {
	r := newRepos()
	ctx := context.Background()
	poster := createUser(t, r, "Poster")
	devA := createUser(t, r, "Dev A")
	devB := createUser(t, r, "Dev B")

	p := createProblem(t, r, poster, model.ProblemStatusInReview, time.Now().Add(-10*24*time.Hour))
	createSubmission(t, r, p.ID, devA, 1)
	best := createSubmission(t, r, p.ID, devB, 3)

	svc := service.NewSubmissionService(r.submissions, r.problems, r.users, r.txm, events.NopPublisher{})
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	candidates, err := r.problems.ListSweepCandidates(ctx, cutoff, nil, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, p.ID)

	stored, err := r.problems.FindProblemByID(ctx, p.ID)
	require.NoError(t, err)
	after, err := r.problems.ListSweepCandidates(ctx, cutoff, &repository.SweepCursor{Deadline: stored.Deadline, ID: stored.ID}, 10)
	require.NoError(t, err)
	for _, c := range after {
		assert.NotEqual(t, p.ID, c.ID)
	}

	outcome, winner, err := svc.ResolveExpiredProblem(ctx, p.ID, cutoff)
	require.NoError(t, err)
	assert.Equal(t, model.SweepSolved, outcome)
	require.NotNil(t, winner)
	assert.Equal(t, best.ID, winner.ID)

	got, err := r.problems.FindProblemByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProblemStatusSolved, got.Status)
	require.NotNil(t, got.SelectedWinnerID)
	assert.Equal(t, best.ID, *got.SelectedWinnerID)

	dev, err := r.users.FindByID(ctx, devB.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Wins)

	// A second pass finds nothing to do.
	outcome, _, err = svc.ResolveExpiredProblem(ctx, p.ID, cutoff)
	require.NoError(t, err)
	assert.Equal(t, model.SweepSkipped, outcome)

	err = r.problems.SetWinner(ctx, nil, p.ID, best.ID)
	assert.ErrorIs(t, err, common.ErrStateConflict)
}

func TestAggregateDeveloperStats(t *testing.T) {
	r := newRepos()
	ctx := context.Background()
	poster := createUser(t, r, "Poster")
	dev := createUser(t, r, "Prolific")

	p1 := createProblem(t, r, poster, model.ProblemStatusOpen, time.Now().Add(24*time.Hour))
	p2 := createProblem(t, r, poster, model.ProblemStatusOpen, time.Now().Add(24*time.Hour))
	createSubmission(t, r, p1.ID, dev, 2)
	createSubmission(t, r, p2.ID, dev, 4)

	stats, err := r.submissions.AggregateDeveloperStats(ctx, nil)
	require.NoError(t, err)

	var found *model.DeveloperStats
	for i := range stats {
		if stats[i].DeveloperID == dev.ID {
			found = &stats[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 2, found.TotalSubmissions)
	assert.Equal(t, 6, found.TotalVotes)
	assert.Equal(t, 0, found.Wins)
}
