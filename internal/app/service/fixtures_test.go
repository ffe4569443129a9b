package service

import (
	"testing"
	"time"

	"problem_market/internal/domain/model"
	"problem_market/internal/platform/events"
	"problem_market/internal/testutil"

	"github.com/google/uuid"
)

var baseTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type testEnv struct {
	clock       *testutil.Clock
	store       *testutil.MemStore
	events      *events.Recorder
	problems    *ProblemService
	submissions *SubmissionService
	users       *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := testutil.NewClock(baseTime)
	store := testutil.NewMemStore(clock)
	rec := &events.Recorder{}

	ps := NewProblemService(store.ProblemRepo(), store.UserRepo(), store, rec)
	ps.now = clock.Now
	ss := NewSubmissionService(store.SubmissionRepo(), store.ProblemRepo(), store.UserRepo(), store, rec)
	ss.now = clock.Now

	return &testEnv{
		clock:       clock,
		store:       store,
		events:      rec,
		problems:    ps,
		submissions: ss,
		users:       NewUserService(store.UserRepo()),
	}
}

func validProblemInput(title string) model.CreateProblemInput {
	return model.CreateProblemInput{
		Title:               title,
		Category:            model.CategoryTransportation,
		AffectedAudience:    []model.Audience{model.AudienceStudents, model.AudienceWorkingProfessionals},
		Description:         "Buses in our district arrive at random times and nobody can tell when the next one is coming.",
		PainLevel:           model.PainTimeConsuming,
		Frequency:           model.FrequencyDaily,
		DesiredOutcome:      "Commuters know reliably when the next bus arrives",
		Deadline:            baseTime.Add(60 * day),
		ConfirmNotDuplicate: true,
	}
}

func validSubmissionInput(problemID string) model.CreateSubmissionInput {
	return model.CreateSubmissionInput{
		ProblemID:   problemID,
		Title:       "Live bus tracker with SMS alerts",
		Description: "Polls the transit feed every thirty seconds and texts riders two stops before their bus.",
		GithubLink:  "https://github.com/example/bus-tracker",
		LiveLink:    "https://bus-tracker.example.com",
		TechStack:   []string{"go", "postgres"},
		Features:    []string{"sms alerts"},
	}
}

// seedProblem stores an open problem posted by poster; mutate adjusts it first.
func (e *testEnv) seedProblem(poster model.User, mutate func(p *model.Problem)) model.Problem {
	now := e.clock.Now()
	p := model.Problem{
		ID:               uuid.NewString(),
		Title:            "Parking permits take weeks to process",
		Category:         model.CategoryGovernmentServices,
		AffectedAudience: []model.Audience{model.AudienceEveryone},
		Description:      "Residents wait up to six weeks for a parking permit and get fined while they wait.",
		PainLevel:        model.PainCostsMoney,
		Frequency:        model.FrequencyMonthly,
		DesiredOutcome:   "Permits are issued within a couple of days",
		PostedByID:       poster.ID,
		Status:           model.ProblemStatusOpen,
		Deadline:         now.Add(14 * day),
		Submissions:      []string{},
		UpvotedBy:        []string{},
		PriorityScore:    model.PriorityScore(model.PainCostsMoney, model.FrequencyMonthly),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if mutate != nil {
		mutate(&p)
	}
	e.store.PutProblem(p)
	return p
}

// seedSubmission stores a submission with votes distinct voters.
func (e *testEnv) seedSubmission(problemID string, dev model.User, votes int, createdAt time.Time, status model.SubmissionStatus) model.Submission {
	voters := make([]string, votes)
	for i := range voters {
		voters[i] = uuid.NewString()
	}
	sub := model.Submission{
		ID:          uuid.NewString(),
		ProblemID:   problemID,
		DeveloperID: dev.ID,
		Title:       "Shared permit queue tracker",
		Description: "A public queue page so residents can see where their permit application stands today.",
		GithubLink:  "https://github.com/example/permit-queue",
		TechStack:   []string{"go"},
		Features:    []string{},
		Status:      status,
		VotedBy:     voters,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	e.store.PutSubmission(sub)
	sub.Votes = votes
	return sub
}
