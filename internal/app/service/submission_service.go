package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"
	"problem_market/internal/platform/events"
	"problem_market/internal/platform/metrics"

	"github.com/google/uuid"
)

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	userRepo       repository.UserRepository
	txm            repository.TxManager
	publisher      events.Publisher
	now            func() time.Time
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	problemRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	txm repository.TxManager,
	publisher events.Publisher,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		problemRepo:    problemRepo,
		userRepo:       userRepo,
		txm:            txm,
		publisher:      publisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type SubmissionPage struct {
	Submissions []model.Submission
	Stats       model.SubmissionStats
	Total       int
	TotalPages  int
	Page        int
}

// CreateSubmission adds userID's solution to a problem. The problem row is
// locked for the whole transaction so the per-problem cap holds under
// concurrent submitters.
func (s *SubmissionService) CreateSubmission(ctx context.Context, userID string, in model.CreateSubmissionInput) (*model.Submission, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := validateID(in.ProblemID); err != nil {
		return nil, err
	}

	now := s.now()
	var created *model.Submission
	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.problemRepo.FindProblemForUpdate(ctx, tx, in.ProblemID)
		if err != nil {
			return common.Errorf("problem %s: %w", in.ProblemID, err)
		}
		if !p.AcceptsSubmissions(now) {
			if p.IsExpired(now) {
				return common.Errorf("the deadline for this problem has passed: %w", common.ErrStateConflict)
			}
			return common.Errorf("problem is no longer accepting submissions: %w", common.ErrStateConflict)
		}
		if p.PostedByID == userID {
			return common.Errorf("you cannot submit to your own problem: %w", common.ErrForbidden)
		}

		n, err := s.submissionRepo.CountActiveByProblem(ctx, tx, p.ID)
		if err != nil {
			return common.Errorf("failed to count submissions: %w", err)
		}
		if n >= model.MaxSubmissionsPerProblem {
			return common.ErrSubmissionLimit
		}

		features := in.Features
		if features == nil {
			features = []string{}
		}
		sub := &model.Submission{
			ID:          uuid.NewString(),
			ProblemID:   p.ID,
			DeveloperID: userID,
			Title:       in.Title,
			Description: in.Description,
			GithubLink:  in.GithubLink,
			LiveLink:    in.LiveLink,
			VideoDemo:   in.VideoDemo,
			TechStack:   in.TechStack,
			Features:    features,
			Status:      model.SubmissionStatusSubmitted,
			VotedBy:     []string{},
		}
		if err := s.submissionRepo.CreateSubmission(ctx, tx, sub); err != nil {
			return common.Errorf("failed to create submission: %w", err)
		}
		if err := s.problemRepo.AddSubmission(ctx, tx, p.ID, sub.ID); err != nil {
			return common.Errorf("failed to link submission to problem: %w", err)
		}
		if err := s.userRepo.IncrementCounters(ctx, tx, userID, model.UserCounters{Submissions: 1}); err != nil {
			return common.Errorf("failed to update developer counters: %w", err)
		}
		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.PublishBestEffort(ctx, s.publisher, events.Event{
		Type: events.SubmissionCreated, ProblemID: created.ProblemID, SubmissionID: created.ID, UserID: userID, OccurredAt: now,
	})
	return created, nil
}

// ListByProblem returns the public submissions of a problem, most voted first.
func (s *SubmissionService) ListByProblem(ctx context.Context, problemID string) ([]model.Submission, error) {
	if err := validateID(problemID); err != nil {
		return nil, err
	}
	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, common.Errorf("problem %s: %w", problemID, err)
	}
	subs, err := s.submissionRepo.ListPublicByProblem(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	sub, err := s.submissionRepo.FindSubmissionByID(ctx, id)
	if err != nil {
		return nil, common.Errorf("submission %s: %w", id, err)
	}
	if err := s.submissionRepo.IncrementViews(ctx, id); err != nil {
		slog.Warn("failed to increment submission views", "submission_id", id, "error", err)
	}
	return sub, nil
}

func (s *SubmissionService) UpdateSubmission(ctx context.Context, userID, id string, in model.UpdateSubmissionInput) (*model.Submission, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	sub, err := s.submissionRepo.FindSubmissionByID(ctx, id)
	if err != nil {
		return nil, common.Errorf("submission %s: %w", id, err)
	}
	if sub.DeveloperID != userID {
		return nil, common.Errorf("you can only edit your own submissions: %w", common.ErrForbidden)
	}
	if sub.IsWinner {
		return nil, common.Errorf("a winning submission cannot be edited: %w", common.ErrStateConflict)
	}
	if !sub.Editable() {
		return nil, common.Errorf("submission is %s and can no longer be edited: %w", sub.Status, common.ErrStateConflict)
	}

	sub.Apply(in)
	if err := s.submissionRepo.UpdateSubmission(ctx, sub); err != nil {
		return nil, common.Errorf("failed to update submission: %w", err)
	}
	return sub, nil
}

// DeleteSubmission withdraws a submission. Locks are taken problem first,
// then submission, the same order winner selection uses.
func (s *SubmissionService) DeleteSubmission(ctx context.Context, userID, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	pre, err := s.submissionRepo.FindSubmissionByID(ctx, id)
	if err != nil {
		return common.Errorf("submission %s: %w", id, err)
	}

	return s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.problemRepo.FindProblemForUpdate(ctx, tx, pre.ProblemID); err != nil {
			return common.Errorf("problem %s: %w", pre.ProblemID, err)
		}
		sub, err := s.submissionRepo.FindSubmissionForUpdate(ctx, tx, id)
		if err != nil {
			return common.Errorf("submission %s: %w", id, err)
		}
		if sub.DeveloperID != userID {
			return common.Errorf("you can only delete your own submissions: %w", common.ErrForbidden)
		}
		if sub.IsWinner {
			return common.Errorf("a winning submission cannot be deleted: %w", common.ErrStateConflict)
		}
		if !sub.Editable() {
			return common.Errorf("submission is %s and can no longer be withdrawn: %w", sub.Status, common.ErrStateConflict)
		}

		if err := s.submissionRepo.DeleteSubmission(ctx, tx, id); err != nil {
			return common.Errorf("failed to delete submission: %w", err)
		}
		if err := s.problemRepo.RemoveSubmission(ctx, tx, sub.ProblemID, id); err != nil {
			return common.Errorf("failed to unlink submission: %w", err)
		}
		if err := s.userRepo.IncrementCounters(ctx, tx, userID, model.UserCounters{Submissions: -1}); err != nil {
			return common.Errorf("failed to update developer counters: %w", err)
		}
		return nil
	})
}

func (s *SubmissionService) VoteSubmission(ctx context.Context, userID, id string) (model.VoteResult, error) {
	if err := validateID(id); err != nil {
		return model.VoteResult{}, err
	}
	sub, err := s.submissionRepo.FindSubmissionByID(ctx, id)
	if err != nil {
		return model.VoteResult{}, common.Errorf("submission %s: %w", id, err)
	}
	if sub.DeveloperID == userID {
		return model.VoteResult{}, common.Errorf("you cannot vote for your own submission: %w", common.ErrForbidden)
	}
	res, err := s.submissionRepo.ToggleVote(ctx, id, userID)
	if err != nil {
		return model.VoteResult{}, common.Errorf("failed to toggle vote: %w", err)
	}
	return res, nil
}

// SelectWinner lets the poster crown one submission. The problem becomes
// solved and the choice is final.
func (s *SubmissionService) SelectWinner(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	if err := validateID(submissionID); err != nil {
		return nil, err
	}
	pre, err := s.submissionRepo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, common.Errorf("submission %s: %w", submissionID, err)
	}

	var winner *model.Submission
	err = s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.problemRepo.FindProblemForUpdate(ctx, tx, pre.ProblemID)
		if err != nil {
			return common.Errorf("problem %s: %w", pre.ProblemID, err)
		}
		if p.PostedByID != userID {
			return common.Errorf("only the poster can select a winner: %w", common.ErrForbidden)
		}
		if p.HasWinner() {
			return common.Errorf("a winner has already been selected: %w", common.ErrStateConflict)
		}
		if p.Status == model.ProblemStatusClosed {
			return common.Errorf("problem is closed: %w", common.ErrStateConflict)
		}

		sub, err := s.submissionRepo.FindSubmissionForUpdate(ctx, tx, submissionID)
		if err != nil {
			return common.Errorf("submission %s: %w", submissionID, err)
		}
		if sub.Status == model.SubmissionStatusDraft || sub.Status == model.SubmissionStatusRejected {
			return common.Errorf("a %s submission cannot win: %w", sub.Status, common.ErrStateConflict)
		}

		if err := s.crownWinner(ctx, tx, p.ID, sub); err != nil {
			return err
		}
		winner = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WinnersSelected.WithLabelValues(string(model.WinnerManual)).Inc()
	events.PublishBestEffort(ctx, s.publisher, events.Event{
		Type: events.WinnerSelected, ProblemID: winner.ProblemID, SubmissionID: winner.ID,
		UserID: winner.DeveloperID, Source: string(model.WinnerManual), OccurredAt: s.now(),
	})
	winner.DeveloperName, winner.ProblemTitle = pre.DeveloperName, pre.ProblemTitle
	return winner, nil
}

// ResolveExpiredProblem settles one problem whose deadline is before cutoff.
// The problem is re-read under its row lock, so a poster who picked a winner
// in the meantime wins the race and the problem is skipped.
func (s *SubmissionService) ResolveExpiredProblem(ctx context.Context, problemID string, cutoff time.Time) (model.SweepOutcome, *model.Submission, error) {
	outcome := model.SweepSkipped
	var winner *model.Submission

	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.problemRepo.FindProblemForUpdate(ctx, tx, problemID)
		if err != nil {
			return common.Errorf("problem %s: %w", problemID, err)
		}
		if p.Status != model.ProblemStatusInReview || p.HasWinner() || !p.Deadline.Before(cutoff) {
			return nil
		}

		subs, err := s.submissionRepo.ListSubmittedByProblem(ctx, tx, p.ID)
		if err != nil {
			return common.Errorf("failed to list submissions: %w", err)
		}
		w := model.PickAutoWinner(subs)
		if w == nil {
			if err := s.problemRepo.UpdateStatus(ctx, tx, p.ID, model.ProblemStatusClosed); err != nil {
				return common.Errorf("failed to close problem: %w", err)
			}
			outcome = model.SweepClosed
			return nil
		}

		if err := s.crownWinner(ctx, tx, p.ID, w); err != nil {
			return err
		}
		winner = w
		outcome = model.SweepSolved
		return nil
	})
	if err != nil {
		return model.SweepSkipped, nil, err
	}

	now := s.now()
	switch outcome {
	case model.SweepSolved:
		metrics.WinnersSelected.WithLabelValues(string(model.WinnerAuto)).Inc()
		events.PublishBestEffort(ctx, s.publisher, events.Event{
			Type: events.WinnerSelected, ProblemID: problemID, SubmissionID: winner.ID,
			UserID: winner.DeveloperID, Source: string(model.WinnerAuto), OccurredAt: now,
		})
	case model.SweepClosed:
		events.PublishBestEffort(ctx, s.publisher, events.Event{
			Type: events.ProblemClosed, ProblemID: problemID, Source: string(model.WinnerAuto), OccurredAt: now,
		})
	}
	return outcome, winner, nil
}

// crownWinner demotes other candidates, promotes sub, marks the problem solved
// and credits the developer. sub is updated in place.
func (s *SubmissionService) crownWinner(ctx context.Context, tx *sql.Tx, problemID string, sub *model.Submission) error {
	if err := s.submissionRepo.MarkWinner(ctx, tx, problemID, sub.ID); err != nil {
		return common.Errorf("failed to mark winner: %w", err)
	}
	if err := s.problemRepo.SetWinner(ctx, tx, problemID, sub.ID); err != nil {
		return common.Errorf("failed to record winner on problem: %w", err)
	}
	if err := s.userRepo.IncrementCounters(ctx, tx, sub.DeveloperID, model.UserCounters{Wins: 1}); err != nil {
		return common.Errorf("failed to credit winner: %w", err)
	}
	sub.IsWinner = true
	sub.Status = model.SubmissionStatusAccepted
	return nil
}

func (s *SubmissionService) MySubmissions(ctx context.Context, userID, status string, page, limit int) (*SubmissionPage, error) {
	st := model.SubmissionStatus(status)
	if st != "" && !model.ValidSubmissionStatus(st) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}
	page, limit = normalizePage(page, limit)

	subs, total, err := s.submissionRepo.ListByDeveloper(ctx, userID, st, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Errorf("failed to list own submissions: %w", err)
	}
	stats, err := s.submissionRepo.DeveloperStats(ctx, userID)
	if err != nil {
		return nil, common.Errorf("failed to load submission stats: %w", err)
	}
	return &SubmissionPage{
		Submissions: subs,
		Stats:       stats,
		Total:       total,
		TotalPages:  totalPages(total, limit),
		Page:        page,
	}, nil
}
