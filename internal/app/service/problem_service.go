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
	"github.com/gosimple/slug" // For slug generation
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	userRepo    repository.UserRepository
	txm         repository.TxManager
	publisher   events.Publisher
	now         func() time.Time
}

func NewProblemService(
	problemRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	txm repository.TxManager,
	publisher events.Publisher,
) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		userRepo:    userRepo,
		txm:         txm,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateProblemResult struct {
	Problem            *model.Problem `json:"problem"`
	RemainingThisMonth int            `json:"remainingThisMonth"`
}

type ListProblemsQuery struct {
	Category  string
	PainLevel string
	Frequency string
	Audience  []string
	Search    string
	Status    string // "" means open, "all" disables the filter
	SortBy    string
	Page      int
	Limit     int
}

type MyProblemsQuery struct {
	Status   string
	Category string
	SortBy   string
	Order    string
	Page     int
	Limit    int
}

type ProblemPage struct {
	Problems   []model.Problem
	Total      int
	TotalPages int
	Page       int
}

type MyProblemsPage struct {
	Problems   []model.OwnedProblem
	Stats      model.ProblemStats
	Total      int
	TotalPages int
	Page       int
}

// CreateProblem posts a problem for userID. The monthly quota, the duplicate
// check and the insert run in one transaction holding the poster's row lock,
// so concurrent posts by the same user are serialized.
func (s *ProblemService) CreateProblem(ctx context.Context, userID string, in model.CreateProblemInput) (*CreateProblemResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.DesiredOutcome = strings.TrimSpace(in.DesiredOutcome)
	in.ExistingSolutionsDescription = strings.TrimSpace(in.ExistingSolutionsDescription)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	if !in.Deadline.After(now) {
		return nil, common.NewValidationError("Deadline must be in the future")
	}
	if !in.HasExistingSolutions {
		in.ExistingSolutionsDescription = ""
	}

	var created *model.Problem
	var postedThisMonth int
	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.userRepo.LockByID(ctx, tx, userID); err != nil {
			return common.Errorf("failed to lock poster: %w", err)
		}

		n, err := s.problemRepo.CountByPosterSince(ctx, tx, userID, model.StartOfMonth(now))
		if err != nil {
			return common.Errorf("failed to count monthly problems: %w", err)
		}
		if n >= model.MonthlyProblemLimit {
			metrics.QuotaRejections.Inc()
			return fmt.Errorf("%w: you can post %d problems per calendar month", common.ErrQuotaExceeded, model.MonthlyProblemLimit)
		}

		if !in.ConfirmNotDuplicate {
			existingID, err := s.problemRepo.FindSimilarTitle(ctx, tx, in.Category, significantWords(in.Title))
			if err != nil {
				return common.Errorf("failed to check for duplicates: %w", err)
			}
			if existingID != "" {
				return &common.DuplicateProblemError{ExistingProblemID: existingID}
			}
		}

		id := uuid.NewString()
		p := &model.Problem{
			ID:                           id,
			Title:                        in.Title,
			Slug:                         slug.Make(in.Title) + "-" + id[:8],
			Category:                     in.Category,
			AffectedAudience:             dedupeAudience(in.AffectedAudience),
			Description:                  in.Description,
			PainLevel:                    in.PainLevel,
			Frequency:                    in.Frequency,
			HasExistingSolutions:         in.HasExistingSolutions,
			ExistingSolutionsDescription: in.ExistingSolutionsDescription,
			DesiredOutcome:               in.DesiredOutcome,
			PostedByID:                   userID,
			Status:                       model.ProblemStatusOpen,
			Deadline:                     in.Deadline.UTC(),
			Submissions:                  []string{},
			UpvotedBy:                    []string{},
			PriorityScore:                model.PriorityScore(in.PainLevel, in.Frequency),
		}
		if err := s.problemRepo.CreateProblem(ctx, tx, p); err != nil {
			return common.Errorf("failed to create problem in DB: %w", err)
		}
		if err := s.userRepo.IncrementCounters(ctx, tx, userID, model.UserCounters{ProblemsPosted: 1}); err != nil {
			return common.Errorf("failed to update poster counters: %w", err)
		}

		created = p
		postedThisMonth = n + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ProblemsCreated.Inc()
	events.PublishBestEffort(ctx, s.publisher, events.Event{
		Type: events.ProblemCreated, ProblemID: created.ID, UserID: userID, OccurredAt: now,
	})

	return &CreateProblemResult{
		Problem:            created,
		RemainingThisMonth: model.RemainingQuota(postedThisMonth),
	}, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, q ListProblemsQuery) (*ProblemPage, error) {
	filter := model.ProblemFilter{
		Category:  model.ProblemCategory(q.Category),
		PainLevel: model.PainLevel(q.PainLevel),
		Frequency: model.Frequency(q.Frequency),
		Search:    q.Search,
		Sort:      model.SortRecent,
	}

	var details []string
	if filter.Category != "" && !model.ValidCategory(filter.Category) {
		details = append(details, fmt.Sprintf("unknown category %q", q.Category))
	}
	if filter.PainLevel != "" && !model.ValidPainLevel(filter.PainLevel) {
		details = append(details, fmt.Sprintf("unknown painLevel %q", q.PainLevel))
	}
	if filter.Frequency != "" && !model.ValidFrequency(filter.Frequency) {
		details = append(details, fmt.Sprintf("unknown frequency %q", q.Frequency))
	}
	for _, a := range q.Audience {
		if !model.ValidAudience(model.Audience(a)) {
			details = append(details, fmt.Sprintf("unknown affectedAudience %q", a))
			continue
		}
		filter.Audience = append(filter.Audience, model.Audience(a))
	}

	switch q.Status {
	case "":
		filter.Status = model.ProblemStatusOpen
	case "all":
	default:
		filter.Status = model.ProblemStatus(q.Status)
		if !model.ValidProblemStatus(filter.Status) {
			details = append(details, fmt.Sprintf("unknown status %q", q.Status))
		}
	}

	switch model.ProblemSort(q.SortBy) {
	case "", model.SortRecent:
	case model.SortDeadline:
		filter.Sort = model.SortDeadline
		now := s.now()
		filter.DeadlineAfter = &now
	case model.SortPriority, model.SortSubmissions:
		filter.Sort = model.ProblemSort(q.SortBy)
	default:
		details = append(details, fmt.Sprintf("unknown sortBy %q", q.SortBy))
	}
	if len(details) > 0 {
		return nil, common.NewValidationError(details...)
	}

	page, limit := normalizePage(q.Page, q.Limit)
	filter.Limit, filter.Offset = limit, (page-1)*limit

	problems, total, err := s.problemRepo.ListProblems(ctx, filter)
	if err != nil {
		return nil, common.Errorf("failed to list problems: %w", err)
	}
	return &ProblemPage{Problems: problems, Total: total, TotalPages: totalPages(total, limit), Page: page}, nil
}

// GetProblem returns the problem and bumps its view counter. A failed bump is
// logged and ignored.
func (s *ProblemService) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	p, err := s.problemRepo.FindProblemByID(ctx, id)
	if err != nil {
		return nil, common.Errorf("problem %s: %w", id, err)
	}
	if err := s.problemRepo.IncrementViews(ctx, id); err != nil {
		slog.Warn("failed to increment problem views", "problem_id", id, "error", err)
	}
	return p, nil
}

func (s *ProblemService) UpdateProblem(ctx context.Context, userID, id string, in model.UpdateProblemInput) (*model.Problem, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if in.Description == nil && in.Deadline == nil {
		return nil, common.Errorf("nothing to update, provide description or deadline: %w", common.ErrBadRequest)
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		in.Description = &d
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	var updated *model.Problem
	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.problemRepo.FindProblemForUpdate(ctx, tx, id)
		if err != nil {
			return common.Errorf("problem %s: %w", id, err)
		}
		if p.PostedByID != userID {
			return common.Errorf("only the poster can update this problem: %w", common.ErrForbidden)
		}
		if p.Status != model.ProblemStatusOpen {
			return common.Errorf("only open problems can be updated: %w", common.ErrStateConflict)
		}

		if in.Deadline != nil {
			next := in.Deadline.UTC()
			if !next.After(now) {
				return common.NewValidationError("Deadline must be in the future")
			}
			if !next.After(p.Deadline) {
				return common.NewValidationError("New deadline must be later than current deadline")
			}
			if p.OriginalDeadline == nil {
				orig := p.Deadline
				p.OriginalDeadline = &orig
			}
			p.Deadline = next
		}

		if in.Description != nil {
			if len(p.Submissions) > 0 {
				return common.Errorf("cannot update description once submissions have been received: %w", common.ErrStateConflict)
			}
			p.Description = *in.Description
		}

		if err := s.problemRepo.UpdateProblem(ctx, tx, p); err != nil {
			return common.Errorf("failed to update problem: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ProblemService) CloseProblem(ctx context.Context, userID, id string) (*model.Problem, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var closed *model.Problem
	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.problemRepo.FindProblemForUpdate(ctx, tx, id)
		if err != nil {
			return common.Errorf("problem %s: %w", id, err)
		}
		if p.PostedByID != userID {
			return common.Errorf("only the poster can close this problem: %w", common.ErrForbidden)
		}
		if p.Status == model.ProblemStatusSolved || p.Status == model.ProblemStatusClosed {
			return common.Errorf("problem is already %s: %w", p.Status, common.ErrStateConflict)
		}
		if err := s.problemRepo.UpdateStatus(ctx, tx, id, model.ProblemStatusClosed); err != nil {
			return common.Errorf("failed to close problem: %w", err)
		}
		p.Status = model.ProblemStatusClosed
		closed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.PublishBestEffort(ctx, s.publisher, events.Event{
		Type: events.ProblemClosed, ProblemID: id, UserID: userID, Source: string(model.WinnerManual), OccurredAt: s.now(),
	})
	return closed, nil
}

// VoteProblem toggles userID's upvote. The count is always the size of the voter set.
func (s *ProblemService) VoteProblem(ctx context.Context, userID, id string) (model.VoteResult, error) {
	if err := validateID(id); err != nil {
		return model.VoteResult{}, err
	}
	p, err := s.problemRepo.FindProblemByID(ctx, id)
	if err != nil {
		return model.VoteResult{}, common.Errorf("problem %s: %w", id, err)
	}
	if p.PostedByID == userID {
		return model.VoteResult{}, common.Errorf("you cannot upvote your own problem: %w", common.ErrForbidden)
	}
	res, err := s.problemRepo.ToggleUpvote(ctx, id, userID)
	if err != nil {
		return model.VoteResult{}, common.Errorf("failed to toggle upvote: %w", err)
	}
	return res, nil
}

func (s *ProblemService) MyProblems(ctx context.Context, userID string, q MyProblemsQuery) (*MyProblemsPage, error) {
	filter := model.ProblemFilter{
		PostedByID:    userID,
		Status:        model.ProblemStatus(q.Status),
		Category:      model.ProblemCategory(q.Category),
		Sort:          model.SortRecent,
		SortAscending: strings.EqualFold(q.Order, "asc"),
	}
	if filter.Status != "" && !model.ValidProblemStatus(filter.Status) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown status %q", q.Status))
	}
	switch model.ProblemSort(q.SortBy) {
	case model.SortDeadline, model.SortPriority, model.SortSubmissions:
		filter.Sort = model.ProblemSort(q.SortBy)
	}

	page, limit := normalizePage(q.Page, q.Limit)
	filter.Limit, filter.Offset = limit, (page-1)*limit

	problems, total, err := s.problemRepo.ListProblems(ctx, filter)
	if err != nil {
		return nil, common.Errorf("failed to list own problems: %w", err)
	}

	now := s.now()
	owned := make([]model.OwnedProblem, len(problems))
	for i := range problems {
		owned[i] = problems[i].Owned(now)
	}

	byStatus, err := s.problemRepo.CountByPosterAndStatus(ctx, userID)
	if err != nil {
		return nil, common.Errorf("failed to count own problems: %w", err)
	}
	thisMonth, err := s.problemRepo.CountByPosterSince(ctx, nil, userID, model.StartOfMonth(now))
	if err != nil {
		return nil, common.Errorf("failed to count monthly problems: %w", err)
	}

	stats := model.ProblemStats{
		Open:                    byStatus[model.ProblemStatusOpen],
		InReview:                byStatus[model.ProblemStatusInReview],
		Solved:                  byStatus[model.ProblemStatusSolved],
		Closed:                  byStatus[model.ProblemStatusClosed],
		ProblemsThisMonth:       thisMonth,
		RemainingPostsThisMonth: model.RemainingQuota(thisMonth),
	}
	stats.Total = stats.Open + stats.InReview + stats.Solved + stats.Closed

	return &MyProblemsPage{
		Problems:   owned,
		Stats:      stats,
		Total:      total,
		TotalPages: totalPages(total, limit),
		Page:       page,
	}, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrInvalidID
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func dedupeAudience(in []model.Audience) []model.Audience {
	seen := make(map[model.Audience]struct{}, len(in))
	out := make([]model.Audience, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
