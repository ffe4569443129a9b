package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/lib/pq"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	UpdateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	// FindProblemForUpdate reads the problem and holds its row lock until tx ends.
	FindProblemForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Problem, error)
	ListProblems(ctx context.Context, filter model.ProblemFilter) ([]model.Problem, int, error)

	CountByPosterSince(ctx context.Context, tx *sql.Tx, posterID string, since time.Time) (int, error)
	CountByPosterAndStatus(ctx context.Context, posterID string) (map[model.ProblemStatus]int, error)
	// FindSimilarTitle returns the id of the oldest problem in category whose title
	// contains any of words, case-insensitively, or "" when there is none.
	FindSimilarTitle(ctx context.Context, tx *sql.Tx, category model.ProblemCategory, words []string) (string, error)

	AddSubmission(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error
	RemoveSubmission(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error
	// SetWinner fails with common.ErrStateConflict when the problem already has a winner.
	SetWinner(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, problemID string, status model.ProblemStatus) error

	ToggleUpvote(ctx context.Context, problemID, userID string) (model.VoteResult, error)
	IncrementViews(ctx context.Context, problemID string) error

	// ListSweepCandidates pages in (deadline, id) order, starting after the
	// cursor when one is given.
	ListSweepCandidates(ctx context.Context, cutoff time.Time, after *SweepCursor, limit int) ([]model.Problem, error)
}

// SweepCursor is the (deadline, id) key of the last problem a sweep saw.
type SweepCursor struct {
	Deadline time.Time
	ID       string
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `p.id, p.title, p.slug, p.category, p.affected_audience, p.description, p.pain_level,
	p.frequency, p.has_existing_solutions, p.existing_solutions_description, p.desired_outcome, p.posted_by,
	p.status, p.deadline, p.original_deadline, p.submissions, p.submission_count, p.selected_winner,
	p.upvoted_by, p.upvotes, p.priority_score, p.views, p.created_at, p.updated_at`

func scanProblem(s rowScanner, p *model.Problem, extra ...interface{}) error {
	var audience []string
	dest := []interface{}{
		&p.ID, &p.Title, &p.Slug, &p.Category, pq.Array(&audience), &p.Description, &p.PainLevel,
		&p.Frequency, &p.HasExistingSolutions, &p.ExistingSolutionsDescription, &p.DesiredOutcome, &p.PostedByID,
		&p.Status, &p.Deadline, &p.OriginalDeadline, pq.Array(&p.Submissions), &p.SubmissionCount, &p.SelectedWinnerID,
		pq.Array(&p.UpvotedBy), &p.Upvotes, &p.PriorityScore, &p.Views, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	p.AffectedAudience = make([]model.Audience, len(audience))
	for i, a := range audience {
		p.AffectedAudience[i] = model.Audience(a)
	}
	return nil
}

func audienceStrings(in []model.Audience) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = string(a)
	}
	return out
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, category, affected_audience, description, pain_level, frequency,
	              has_existing_solutions, existing_solutions_description, desired_outcome, posted_by, status,
	              deadline, priority_score)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	          RETURNING submission_count, upvotes, created_at, updated_at`

	err := pick(r.db, tx).QueryRowContext(ctx, query,
		p.ID, p.Title, p.Slug, p.Category, pq.Array(audienceStrings(p.AffectedAudience)), p.Description,
		p.PainLevel, p.Frequency, p.HasExistingSolutions, p.ExistingSolutionsDescription, p.DesiredOutcome,
		p.PostedByID, p.Status, p.Deadline, p.PriorityScore,
	).Scan(&p.SubmissionCount, &p.Upvotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("problem already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

// UpdateProblem persists the poster-editable fields.
func (r *pgProblemRepository) UpdateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `UPDATE problems SET
                description = $1, deadline = $2, original_deadline = $3, updated_at = CURRENT_TIMESTAMP
              WHERE id = $4
              RETURNING updated_at`

	err := pick(r.db, tx).QueryRowContext(ctx, query, p.Description, p.Deadline, p.OriginalDeadline, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgProblemRepository.UpdateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + `, u.name, u.profile_picture
              FROM problems p
              LEFT JOIN users u ON p.posted_by = u.id
              WHERE p.id = $1`

	problem := &model.Problem{}
	err := scanProblem(r.db.QueryRowContext(ctx, query, id), problem, &problem.PostedByName, &problem.PostedByPicture)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) FindProblemForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.id = $1 FOR UPDATE`

	problem := &model.Problem{}
	if err := scanProblem(tx.QueryRowContext(ctx, query, id), problem); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemForUpdate: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, f model.ProblemFilter) ([]model.Problem, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if f.Category != "" {
		conditions = append(conditions, fmt.Sprintf("p.category = $%d", argID))
		args = append(args, f.Category)
		argID++
	}
	if f.PainLevel != "" {
		conditions = append(conditions, fmt.Sprintf("p.pain_level = $%d", argID))
		args = append(args, f.PainLevel)
		argID++
	}
	if f.Frequency != "" {
		conditions = append(conditions, fmt.Sprintf("p.frequency = $%d", argID))
		args = append(args, f.Frequency)
		argID++
	}
	if len(f.Audience) > 0 {
		conditions = append(conditions, fmt.Sprintf("p.affected_audience && $%d::text[]", argID))
		args = append(args, pq.Array(audienceStrings(f.Audience)))
		argID++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argID))
		args = append(args, f.Status)
		argID++
	}
	if f.PostedByID != "" {
		conditions = append(conditions, fmt.Sprintf("p.posted_by = $%d", argID))
		args = append(args, f.PostedByID)
		argID++
	}
	if f.DeadlineAfter != nil {
		conditions = append(conditions, fmt.Sprintf("p.deadline > $%d", argID))
		args = append(args, *f.DeadlineAfter)
		argID++
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", argID, argID))
		args = append(args, "%"+escapeLike(search)+"%")
		argID++
	}

	var where string
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + problemColumns + `, u.name, u.profile_picture
        FROM problems p
        LEFT JOIN users u ON p.posted_by = u.id`)
	query.WriteString(where)
	query.WriteString(" ORDER BY " + problemOrderBy(f.Sort, f.SortAscending))
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := scanProblem(rows, &p, &p.PostedByName, &p.PostedByPicture); err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows.Err: %w", err)
	}

	return problems, total, nil
}

func problemOrderBy(sort model.ProblemSort, ascending bool) string {
	switch sort {
	case model.SortDeadline:
		return "p.deadline ASC, p.id"
	case model.SortPriority:
		return "p.priority_score DESC, p.created_at DESC, p.id"
	case model.SortSubmissions:
		return "p.submission_count DESC, p.created_at DESC, p.id"
	default:
		if ascending {
			return "p.created_at ASC, p.id"
		}
		return "p.created_at DESC, p.id"
	}
}

func (r *pgProblemRepository) CountByPosterSince(ctx context.Context, tx *sql.Tx, posterID string, since time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM problems WHERE posted_by = $1 AND created_at >= $2`
	if err := pick(r.db, tx).QueryRowContext(ctx, query, posterID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgProblemRepository.CountByPosterSince: %w", err)
	}
	return n, nil
}

func (r *pgProblemRepository) CountByPosterAndStatus(ctx context.Context, posterID string) (map[model.ProblemStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM problems WHERE posted_by = $1 GROUP BY status`, posterID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.CountByPosterAndStatus query: %w", err)
	}
	defer rows.Close()

	counts := map[model.ProblemStatus]int{}
	for rows.Next() {
		var status model.ProblemStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.CountByPosterAndStatus scan: %w", err)
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.CountByPosterAndStatus rows.Err: %w", err)
	}
	return counts, nil
}

func (r *pgProblemRepository) FindSimilarTitle(ctx context.Context, tx *sql.Tx, category model.ProblemCategory, words []string) (string, error) {
	if len(words) == 0 {
		return "", nil
	}
	patterns := make([]string, len(words))
	for i, w := range words {
		patterns[i] = "%" + escapeLike(w) + "%"
	}

	var id string
	query := `SELECT id FROM problems
              WHERE category = $1 AND title ILIKE ANY($2::text[])
              ORDER BY created_at ASC
              LIMIT 1`
	err := pick(r.db, tx).QueryRowContext(ctx, query, category, pq.Array(patterns)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("pgProblemRepository.FindSimilarTitle: %w", err)
	}
	return id, nil
}

func (r *pgProblemRepository) AddSubmission(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error {
	query := `UPDATE problems SET
                submissions = CASE WHEN $2::uuid = ANY(submissions) THEN submissions
                                   ELSE array_append(submissions, $2::uuid) END,
                status = 'in_review',
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $1`
	return r.execOne(ctx, tx, "AddSubmission", query, problemID, submissionID)
}

func (r *pgProblemRepository) RemoveSubmission(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error {
	query := `UPDATE problems SET
                submissions = array_remove(submissions, $2::uuid),
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $1`
	return r.execOne(ctx, tx, "RemoveSubmission", query, problemID, submissionID)
}

func (r *pgProblemRepository) SetWinner(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error {
	query := `UPDATE problems SET
                selected_winner = $2, status = 'solved', updated_at = CURRENT_TIMESTAMP
              WHERE id = $1 AND selected_winner IS NULL`
	res, err := pick(r.db, tx).ExecContext(ctx, query, problemID, submissionID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SetWinner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("winner already selected: %w", common.ErrStateConflict)
	}
	return nil
}

func (r *pgProblemRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, problemID string, status model.ProblemStatus) error {
	query := `UPDATE problems SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	return r.execOne(ctx, tx, "UpdateStatus", query, problemID, status)
}

func (r *pgProblemRepository) ToggleUpvote(ctx context.Context, problemID, userID string) (model.VoteResult, error) {
	query := `UPDATE problems SET
                upvoted_by = CASE WHEN $2::uuid = ANY(upvoted_by) THEN array_remove(upvoted_by, $2::uuid)
                                  ELSE array_append(upvoted_by, $2::uuid) END
              WHERE id = $1
              RETURNING upvotes, $2::uuid = ANY(upvoted_by)`

	var res model.VoteResult
	if err := r.db.QueryRowContext(ctx, query, problemID, userID).Scan(&res.Count, &res.Voted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return res, common.ErrNotFound
		}
		return res, fmt.Errorf("pgProblemRepository.ToggleUpvote: %w", err)
	}
	return res, nil
}

func (r *pgProblemRepository) IncrementViews(ctx context.Context, problemID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE problems SET views = views + 1 WHERE id = $1`, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.IncrementViews: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) ListSweepCandidates(ctx context.Context, cutoff time.Time, after *SweepCursor, limit int) ([]model.Problem, error) {
	args := []interface{}{cutoff}
	where := "p.status = 'in_review' AND p.selected_winner IS NULL AND p.deadline < $1"
	if after != nil {
		args = append(args, after.Deadline, after.ID)
		where += " AND (p.deadline, p.id) > ($2, $3)"
	}
	args = append(args, limit)
	query := `SELECT ` + problemColumns + `
              FROM problems p
              WHERE ` + where + `
              ORDER BY p.deadline ASC, p.id ASC
              LIMIT ` + fmt.Sprintf("$%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListSweepCandidates query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := scanProblem(rows, &p); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListSweepCandidates scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListSweepCandidates rows.Err: %w", err)
	}
	return problems, nil
}

func (r *pgProblemRepository) execOne(ctx context.Context, tx *sql.Tx, op, query string, args ...interface{}) error {
	res, err := pick(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
