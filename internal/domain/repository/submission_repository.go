package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/lib/pq"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	FindSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	FindSubmissionForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Submission, error)
	// UpdateSubmission and DeleteSubmission only touch editable submissions and
	// return common.ErrStateConflict otherwise.
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
	DeleteSubmission(ctx context.Context, tx *sql.Tx, id string) error

	CountActiveByProblem(ctx context.Context, tx *sql.Tx, problemID string) (int, error)
	ListPublicByProblem(ctx context.Context, problemID string) ([]model.Submission, error)
	ListSubmittedByProblem(ctx context.Context, tx *sql.Tx, problemID string) ([]model.Submission, error)
	ListByDeveloper(ctx context.Context, developerID string, status model.SubmissionStatus, limit, offset int) ([]model.Submission, int, error)
	DeveloperStats(ctx context.Context, developerID string) (model.SubmissionStats, error)

	ToggleVote(ctx context.Context, submissionID, userID string) (model.VoteResult, error)
	IncrementViews(ctx context.Context, submissionID string) error

	// MarkWinner demotes the other visible submissions of the problem and
	// promotes submissionID to accepted winner.
	MarkWinner(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error

	// For leaderboards
	AggregateDeveloperStats(ctx context.Context, since *time.Time) ([]model.DeveloperStats, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `s.id, s.problem_id, s.developer_id, s.title, s.description, s.github_link, s.live_link,
	s.video_demo, s.tech_stack, s.features, s.status, s.is_winner, s.voted_by, s.votes, s.views, s.created_at, s.updated_at`

func scanSubmission(sc rowScanner, s *model.Submission, extra ...interface{}) error {
	dest := []interface{}{
		&s.ID, &s.ProblemID, &s.DeveloperID, &s.Title, &s.Description, &s.GithubLink, &s.LiveLink,
		&s.VideoDemo, pq.Array(&s.TechStack), pq.Array(&s.Features), &s.Status, &s.IsWinner, pq.Array(&s.VotedBy),
		&s.Votes, &s.Views, &s.CreatedAt, &s.UpdatedAt,
	}
	return sc.Scan(append(dest, extra...)...)
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `INSERT INTO submissions (id, problem_id, developer_id, title, description, github_link, live_link,
	              video_demo, tech_stack, features, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING votes, created_at, updated_at`

	if s.Features == nil {
		s.Features = []string{}
	}
	err := pick(r.db, tx).QueryRowContext(ctx, query,
		s.ID, s.ProblemID, s.DeveloperID, s.Title, s.Description, s.GithubLink, s.LiveLink,
		s.VideoDemo, pq.Array(s.TechStack), pq.Array(s.Features), s.Status,
	).Scan(&s.Votes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) { // (problem_id, developer_id)
			return fmt.Errorf("you have already submitted to this problem: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + `, u.name, u.profile_picture, p.title
              FROM submissions s
              LEFT JOIN users u ON s.developer_id = u.id
              LEFT JOIN problems p ON s.problem_id = p.id
              WHERE s.id = $1`

	sub := &model.Submission{}
	err := scanSubmission(r.db.QueryRowContext(ctx, query, id), sub, &sub.DeveloperName, &sub.DeveloperPicture, &sub.ProblemTitle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindSubmissionByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) FindSubmissionForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = $1 FOR UPDATE`

	sub := &model.Submission{}
	if err := scanSubmission(tx.QueryRowContext(ctx, query, id), sub); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindSubmissionForUpdate: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) UpdateSubmission(ctx context.Context, s *model.Submission) error {
	query := `UPDATE submissions SET
                title = $1, description = $2, github_link = $3, live_link = $4, video_demo = $5,
                tech_stack = $6, features = $7, updated_at = CURRENT_TIMESTAMP
              WHERE id = $8 AND NOT is_winner AND status IN ('draft', 'submitted')
              RETURNING updated_at`

	if s.Features == nil {
		s.Features = []string{}
	}
	err := r.db.QueryRowContext(ctx, query,
		s.Title, s.Description, s.GithubLink, s.LiveLink, s.VideoDemo, pq.Array(s.TechStack), pq.Array(s.Features), s.ID,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("submission can no longer be edited: %w", common.ErrStateConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.UpdateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) DeleteSubmission(ctx context.Context, tx *sql.Tx, id string) error {
	query := `DELETE FROM submissions WHERE id = $1 AND NOT is_winner AND status IN ('draft', 'submitted')`
	res, err := pick(r.db, tx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.DeleteSubmission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission can no longer be withdrawn: %w", common.ErrStateConflict)
	}
	return nil
}

func (r *pgSubmissionRepository) CountActiveByProblem(ctx context.Context, tx *sql.Tx, problemID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM submissions WHERE problem_id = $1 AND status <> 'rejected'`
	if err := pick(r.db, tx).QueryRowContext(ctx, query, problemID).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountActiveByProblem: %w", err)
	}
	return n, nil
}

func (r *pgSubmissionRepository) ListPublicByProblem(ctx context.Context, problemID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + `, u.name, u.profile_picture
              FROM submissions s
              LEFT JOIN users u ON s.developer_id = u.id
              WHERE s.problem_id = $1 AND s.status NOT IN ('draft', 'rejected')
              ORDER BY s.votes DESC, s.created_at ASC, s.id`

	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListPublicByProblem query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s, &s.DeveloperName, &s.DeveloperPicture); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListPublicByProblem scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListPublicByProblem rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) ListSubmittedByProblem(ctx context.Context, tx *sql.Tx, problemID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + `
              FROM submissions s
              WHERE s.problem_id = $1 AND s.status = 'submitted'
              ORDER BY s.votes DESC, s.created_at ASC, s.id`

	rows, err := pick(r.db, tx).QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmittedByProblem query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSubmittedByProblem scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmittedByProblem rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) ListByDeveloper(ctx context.Context, developerID string, status model.SubmissionStatus, limit, offset int) ([]model.Submission, int, error) {
	where := ` WHERE s.developer_id = $1`
	args := []interface{}{developerID}
	if status != "" {
		where += ` AND s.status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions s`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByDeveloper count: %w", err)
	}

	query := `SELECT ` + submissionColumns + `, p.title
              FROM submissions s
              LEFT JOIN problems p ON s.problem_id = p.id` + where +
		fmt.Sprintf(` ORDER BY s.created_at DESC, s.id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByDeveloper query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s, &s.ProblemTitle); err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByDeveloper scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByDeveloper rows.Err: %w", err)
	}
	return subs, total, nil
}

func (r *pgSubmissionRepository) DeveloperStats(ctx context.Context, developerID string) (model.SubmissionStats, error) {
	query := `SELECT COUNT(*),
                     COUNT(*) FILTER (WHERE is_winner),
                     COUNT(*) FILTER (WHERE status = 'submitted'),
                     COUNT(*) FILTER (WHERE status = 'accepted')
              FROM submissions WHERE developer_id = $1`

	var st model.SubmissionStats
	if err := r.db.QueryRowContext(ctx, query, developerID).Scan(&st.Total, &st.Won, &st.Submitted, &st.Accepted); err != nil {
		return st, fmt.Errorf("pgSubmissionRepository.DeveloperStats: %w", err)
	}
	return st, nil
}

func (r *pgSubmissionRepository) ToggleVote(ctx context.Context, submissionID, userID string) (model.VoteResult, error) {
	query := `UPDATE submissions SET
                voted_by = CASE WHEN $2::uuid = ANY(voted_by) THEN array_remove(voted_by, $2::uuid)
                                ELSE array_append(voted_by, $2::uuid) END
              WHERE id = $1
              RETURNING votes, $2::uuid = ANY(voted_by)`

	var res model.VoteResult
	if err := r.db.QueryRowContext(ctx, query, submissionID, userID).Scan(&res.Count, &res.Voted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return res, common.ErrNotFound
		}
		return res, fmt.Errorf("pgSubmissionRepository.ToggleVote: %w", err)
	}
	return res, nil
}

func (r *pgSubmissionRepository) IncrementViews(ctx context.Context, submissionID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE submissions SET views = views + 1 WHERE id = $1`, submissionID); err != nil {
		return fmt.Errorf("pgSubmissionRepository.IncrementViews: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) MarkWinner(ctx context.Context, tx *sql.Tx, problemID, submissionID string) error {
	demote := `UPDATE submissions SET is_winner = FALSE, status = 'submitted', updated_at = CURRENT_TIMESTAMP
               WHERE problem_id = $1 AND id <> $2 AND status NOT IN ('draft', 'rejected')`
	if _, err := tx.ExecContext(ctx, demote, problemID, submissionID); err != nil {
		return fmt.Errorf("pgSubmissionRepository.MarkWinner demote: %w", err)
	}

	promote := `UPDATE submissions SET is_winner = TRUE, status = 'accepted', updated_at = CURRENT_TIMESTAMP
                WHERE id = $2 AND problem_id = $1`
	res, err := tx.ExecContext(ctx, promote, problemID, submissionID)
	if err != nil {
		if common.IsUniqueViolation(err) { // one winner per problem
			return fmt.Errorf("winner already selected: %w", common.ErrStateConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.MarkWinner promote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgSubmissionRepository) AggregateDeveloperStats(ctx context.Context, since *time.Time) ([]model.DeveloperStats, error) {
	query := `SELECT developer_id,
                     COALESCE(SUM(votes), 0),
                     COUNT(*),
                     COUNT(*) FILTER (WHERE is_winner)
              FROM submissions`
	var args []interface{}
	if since != nil {
		query += ` WHERE created_at >= $1`
		args = append(args, *since)
	}
	query += ` GROUP BY developer_id ORDER BY developer_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.AggregateDeveloperStats query: %w", err)
	}
	defer rows.Close()

	stats := []model.DeveloperStats{}
	for rows.Next() {
		var st model.DeveloperStats
		if err := rows.Scan(&st.DeveloperID, &st.TotalVotes, &st.TotalSubmissions, &st.Wins); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.AggregateDeveloperStats scan: %w", err)
		}
		stats = append(stats, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.AggregateDeveloperStats rows.Err: %w", err)
	}
	return stats, nil
}
