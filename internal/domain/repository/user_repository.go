package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/lib/pq"
)

type UserRepository interface {
	Create(ctx context.Context, tx *sql.Tx, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// LockByID takes a row lock on the user for the rest of tx.
	LockByID(ctx context.Context, tx *sql.Tx, id string) error
	IncrementCounters(ctx context.Context, tx *sql.Tx, id string, delta model.UserCounters) error
	UpdateProfile(ctx context.Context, user *model.User) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, external_id, email, name, profile_picture, bio, github_url, linkedin_url,
	website_url, skills, total_problems_posted, total_submissions, wins, rating, created_at, updated_at`

func scanUser(s rowScanner, u *model.User) error {
	return s.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.ProfilePicture, &u.Bio, &u.GithubURL, &u.LinkedinURL,
		&u.WebsiteURL, pq.Array(&u.Skills), &u.TotalProblemsPosted, &u.TotalSubmissions, &u.Wins, &u.Rating,
		&u.CreatedAt, &u.UpdatedAt,
	)
}

func (r *pgUserRepository) Create(ctx context.Context, tx *sql.Tx, user *model.User) error {
	query := `INSERT INTO users (id, external_id, email, name, profile_picture, skills)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at, updated_at`

	if user.Skills == nil {
		user.Skills = []string{}
	}
	err := pick(r.db, tx).QueryRowContext(ctx, query,
		user.ID, user.ExternalID, user.Email, user.Name, user.ProfilePicture, pq.Array(user.Skills),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given external id or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user := &model.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	user := &model.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, externalID), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByExternalID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByIDs query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("pgUserRepository.FindByIDs scan: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByIDs rows.Err: %w", err)
	}
	return users, nil
}

func (r *pgUserRepository) LockByID(ctx context.Context, tx *sql.Tx, id string) error {
	var locked string
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgUserRepository.LockByID: %w", err)
	}
	return nil
}

func (r *pgUserRepository) IncrementCounters(ctx context.Context, tx *sql.Tx, id string, delta model.UserCounters) error {
	query := `UPDATE users SET
                total_problems_posted = GREATEST(total_problems_posted + $1, 0),
                total_submissions = GREATEST(total_submissions + $2, 0),
                wins = GREATEST(wins + $3, 0),
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $4`

	res, err := pick(r.db, tx).ExecContext(ctx, query, delta.ProblemsPosted, delta.Submissions, delta.Wins, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.IncrementCounters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, u *model.User) error {
	query := `UPDATE users SET
                name = $1, bio = $2, skills = $3, github_url = $4, linkedin_url = $5, website_url = $6,
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $7
              RETURNING updated_at`

	if u.Skills == nil {
		u.Skills = []string{}
	}
	err := r.db.QueryRowContext(ctx, query,
		u.Name, u.Bio, pq.Array(u.Skills), u.GithubURL, u.LinkedinURL, u.WebsiteURL, u.ID,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgUserRepository.UpdateProfile: %w", err)
	}
	return nil
}
