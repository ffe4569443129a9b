// Package testutil provides an in-memory, transactional implementation of the
// repositories for service and worker tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"

	"github.com/google/uuid"
)

// Clock is a settable time source shared by a test and the store.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// MemStore keeps users, problems and submissions in maps. WithinTx serializes
// transactions and restores a snapshot when fn fails, which is enough to
// observe all-or-nothing behaviour and the effect of row locks.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	clock    *Clock
	seq      int
	users    map[string]model.User
	problems map[string]model.Problem
	subs     map[string]model.Submission
	faults   map[string]error
}

func NewMemStore(clock *Clock) *MemStore {
	if clock == nil {
		clock = NewClock(time.Now().UTC())
	}
	return &MemStore{
		clock:    clock,
		users:    map[string]model.User{},
		problems: map[string]model.Problem{},
		subs:     map[string]model.Submission{},
		faults:   map[string]error{},
	}
}

func (s *MemStore) UserRepo() repository.UserRepository             { return &memUsers{s} }
func (s *MemStore) ProblemRepo() repository.ProblemRepository       { return &memProblems{s} }
func (s *MemStore) SubmissionRepo() repository.SubmissionRepository { return &memSubmissions{s} }

// FailOn makes the named repository method return err until cleared with a nil err.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *MemStore) fault(method string) error {
	return s.faults[method]
}

func (s *MemStore) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users, problems, subs := s.snapshot()
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.users, s.problems, s.subs = users, problems, subs
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemStore) snapshot() (map[string]model.User, map[string]model.Problem, map[string]model.Submission) {
	users := make(map[string]model.User, len(s.users))
	for k, v := range s.users {
		users[k] = copyUser(v)
	}
	problems := make(map[string]model.Problem, len(s.problems))
	for k, v := range s.problems {
		problems[k] = copyProblem(v)
	}
	subs := make(map[string]model.Submission, len(s.subs))
	for k, v := range s.subs {
		subs[k] = copySubmission(v)
	}
	return users, problems, subs
}

// tick returns a strictly increasing creation time so ordering by created_at is stable.
func (s *MemStore) tick() time.Time {
	s.seq++
	return s.clock.Now().Add(time.Duration(s.seq) * time.Microsecond)
}

// SeedUser inserts a user with a fresh id and returns it.
func (s *MemStore) SeedUser(name string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	u := model.User{
		ID:         id,
		ExternalID: "ext_" + id,
		Email:      strings.ToLower(name) + "@example.com",
		Name:       name,
		Skills:     []string{},
		CreatedAt:  s.tick(),
	}
	u.UpdatedAt = u.CreatedAt
	s.users[id] = u
	return copyUser(u)
}

// PutProblem stores p as is, recomputing derived counters.
func (s *MemStore) PutProblem(p model.Problem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.SubmissionCount = len(p.Submissions)
	p.Upvotes = len(p.UpvotedBy)
	s.problems[p.ID] = copyProblem(p)
}

// PutSubmission stores sub and links it to its problem.
func (s *MemStore) PutSubmission(sub model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.Votes = len(sub.VotedBy)
	s.subs[sub.ID] = copySubmission(sub)
	if p, ok := s.problems[sub.ProblemID]; ok {
		p.Submissions, _ = addUnique(p.Submissions, sub.ID)
		p.SubmissionCount = len(p.Submissions)
		s.problems[p.ID] = p
	}
}

func (s *MemStore) User(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return copyUser(u), ok
}

func (s *MemStore) Problem(id string) (model.Problem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	return copyProblem(p), ok
}

func (s *MemStore) Submission(id string) (model.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	return copySubmission(sub), ok
}

func (s *MemStore) CountProblems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.problems)
}

func (s *MemStore) CountSubmissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// ---- users ----

type memUsers struct{ s *MemStore }

func (r *memUsers) Create(_ context.Context, _ *sql.Tx, user *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UserRepository.Create"); err != nil {
		return err
	}
	for _, u := range s.users {
		if u.ExternalID == user.ExternalID || (user.Email != "" && u.Email == user.Email) {
			return fmt.Errorf("user with given external id or email already exists: %w", common.ErrConflict)
		}
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	user.CreatedAt = s.tick()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = copyUser(*user)
	return nil
}

func (r *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (r *memUsers) FindByExternalID(_ context.Context, externalID string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UserRepository.FindByExternalID"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.ExternalID == externalID {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsers) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (r *memUsers) LockByID(_ context.Context, _ *sql.Tx, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return common.ErrNotFound
	}
	return nil
}

func (r *memUsers) IncrementCounters(_ context.Context, _ *sql.Tx, id string, d model.UserCounters) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UserRepository.IncrementCounters"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.TotalProblemsPosted = max(u.TotalProblemsPosted+d.ProblemsPosted, 0)
	u.TotalSubmissions = max(u.TotalSubmissions+d.Submissions, 0)
	u.Wins = max(u.Wins+d.Wins, 0)
	u.UpdatedAt = s.clock.Now()
	s.users[id] = u
	return nil
}

func (r *memUsers) UpdateProfile(_ context.Context, user *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	u.Name, u.Bio = user.Name, user.Bio
	u.Skills = append([]string{}, user.Skills...)
	u.GithubURL, u.LinkedinURL, u.WebsiteURL = user.GithubURL, user.LinkedinURL, user.WebsiteURL
	u.UpdatedAt = s.clock.Now()
	user.UpdatedAt = u.UpdatedAt
	s.users[u.ID] = u
	return nil
}

// ---- problems ----

type memProblems struct{ s *MemStore }

func (r *memProblems) CreateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ProblemRepository.CreateProblem"); err != nil {
		return err
	}
	if _, ok := s.problems[p.ID]; ok {
		return fmt.Errorf("problem already exists: %w", common.ErrConflict)
	}
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	p.SubmissionCount = len(p.Submissions)
	p.Upvotes = len(p.UpvotedBy)
	s.problems[p.ID] = copyProblem(*p)
	return nil
}

func (r *memProblems) UpdateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.problems[p.ID]
	if !ok {
		return common.ErrNotFound
	}
	cur.Description = p.Description
	cur.Deadline = p.Deadline
	cur.OriginalDeadline = copyTime(p.OriginalDeadline)
	cur.UpdatedAt = s.clock.Now()
	p.UpdatedAt = cur.UpdatedAt
	s.problems[p.ID] = cur
	return nil
}

func (r *memProblems) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := s.withPoster(p)
	return &out, nil
}

func (r *memProblems) FindProblemForUpdate(ctx context.Context, _ *sql.Tx, id string) (*model.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := copyProblem(p)
	return &out, nil
}

func (s *MemStore) withPoster(p model.Problem) model.Problem {
	out := copyProblem(p)
	if u, ok := s.users[p.PostedByID]; ok {
		name, pic := u.Name, u.ProfilePicture
		out.PostedByName, out.PostedByPicture = &name, &pic
	}
	return out
}

func (r *memProblems) ListProblems(_ context.Context, f model.ProblemFilter) ([]model.Problem, int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []model.Problem{}
	for _, p := range s.problems {
		if matchesFilter(p, f) {
			matched = append(matched, s.withPoster(p))
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case model.SortDeadline:
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
		case model.SortPriority:
			if a.PriorityScore != b.PriorityScore {
				return a.PriorityScore > b.PriorityScore
			}
		case model.SortSubmissions:
			if a.SubmissionCount != b.SubmissionCount {
				return a.SubmissionCount > b.SubmissionCount
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.Sort == "" || f.Sort == model.SortRecent {
				if f.SortAscending {
					return a.CreatedAt.Before(b.CreatedAt)
				}
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func matchesFilter(p model.Problem, f model.ProblemFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.PainLevel != "" && p.PainLevel != f.PainLevel {
		return false
	}
	if f.Frequency != "" && p.Frequency != f.Frequency {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.PostedByID != "" && p.PostedByID != f.PostedByID {
		return false
	}
	if f.DeadlineAfter != nil && !p.Deadline.After(*f.DeadlineAfter) {
		return false
	}
	if len(f.Audience) > 0 {
		hit := false
		for _, want := range f.Audience {
			for _, have := range p.AffectedAudience {
				if want == have {
					hit = true
				}
			}
		}
		if !hit {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}

func (r *memProblems) CountByPosterSince(_ context.Context, _ *sql.Tx, posterID string, since time.Time) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.problems {
		if p.PostedByID == posterID && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memProblems) CountByPosterAndStatus(_ context.Context, posterID string) (map[model.ProblemStatus]int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[model.ProblemStatus]int{}
	for _, p := range s.problems {
		if p.PostedByID == posterID {
			out[p.Status]++
		}
	}
	return out, nil
}

func (r *memProblems) FindSimilarTitle(_ context.Context, _ *sql.Tx, category model.ProblemCategory, words []string) (string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Problem
	for _, p := range s.problems {
		if p.Category != category {
			continue
		}
		title := strings.ToLower(p.Title)
		for _, w := range words {
			if strings.Contains(title, strings.ToLower(w)) {
				if best == nil || p.CreatedAt.Before(best.CreatedAt) {
					cp := p
					best = &cp
				}
				break
			}
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ID, nil
}

func (r *memProblems) AddSubmission(_ context.Context, _ *sql.Tx, problemID, submissionID string) error {
	return r.update(problemID, func(p *model.Problem) error {
		p.Submissions, _ = addUnique(p.Submissions, submissionID)
		p.Status = model.ProblemStatusInReview
		return nil
	})
}

func (r *memProblems) RemoveSubmission(_ context.Context, _ *sql.Tx, problemID, submissionID string) error {
	return r.update(problemID, func(p *model.Problem) error {
		out := p.Submissions[:0:0]
		for _, id := range p.Submissions {
			if id != submissionID {
				out = append(out, id)
			}
		}
		p.Submissions = out
		return nil
	})
}

func (r *memProblems) SetWinner(_ context.Context, _ *sql.Tx, problemID, submissionID string) error {
	if err := r.s.faultLocked("ProblemRepository.SetWinner"); err != nil {
		return err
	}
	return r.update(problemID, func(p *model.Problem) error {
		if p.HasWinner() {
			return fmt.Errorf("winner already selected: %w", common.ErrStateConflict)
		}
		id := submissionID
		p.SelectedWinnerID = &id
		p.Status = model.ProblemStatusSolved
		return nil
	})
}

func (r *memProblems) UpdateStatus(_ context.Context, _ *sql.Tx, problemID string, status model.ProblemStatus) error {
	if err := r.s.faultLocked("ProblemRepository.UpdateStatus"); err != nil {
		return err
	}
	return r.update(problemID, func(p *model.Problem) error {
		p.Status = status
		return nil
	})
}

func (r *memProblems) ToggleUpvote(_ context.Context, problemID, userID string) (model.VoteResult, error) {
	var res model.VoteResult
	err := r.update(problemID, func(p *model.Problem) error {
		p.UpvotedBy, res.Voted = model.ToggleMember(p.UpvotedBy, userID)
		res.Count = len(p.UpvotedBy)
		return nil
	})
	return res, err
}

func (r *memProblems) IncrementViews(_ context.Context, problemID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ProblemRepository.IncrementViews"); err != nil {
		return err
	}
	if p, ok := s.problems[problemID]; ok {
		p.Views++
		s.problems[problemID] = p
	}
	return nil
}

func (r *memProblems) ListSweepCandidates(_ context.Context, cutoff time.Time, after *repository.SweepCursor, limit int) ([]model.Problem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ProblemRepository.ListSweepCandidates"); err != nil {
		return nil, err
	}
	out := []model.Problem{}
	for _, p := range s.problems {
		if p.Status != model.ProblemStatusInReview || p.HasWinner() || !p.Deadline.Before(cutoff) {
			continue
		}
		if after != nil && !sweepKeyAfter(p.Deadline, p.ID, *after) {
			continue
		}
		out = append(out, copyProblem(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sweepKeyAfter(deadline time.Time, id string, c repository.SweepCursor) bool {
	if !deadline.Equal(c.Deadline) {
		return deadline.After(c.Deadline)
	}
	return id > c.ID
}

func (r *memProblems) update(id string, fn func(p *model.Problem) error) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return common.ErrNotFound
	}
	p = copyProblem(p)
	if err := fn(&p); err != nil {
		return err
	}
	p.SubmissionCount = len(p.Submissions)
	p.Upvotes = len(p.UpvotedBy)
	p.UpdatedAt = s.clock.Now()
	s.problems[id] = p
	return nil
}

func (s *MemStore) faultLocked(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault(method)
}

// ---- submissions ----

type memSubmissions struct{ s *MemStore }

func (r *memSubmissions) CreateSubmission(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("SubmissionRepository.CreateSubmission"); err != nil {
		return err
	}
	for _, existing := range s.subs {
		if existing.ProblemID == sub.ProblemID && existing.DeveloperID == sub.DeveloperID {
			return fmt.Errorf("you have already submitted to this problem: %w", common.ErrConflict)
		}
	}
	if sub.Features == nil {
		sub.Features = []string{}
	}
	sub.CreatedAt = s.tick()
	sub.UpdatedAt = sub.CreatedAt
	sub.Votes = len(sub.VotedBy)
	s.subs[sub.ID] = copySubmission(*sub)
	return nil
}

func (r *memSubmissions) FindSubmissionByID(_ context.Context, id string) (*model.Submission, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := copySubmission(sub)
	if u, ok := s.users[sub.DeveloperID]; ok {
		name := u.Name
		out.DeveloperName = &name
	}
	if p, ok := s.problems[sub.ProblemID]; ok {
		title := p.Title
		out.ProblemTitle = &title
	}
	return &out, nil
}

func (r *memSubmissions) FindSubmissionForUpdate(_ context.Context, _ *sql.Tx, id string) (*model.Submission, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := copySubmission(sub)
	return &out, nil
}

func (r *memSubmissions) UpdateSubmission(_ context.Context, sub *model.Submission) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[sub.ID]
	if !ok || !cur.Editable() {
		return fmt.Errorf("submission can no longer be edited: %w", common.ErrStateConflict)
	}
	cur.Title, cur.Description = sub.Title, sub.Description
	cur.GithubLink, cur.LiveLink, cur.VideoDemo = sub.GithubLink, sub.LiveLink, sub.VideoDemo
	cur.TechStack = append([]string{}, sub.TechStack...)
	cur.Features = append([]string{}, sub.Features...)
	cur.UpdatedAt = s.clock.Now()
	sub.UpdatedAt = cur.UpdatedAt
	s.subs[sub.ID] = cur
	return nil
}

func (r *memSubmissions) DeleteSubmission(_ context.Context, _ *sql.Tx, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[id]
	if !ok || !cur.Editable() {
		return fmt.Errorf("submission can no longer be withdrawn: %w", common.ErrStateConflict)
	}
	delete(s.subs, id)
	return nil
}

func (r *memSubmissions) CountActiveByProblem(_ context.Context, _ *sql.Tx, problemID string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.ProblemID == problemID && sub.Status != model.SubmissionStatusRejected {
			n++
		}
	}
	return n, nil
}

func (r *memSubmissions) ListPublicByProblem(_ context.Context, problemID string) ([]model.Submission, error) {
	return r.listByProblem(problemID, func(sub model.Submission) bool { return sub.Public() }), nil
}

func (r *memSubmissions) ListSubmittedByProblem(_ context.Context, _ *sql.Tx, problemID string) ([]model.Submission, error) {
	return r.listByProblem(problemID, func(sub model.Submission) bool {
		return sub.Status == model.SubmissionStatusSubmitted
	}), nil
}

func (r *memSubmissions) listByProblem(problemID string, keep func(model.Submission) bool) []model.Submission {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Submission{}
	for _, sub := range s.subs {
		if sub.ProblemID == problemID && keep(sub) {
			out = append(out, copySubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memSubmissions) ListByDeveloper(_ context.Context, developerID string, status model.SubmissionStatus, limit, offset int) ([]model.Submission, int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Submission{}
	for _, sub := range s.subs {
		if sub.DeveloperID != developerID || (status != "" && sub.Status != status) {
			continue
		}
		cp := copySubmission(sub)
		if p, ok := s.problems[sub.ProblemID]; ok {
			title := p.Title
			cp.ProblemTitle = &title
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := min(offset, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return out[start:end], total, nil
}

func (r *memSubmissions) DeveloperStats(_ context.Context, developerID string) (model.SubmissionStats, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.SubmissionStats
	for _, sub := range s.subs {
		if sub.DeveloperID != developerID {
			continue
		}
		st.Total++
		if sub.IsWinner {
			st.Won++
		}
		switch sub.Status {
		case model.SubmissionStatusSubmitted:
			st.Submitted++
		case model.SubmissionStatusAccepted:
			st.Accepted++
		}
	}
	return st, nil
}

func (r *memSubmissions) ToggleVote(_ context.Context, submissionID, userID string) (model.VoteResult, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[submissionID]
	if !ok {
		return model.VoteResult{}, common.ErrNotFound
	}
	var res model.VoteResult
	sub.VotedBy, res.Voted = model.ToggleMember(sub.VotedBy, userID)
	sub.Votes = len(sub.VotedBy)
	res.Count = sub.Votes
	s.subs[submissionID] = sub
	return res, nil
}

func (r *memSubmissions) IncrementViews(_ context.Context, submissionID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[submissionID]; ok {
		sub.Views++
		s.subs[submissionID] = sub
	}
	return nil
}

func (r *memSubmissions) MarkWinner(_ context.Context, _ *sql.Tx, problemID, submissionID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("SubmissionRepository.MarkWinner"); err != nil {
		return err
	}
	target, ok := s.subs[submissionID]
	if !ok || target.ProblemID != problemID {
		return common.ErrNotFound
	}
	now := s.clock.Now()
	for id, sub := range s.subs {
		if sub.ProblemID != problemID || id == submissionID {
			continue
		}
		if sub.Status == model.SubmissionStatusDraft || sub.Status == model.SubmissionStatusRejected {
			continue
		}
		sub.IsWinner = false
		sub.Status = model.SubmissionStatusSubmitted
		sub.UpdatedAt = now
		s.subs[id] = sub
	}
	target.IsWinner = true
	target.Status = model.SubmissionStatusAccepted
	target.UpdatedAt = now
	s.subs[submissionID] = target
	return nil
}

func (r *memSubmissions) AggregateDeveloperStats(_ context.Context, since *time.Time) ([]model.DeveloperStats, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	byDev := map[string]*model.DeveloperStats{}
	for _, sub := range s.subs {
		if since != nil && sub.CreatedAt.Before(*since) {
			continue
		}
		st, ok := byDev[sub.DeveloperID]
		if !ok {
			st = &model.DeveloperStats{DeveloperID: sub.DeveloperID}
			byDev[sub.DeveloperID] = st
		}
		st.TotalVotes += len(sub.VotedBy)
		st.TotalSubmissions++
		if sub.IsWinner {
			st.Wins++
		}
	}
	out := make([]model.DeveloperStats, 0, len(byDev))
	for _, st := range byDev {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeveloperID < out[j].DeveloperID })
	return out, nil
}

// ---- copies ----

func copyUser(u model.User) model.User {
	u.Skills = cloneStrings(u.Skills)
	return u
}

func copyProblem(p model.Problem) model.Problem {
	p.AffectedAudience = append([]model.Audience(nil), p.AffectedAudience...)
	p.Submissions = cloneStrings(p.Submissions)
	p.UpvotedBy = cloneStrings(p.UpvotedBy)
	p.OriginalDeadline = copyTime(p.OriginalDeadline)
	if p.SelectedWinnerID != nil {
		id := *p.SelectedWinnerID
		p.SelectedWinnerID = &id
	}
	p.PostedByName, p.PostedByPicture = nil, nil
	return p
}

func copySubmission(s model.Submission) model.Submission {
	s.TechStack = cloneStrings(s.TechStack)
	s.Features = cloneStrings(s.Features)
	s.VotedBy = cloneStrings(s.VotedBy)
	s.DeveloperName, s.DeveloperPicture, s.ProblemTitle = nil, nil, nil
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func addUnique(set []string, id string) ([]string, bool) {
	for _, v := range set {
		if v == id {
			return set, false
		}
	}
	return append(set, id), true
}

var _ repository.TxManager = (*MemStore)(nil)
