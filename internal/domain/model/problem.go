package model

import (
	"time"
)

type ProblemStatus string
type ProblemCategory string
type PainLevel string
type Frequency string
type Audience string

const (
	ProblemStatusOpen     ProblemStatus = "open"
	ProblemStatusInReview ProblemStatus = "in_review"
	ProblemStatusSolved   ProblemStatus = "solved"
	ProblemStatusClosed   ProblemStatus = "closed"
)

const (
	CategoryHealthcare         ProblemCategory = "healthcare"
	CategoryTransportation     ProblemCategory = "transportation"
	CategoryEducation          ProblemCategory = "education"
	CategoryFinance            ProblemCategory = "finance"
	CategoryWorkplace          ProblemCategory = "workplace"
	CategoryShoppingRetail     ProblemCategory = "shopping-retail"
	CategoryGovernmentServices ProblemCategory = "government-services"
	CategoryHousing            ProblemCategory = "housing"
	CategorySocialCommunity    ProblemCategory = "social-community"
	CategoryProductivity       ProblemCategory = "productivity"
	CategoryOther              ProblemCategory = "other"
)

const (
	PainMildInconvenience PainLevel = "mild-inconvenience"
	PainTimeConsuming     PainLevel = "time-consuming"
	PainCostsMoney        PainLevel = "costs-money"
	PainStressful         PainLevel = "stressful"
	PainSafetyRisk        PainLevel = "safety-risk"
)

const (
	FrequencyDaily          Frequency = "daily"
	FrequencyWeekly         Frequency = "weekly"
	FrequencyMonthly        Frequency = "monthly"
	FrequencyRareButSerious Frequency = "rare-but-serious"
)

const (
	AudienceStudents             Audience = "students"
	AudienceWorkingProfessionals Audience = "working-professionals"
	AudienceElderly              Audience = "elderly"
	AudienceBusinessOwners       Audience = "business-owners"
	AudienceDevelopers           Audience = "developers"
	AudienceParents              Audience = "parents"
	AudienceEveryone             Audience = "everyone"
)

const (
	MonthlyProblemLimit      = 2
	MaxSubmissionsPerProblem = 10
)

var painScores = map[PainLevel]int{
	PainSafetyRisk:        5,
	PainStressful:         4,
	PainCostsMoney:        3,
	PainTimeConsuming:     2,
	PainMildInconvenience: 1,
}

var frequencyScores = map[Frequency]int{
	FrequencyDaily:          4,
	FrequencyWeekly:         3,
	FrequencyMonthly:        2,
	FrequencyRareButSerious: 2,
}

type Problem struct {
	ID                           string          `json:"id"`
	Title                        string          `json:"title"`
	Slug                         string          `json:"slug"`
	Category                     ProblemCategory `json:"category"`
	AffectedAudience             []Audience      `json:"affectedAudience"`
	Description                  string          `json:"description"`
	PainLevel                    PainLevel       `json:"painLevel"`
	Frequency                    Frequency       `json:"frequency"`
	HasExistingSolutions         bool            `json:"hasExistingSolutions"`
	ExistingSolutionsDescription string          `json:"existingSolutionsDescription"`
	DesiredOutcome               string          `json:"desiredOutcome"`
	PostedByID                   string          `json:"postedBy"`
	Status                       ProblemStatus   `json:"status"`
	Deadline                     time.Time       `json:"deadline"`
	OriginalDeadline             *time.Time      `json:"originalDeadline,omitempty"`
	Submissions                  []string        `json:"submissions,omitempty"`
	SubmissionCount              int             `json:"submissionCount"` // generated from submissions
	SelectedWinnerID             *string         `json:"selectedWinner"`
	UpvotedBy                    []string        `json:"-"`
	Upvotes                      int             `json:"upvotes"` // generated from upvoted_by
	PriorityScore                int             `json:"priorityScore"`
	Views                        int             `json:"views"`
	CreatedAt                    time.Time       `json:"createdAt"`
	UpdatedAt                    time.Time       `json:"updatedAt"`
	PostedByName                 *string         `json:"postedByName,omitempty"`    // For display
	PostedByPicture              *string         `json:"postedByPicture,omitempty"` // For display
}

// CreateProblemInput is the request body for posting a problem.
type CreateProblemInput struct {
	Title                        string          `json:"title" validate:"required,min=20,max=100,problem_title"`
	Category                     ProblemCategory `json:"category" validate:"required,problem_category"`
	AffectedAudience             []Audience      `json:"affectedAudience" validate:"required,min=1,dive,audience"`
	Description                  string          `json:"description" validate:"required,min=50,max=500,problem_description"`
	PainLevel                    PainLevel       `json:"painLevel" validate:"required,pain_level"`
	Frequency                    Frequency       `json:"frequency" validate:"required,frequency"`
	HasExistingSolutions         bool            `json:"hasExistingSolutions"`
	ExistingSolutionsDescription string          `json:"existingSolutionsDescription" validate:"max=300,required_if=HasExistingSolutions true"`
	DesiredOutcome               string          `json:"desiredOutcome" validate:"required,min=20,max=300,desired_outcome"`
	Deadline                     time.Time       `json:"deadline" validate:"required"`
	ConfirmNotDuplicate          bool            `json:"confirmNotDuplicate"`
}

// UpdateProblemInput carries the only two mutable fields; nil means unchanged.
type UpdateProblemInput struct {
	Description *string    `json:"description" validate:"omitempty,min=50,max=500,problem_description"`
	Deadline    *time.Time `json:"deadline"`
}

type ProblemSort string

const (
	SortRecent      ProblemSort = "recent"
	SortDeadline    ProblemSort = "deadline"
	SortPriority    ProblemSort = "priority"
	SortSubmissions ProblemSort = "submissions"
)

// ProblemFilter drives both the public listing and the poster's own listing.
type ProblemFilter struct {
	Category      ProblemCategory
	PainLevel     PainLevel
	Frequency     Frequency
	Audience      []Audience
	Search        string
	Status        ProblemStatus
	PostedByID    string
	DeadlineAfter *time.Time
	Sort          ProblemSort
	SortAscending bool
	Limit         int
	Offset        int
}

// ProblemStats summarises a poster's problems for the my-problems view.
type ProblemStats struct {
	Total                   int `json:"total"`
	Open                    int `json:"open"`
	InReview                int `json:"inReview"`
	Solved                  int `json:"solved"`
	Closed                  int `json:"closed"`
	ProblemsThisMonth       int `json:"problemsThisMonth"`
	RemainingPostsThisMonth int `json:"remainingPostsThisMonth"`
}

// OwnedProblem decorates a problem with deadline information for its poster.
type OwnedProblem struct {
	Problem
	HasWinner         bool `json:"hasWinner"`
	DaysUntilDeadline int  `json:"daysUntilDeadline"`
	IsExpired         bool `json:"isExpired"`
}

// PriorityScore is the sum of the pain and frequency weights; unknown values weigh zero.
func PriorityScore(pain PainLevel, freq Frequency) int {
	return painScores[pain] + frequencyScores[freq]
}

func (p *Problem) IsExpired(now time.Time) bool {
	return now.After(p.Deadline)
}

func (p *Problem) HasWinner() bool {
	return p.SelectedWinnerID != nil && *p.SelectedWinnerID != ""
}

// AcceptsSubmissions reports whether new submissions may be posted at now.
func (p *Problem) AcceptsSubmissions(now time.Time) bool {
	if p.IsExpired(now) {
		return false
	}
	return p.Status == ProblemStatusOpen || p.Status == ProblemStatusInReview
}

// DaysUntilDeadline rounds up partial days, negative once expired.
func (p *Problem) DaysUntilDeadline(now time.Time) int {
	d := p.Deadline.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func (p *Problem) Owned(now time.Time) OwnedProblem {
	return OwnedProblem{
		Problem:           *p,
		HasWinner:         p.HasWinner(),
		DaysUntilDeadline: p.DaysUntilDeadline(now),
		IsExpired:         p.IsExpired(now),
	}
}

func ValidCategory(c ProblemCategory) bool {
	switch c {
	case CategoryHealthcare, CategoryTransportation, CategoryEducation, CategoryFinance,
		CategoryWorkplace, CategoryShoppingRetail, CategoryGovernmentServices, CategoryHousing,
		CategorySocialCommunity, CategoryProductivity, CategoryOther:
		return true
	}
	return false
}

func ValidPainLevel(p PainLevel) bool {
	_, ok := painScores[p]
	return ok
}

func ValidFrequency(f Frequency) bool {
	_, ok := frequencyScores[f]
	return ok
}

func ValidAudience(a Audience) bool {
	switch a {
	case AudienceStudents, AudienceWorkingProfessionals, AudienceElderly, AudienceBusinessOwners,
		AudienceDevelopers, AudienceParents, AudienceEveryone:
		return true
	}
	return false
}

func ValidProblemStatus(s ProblemStatus) bool {
	switch s {
	case ProblemStatusOpen, ProblemStatusInReview, ProblemStatusSolved, ProblemStatusClosed:
		return true
	}
	return false
}
