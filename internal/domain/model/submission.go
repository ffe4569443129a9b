package model

import "time"

type SubmissionStatus string

const (
	SubmissionStatusDraft       SubmissionStatus = "draft"
	SubmissionStatusSubmitted   SubmissionStatus = "submitted"
	SubmissionStatusUnderReview SubmissionStatus = "under_review"
	SubmissionStatusRejected    SubmissionStatus = "rejected"
	SubmissionStatusAccepted    SubmissionStatus = "accepted"
)

type Submission struct {
	ID          string           `json:"id"`
	ProblemID   string           `json:"problemId"`
	DeveloperID string           `json:"developerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	GithubLink  string           `json:"githubLink"`
	LiveLink    string           `json:"liveLink"`
	VideoDemo   string           `json:"videoDemo"`
	TechStack   []string         `json:"techStack"`
	Features    []string         `json:"features"`
	Status      SubmissionStatus `json:"status"`
	IsWinner    bool             `json:"isWinner"`
	VotedBy     []string         `json:"-"`
	Votes       int              `json:"votes"` // generated from voted_by
	Views       int              `json:"views"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`

	DeveloperName    *string `json:"developerName,omitempty"`    // For display
	DeveloperPicture *string `json:"developerPicture,omitempty"` // For display
	ProblemTitle     *string `json:"problemTitle,omitempty"`     // For display
}

type CreateSubmissionInput struct {
	ProblemID   string   `json:"problemId" validate:"required"`
	Title       string   `json:"title" validate:"required,min=10,max=100"`
	Description string   `json:"description" validate:"required,min=50,max=1000"`
	GithubLink  string   `json:"githubLink" validate:"required,github_url"`
	LiveLink    string   `json:"liveLink" validate:"omitempty,http_url"`
	VideoDemo   string   `json:"videoDemo" validate:"omitempty,http_url"`
	TechStack   []string `json:"techStack" validate:"required,min=1,max=10,dive,required"`
	Features    []string `json:"features" validate:"max=10"`
}

// UpdateSubmissionInput follows patch semantics: nil leaves the field alone.
type UpdateSubmissionInput struct {
	Title       *string  `json:"title" validate:"omitempty,min=10,max=100"`
	Description *string  `json:"description" validate:"omitempty,min=50,max=1000"`
	GithubLink  *string  `json:"githubLink" validate:"omitempty,github_url"`
	LiveLink    *string  `json:"liveLink" validate:"omitempty,http_url"`
	VideoDemo   *string  `json:"videoDemo" validate:"omitempty,http_url"`
	TechStack   []string `json:"techStack" validate:"omitempty,min=1,max=10,dive,required"`
	Features    []string `json:"features" validate:"omitempty,max=10"`
}

// SubmissionStats summarises a developer's submissions for the my-submissions view.
type SubmissionStats struct {
	Total     int `json:"total"`
	Won       int `json:"won"`
	Submitted int `json:"submitted"`
	Accepted  int `json:"accepted"`
}

// Editable reports whether the developer may still change or withdraw the submission.
func (s *Submission) Editable() bool {
	if s.IsWinner {
		return false
	}
	return s.Status == SubmissionStatusDraft || s.Status == SubmissionStatusSubmitted
}

// Public reports whether the submission shows up in a problem's public list.
func (s *Submission) Public() bool {
	return s.Status != SubmissionStatusDraft && s.Status != SubmissionStatusRejected
}

func (s *Submission) Apply(in UpdateSubmissionInput) {
	if in.Title != nil {
		s.Title = *in.Title
	}
	if in.Description != nil {
		s.Description = *in.Description
	}
	if in.GithubLink != nil {
		s.GithubLink = *in.GithubLink
	}
	if in.LiveLink != nil {
		s.LiveLink = *in.LiveLink
	}
	if in.VideoDemo != nil {
		s.VideoDemo = *in.VideoDemo
	}
	if in.TechStack != nil {
		s.TechStack = in.TechStack
	}
	if in.Features != nil {
		s.Features = in.Features
	}
}

func ValidSubmissionStatus(s SubmissionStatus) bool {
	switch s {
	case SubmissionStatusDraft, SubmissionStatusSubmitted, SubmissionStatusUnderReview,
		SubmissionStatusRejected, SubmissionStatusAccepted:
		return true
	}
	return false
}
