package model

import (
	"time"
)

type User struct {
	ID                  string    `json:"id"`
	ExternalID          string    `json:"-"` // identity provider principal, not exposed
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	ProfilePicture      string    `json:"profilePicture"`
	Bio                 string    `json:"bio"`
	GithubURL           string    `json:"githubUrl"`
	LinkedinURL         string    `json:"linkedinUrl"`
	WebsiteURL          string    `json:"websiteUrl"`
	Skills              []string  `json:"skills"`
	TotalProblemsPosted int       `json:"totalProblemsPosted"`
	TotalSubmissions    int       `json:"totalSubmissions"`
	Wins                int       `json:"wins"`
	Rating              float64   `json:"rating"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// UserCounters is a delta applied to the denormalized user counters.
type UserCounters struct {
	ProblemsPosted int
	Submissions    int
	Wins           int
}

// IdentityProfile is what the identity provider knows about a principal.
type IdentityProfile struct {
	Email     string
	Name      string
	AvatarURL string
}

type UpdateProfileInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Bio         *string  `json:"bio" validate:"omitempty,max=500"`
	Skills      []string `json:"skills" validate:"omitempty,max=20,dive,min=1,max=50"`
	GithubURL   *string  `json:"githubUrl" validate:"omitempty,http_url"`
	LinkedinURL *string  `json:"linkedinUrl" validate:"omitempty,http_url"`
	WebsiteURL  *string  `json:"websiteUrl" validate:"omitempty,http_url"`
}

func (u *User) Apply(in UpdateProfileInput) {
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
	if in.Skills != nil {
		u.Skills = in.Skills
	}
	if in.GithubURL != nil {
		u.GithubURL = *in.GithubURL
	}
	if in.LinkedinURL != nil {
		u.LinkedinURL = *in.LinkedinURL
	}
	if in.WebsiteURL != nil {
		u.WebsiteURL = *in.WebsiteURL
	}
}
