// Package model defines the data structures shared by the catalog, feed,
// ledger, scoring and chat packages and by both storage drivers.
package model

import (
	"fmt"
	"time"
)

// ─── Identity ────────────────────────────────────────────────────────────────

// Role is the account kind resolved by the identity collaborator.
type Role string

const (
	RoleJobSeeker Role = "job_seeker"
	RoleCompany   Role = "company"
)

// ParseRole converts a raw claim or header value to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleJobSeeker, RoleCompany:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is the authenticated caller of every operation.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

func (i Identity) IsSeeker() bool  { return i.UserID != "" && i.Role == RoleJobSeeker }
func (i Identity) IsCompany() bool { return i.UserID != "" && i.Role == RoleCompany }

// ─── Catalog ─────────────────────────────────────────────────────────────────

// JobType mirrors the job_type check constraint on the jobs table.
type JobType string

const (
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeInternship JobType = "internship"
	JobTypeContract   JobType = "contract"
)

// ParseJobType returns an error for values outside the enum.
func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	switch t {
	case JobTypeFullTime, JobTypePartTime, JobTypeInternship, JobTypeContract:
		return t, nil
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

// Company is the display profile of a company account.
type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"companyName"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	CreatedAt   time.Time `json:"createdAt"`
}

// JobPosting is a company-owned job offer.
type JobPosting struct {
	ID                 string    `json:"id"`
	CompanyID          string    `json:"companyId"`
	Title              string    `json:"title"`
	Location           string    `json:"location"`
	Description        string    `json:"description"`
	Requirements       string    `json:"requirements"`
	JobType            JobType   `json:"jobType"`
	SalaryRange        *string   `json:"salaryRange"`
	ApplicationsClosed bool      `json:"applicationsClosed"`
	IsDeleted          bool      `json:"isDeleted"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Eligible reports whether the posting may still be offered in a feed.
func (j JobPosting) Eligible() bool { return !j.IsDeleted && !j.ApplicationsClosed }

// JobPatch carries the fields of a partial job update. Nil means unchanged.
type JobPatch struct {
	Title        *string
	Location     *string
	Description  *string
	Requirements *string
	JobType      *JobType
	SalaryRange  *string
}

// Empty reports whether the patch changes nothing.
func (p JobPatch) Empty() bool {
	return p.Title == nil && p.Location == nil && p.Description == nil &&
		p.Requirements == nil && p.JobType == nil && p.SalaryRange == nil
}

// JobCard is the feed-facing projection of a posting.
type JobCard struct {
	JobID              string  `json:"jobId"`
	Title              string  `json:"title"`
	Company            string  `json:"company"`
	Location           string  `json:"location"`
	Description        string  `json:"description"`
	Requirements       string  `json:"requirements"`
	JobType            JobType `json:"jobType"`
	SalaryRange        *string `json:"salaryRange"`
	CompatibilityScore *int    `json:"compatibilityScore,omitempty"`
}

// ─── Ledger ──────────────────────────────────────────────────────────────────

// Decision is the outcome of a single swipe.
type Decision string

const (
	DecisionLike    Decision = "like"
	DecisionDislike Decision = "dislike"
)

// ParseDecision returns an error for anything other than like/dislike.
func ParseDecision(s string) (Decision, error) {
	d := Decision(s)
	switch d {
	case DecisionLike, DecisionDislike:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Status values mirror the application_status check constraint.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApplied  Status = "applied"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Swipe is the fact of a seeker deciding on a posting. A row is never
// rewritten except for SupersededAt, set once when a reapply replaces it.
type Swipe struct {
	ID           string     `json:"id"`
	SeekerID     string     `json:"seekerId"`
	JobID        string     `json:"jobId"`
	Decision     Decision   `json:"decision"`
	CreatedAt    time.Time  `json:"createdAt"`
	SupersededAt *time.Time `json:"supersededAt,omitempty"`
}

// StatusChange is one entry of a match's status history.
type StatusChange struct {
	From  Status    `json:"from"`
	To    Status    `json:"to"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// Match is materialized from a like swipe.
type Match struct {
	ID                 string         `json:"id"`
	SeekerID           string         `json:"seekerId"`
	JobID              string         `json:"jobId"`
	SwipeID            string         `json:"swipeId"`
	ApplicationStatus  Status         `json:"applicationStatus"`
	IsHiddenByUser     bool           `json:"isHiddenByUser"`
	CompatibilityScore *int           `json:"compatibilityScore"`
	StatusHistory      []StatusChange `json:"statusHistory"`
	MatchedAt          time.Time      `json:"matchedAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// MatchRecord is a match plus the owner of its job, enough to authorize
// both the seeker side and the company side.
type MatchRecord struct {
	Match
	CompanyID string `json:"companyId"`
}

// MatchFilter selects a seeker-side listing.
type MatchFilter string

const (
	FilterAll     MatchFilter = "all"
	FilterHidden  MatchFilter = "hidden"
	FilterSkipped MatchFilter = "skipped"
)

// ParseMatchFilter maps unknown and empty values to FilterAll.
func ParseMatchFilter(s string) MatchFilter {
	switch f := MatchFilter(s); f {
	case FilterHidden, FilterSkipped:
		return f
	}
	return FilterAll
}

// MatchView is one row of a seeker's listing. Match is nil for skipped jobs.
type MatchView struct {
	Match       *Match     `json:"match"`
	Decision    Decision   `json:"decision"`
	Job         JobPosting `json:"job"`
	CompanyName string     `json:"companyName"`
}

// Applicant is one row of a company's applicant listing.
type Applicant struct {
	Match   Match          `json:"match"`
	Job     JobPosting     `json:"job"`
	Profile *SeekerProfile `json:"profile"`
}

// Dashboard summarises a company's postings.
type Dashboard struct {
	TotalJobs       int         `json:"totalJobs"`
	TotalApplicants int         `json:"totalApplicants"`
	Recent          []Applicant `json:"recent"`
}

// ─── Scoring ─────────────────────────────────────────────────────────────────

// SeekerProfile is the resume enrichment fed to the scorer.
type SeekerProfile struct {
	SeekerID    string    `json:"seekerId"`
	ProfileText string    `json:"profileText"`
	Skills      []string  `json:"skills"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ─── Chat ────────────────────────────────────────────────────────────────────

// Conversation is opened once per accepted match.
type Conversation struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	CreatedAt time.Time `json:"createdAt"`
}
