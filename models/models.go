package models

import (
	"strings"
	"time"
)

// DefaultWorkflows are required when a lab does not list its own CI jobs.
var DefaultWorkflows = []string{"run-autograding-tests", "test", "build", "Autograding"}

// CourseSummary is one entry of the course listing
type CourseSummary struct {
	ID       int    `json:"id"`       // 1-based position in the config directory
	Name     string `json:"name"`     // Course name
	Semester string `json:"semester"` // Semester label
}

// CourseDetail is the public view of a course config
type CourseDetail struct {
	ID                 int    `json:"id"`
	Config             string `json:"config"` // Config file name
	Name               string `json:"name"`
	Semester           string `json:"semester"`
	Email              string `json:"email"`
	GitHubOrganization string `json:"github-organization"`
	GoogleSpreadsheet  string `json:"google-spreadsheet"`
}

// Course is a fully loaded course config document
type Course struct {
	ID                 int
	ConfigName         string
	Name               string
	Semester           string
	Email              string
	GitHubOrganization string
	Spreadsheet        string
	InfoSheet          string
	StudentNameColumn  int // Zero-based column holding "surname name patronymic"
	Timezone           string
	Labs               []Lab
}

// Summary returns the listing view of the course.
func (c *Course) Summary() CourseSummary {
	return CourseSummary{ID: c.ID, Name: c.Name, Semester: c.Semester}
}

// Detail returns the public detail view of the course.
func (c *Course) Detail() CourseDetail {
	return CourseDetail{
		ID:                 c.ID,
		Config:             c.ConfigName,
		Name:               c.Name,
		Semester:           c.Semester,
		Email:              c.Email,
		GitHubOrganization: c.GitHubOrganization,
		GoogleSpreadsheet:  c.Spreadsheet,
	}
}

// LabByShortName finds a lab by the name used in the group sheet.
func (c *Course) LabByShortName(shortName string) (*Lab, bool) {
	for i := range c.Labs {
		if c.Labs[i].ShortName == shortName {
			return &c.Labs[i], true
		}
	}
	return nil, false
}

// Lab is one lab definition of a course
type Lab struct {
	ID           string   // Opaque key in the course config
	ShortName    string   // Name shown in row 2 of the group sheet
	GitHubPrefix string   // Repository name prefix
	Workflows    []string // Required check-run names
	PenaltyMax   *int     // Nil means uncapped
}

// RequiredWorkflows returns the configured CI jobs or the default set.
func (l *Lab) RequiredWorkflows() []string {
	if len(l.Workflows) == 0 {
		return DefaultWorkflows
	}
	return l.Workflows
}

// RepoName returns the student's repository name for this lab.
func (l *Lab) RepoName(githubLogin string) string {
	return l.GitHubPrefix + "-" + githubLogin
}

// CheckRun is a named CI job result attached to a commit
type CheckRun struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  string     `json:"conclusion"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Succeeded reports whether the run completed successfully.
func (r CheckRun) Succeeded() bool {
	return r.Status == "completed" && r.Conclusion == "success"
}

// Workflow is a GitHub Actions workflow definition
type Workflow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// WorkflowRun is one execution of a workflow
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HeadBranch string    `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StudentName identifies a roster row
type StudentName struct {
	Surname    string
	Name       string
	Patronymic string
}

// Full returns "surname name [patronymic]" as written in the roster.
func (n StudentName) Full() string {
	parts := []string{n.Surname, n.Name}
	if p := strings.TrimSpace(n.Patronymic); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// RegisterRequest is the body of POST .../register
type RegisterRequest struct {
	Name       string `json:"name" binding:"required"`
	Surname    string `json:"surname" binding:"required"`
	Patronymic string `json:"patronymic"`
	GitHub     string `json:"github" binding:"required"`
}

// GradeRequest is the body of POST .../grade
type GradeRequest struct {
	GitHub string `json:"github" binding:"required"`
}

// GradeResult describes one successful grading.
type GradeResult struct {
	CourseID    int       `json:"courseId"`
	Group       string    `json:"group"`
	Lab         string    `json:"lab"`
	GitHubLogin string    `json:"github"`
	Repository  string    `json:"repository"`
	CommitSHA   string    `json:"commit"`
	Deadline    time.Time `json:"deadline"`
	CompletedAt time.Time `json:"completedAt"`
	Penalty     int       `json:"penalty"`
	Mark        string    `json:"mark"`
}

// GradeRecord is a journal entry for a written mark
type GradeRecord struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recordedAt"`
	GradeResult
}
