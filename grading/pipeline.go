// Package grading resolves a student, lab and group to a GitHub repository,
// checks its CI against the deadline and records the mark in the roster.
package grading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
	"github.com/CMPEQ0/lab-mark-api/sheets"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CI is the part of GitHub the pipeline reads.
type CI interface {
	DefaultBranch(ctx context.Context, org, repo string) (string, error)
	LatestCommit(ctx context.Context, org, repo, branch string) (string, error)
	CheckRuns(ctx context.Context, org, repo, sha string) ([]models.CheckRun, error)
	UserExists(ctx context.Context, login string) (bool, error)
}

// Journal serialises writes to one roster cell and keeps a record of marks.
type Journal interface {
	// Lock takes an exclusive lock on key. It fails with Conflict when the
	// key is already held.
	Lock(ctx context.Context, key string) (unlock func(), err error)
	Record(ctx context.Context, rec models.GradeRecord) error
}

type nopJournal struct{}

func (nopJournal) Lock(context.Context, string) (func(), error)     { return func() {}, nil }
func (nopJournal) Record(context.Context, models.GradeRecord) error { return nil }

// Registration is the outcome of a successful Register call.
type Registration int

const (
	Registered        Registration = iota // login written to the roster
	AlreadyRegistered                     // the same login was already there
)

// Pipeline grades and registers students of one course. It holds no state
// between calls; build one per request.
type Pipeline struct {
	Course  *models.Course
	Sheet   *sheets.Spreadsheet
	CI      CI
	Journal Journal // optional
	Now     func() time.Time
}

func (p *Pipeline) journal() Journal {
	if p.Journal == nil {
		return nopJournal{}
	}
	return p.Journal
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Groups lists the course's group sheets, without the info sheet.
func (p *Pipeline) Groups(ctx context.Context) ([]string, error) {
	names, err := p.Sheet.SheetNames(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]string, 0, len(names))
	for _, name := range names {
		if name != p.Course.InfoSheet {
			groups = append(groups, name)
		}
	}
	return groups, nil
}

func (p *Pipeline) checkGroup(ctx context.Context, group string) error {
	groups, err := p.Groups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g == group {
			return nil
		}
	}
	return apperr.NotFound("group %s not found", group)
}

// Labs lists configured lab short names, in config order, that also appear
// in the group's lab row.
func (p *Pipeline) Labs(ctx context.Context, group string) ([]string, error) {
	if err := p.checkGroup(ctx, group); err != nil {
		return nil, err
	}
	row, err := p.Sheet.Row(ctx, group, sheets.LabRow)
	if err != nil {
		return nil, err
	}
	inSheet := make(map[string]bool, len(row))
	for _, cell := range row {
		inSheet[cell] = true
	}

	labs := []string{}
	for _, lab := range p.Course.Labs {
		if inSheet[lab.ShortName] {
			labs = append(labs, lab.ShortName)
		}
	}
	return labs, nil
}

// Grade checks the student's lab repository and writes the mark once.
func (p *Pipeline) Grade(ctx context.Context, group, labShortName, githubLogin string) (*models.GradeResult, error) {
	if err := p.checkGroup(ctx, group); err != nil {
		return nil, err
	}
	lab, ok := p.Course.LabByShortName(labShortName)
	if !ok {
		return nil, apperr.NotFound("lab %s not found", labShortName)
	}
	org := p.Course.GitHubOrganization
	repo := lab.RepoName(githubLogin)
	required := lab.RequiredWorkflows()

	rawDeadline, err := p.Sheet.LabDeadline(ctx, group, labShortName)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(p.Course.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load course timezone %q: %w", p.Course.Timezone, err)
	}
	deadline, err := ParseDeadline(rawDeadline, loc)
	if err != nil {
		return nil, err
	}

	branch, err := p.CI.DefaultBranch(ctx, org, repo)
	if err != nil {
		return nil, err
	}
	sha, err := p.CI.LatestCommit(ctx, org, repo, branch)
	if err != nil {
		return nil, err
	}
	runs, err := p.CI.CheckRuns(ctx, org, repo, sha)
	if err != nil {
		return nil, err
	}

	if missing := MissingJobs(runs, required); len(missing) > 0 {
		return nil, apperr.Validation("not all required checks have run: %s", strings.Join(missing, ", "))
	}

	var penalty int
	completed, ok := CompletionTime(runs)
	if ok {
		penalty = Penalty(completed, deadline, lab.PenaltyMax)
	} else {
		// No successful run counts as the latest possible submission.
		if lab.PenaltyMax == nil {
			return nil, apperr.Validation("no required check has completed successfully for %s", repo)
		}
		penalty = *lab.PenaltyMax
	}

	result := &models.GradeResult{
		CourseID:    p.Course.ID,
		Group:       group,
		Lab:         labShortName,
		GitHubLogin: githubLogin,
		Repository:  org + "/" + repo,
		CommitSHA:   sha,
		Deadline:    deadline,
		CompletedAt: completed,
		Penalty:     penalty,
		Mark:        Mark(penalty),
	}

	unlock, err := p.journal().Lock(ctx, p.lockKey(group, "grade", labShortName, githubLogin))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := p.Sheet.WriteMark(ctx, group, labShortName, githubLogin, result.Mark); err != nil {
		return nil, err
	}
	log.Info().
		Str("course", p.Course.ConfigName).
		Str("group", group).
		Str("lab", labShortName).
		Str("github", githubLogin).
		Str("mark", result.Mark).
		Msg("Lab graded")

	rec := models.GradeRecord{ID: uuid.NewString(), RecordedAt: p.now(), GradeResult: *result}
	if err := p.journal().Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("record", rec.ID).Msg("Mark written but journal record failed")
	}
	return result, nil
}

// Register links a GitHub login to the student's roster row. A row keeps its
// first login; changing it is left to the instructor.
func (p *Pipeline) Register(ctx context.Context, group string, student models.StudentName, githubLogin string) (Registration, error) {
	if err := p.checkGroup(ctx, group); err != nil {
		return 0, err
	}
	exists, err := p.CI.UserExists(ctx, githubLogin)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, apperr.NotFound("GitHub user %s not found", githubLogin)
	}

	col, err := p.Sheet.FindColumn(ctx, group, sheets.HeaderRow, sheets.GitHubHeader)
	if err != nil {
		return 0, err
	}
	row, err := p.Sheet.FindStudentRow(ctx, group, p.Course.StudentNameColumn, student.Full())
	if err != nil {
		return 0, err
	}

	unlock, err := p.journal().Lock(ctx, p.lockKey(group, "register", student.Full()))
	if err != nil {
		return 0, err
	}
	defer unlock()

	old, err := p.Sheet.ReadCell(ctx, group, col, row)
	if err != nil {
		return 0, err
	}
	switch old {
	case githubLogin:
		return AlreadyRegistered, nil
	case "":
	default:
		return 0, apperr.Conflict("a GitHub account is already registered for %s, contact your instructor to change it", student.Full())
	}

	other, err := p.Sheet.FindLoginRow(ctx, group, githubLogin)
	switch {
	case err == nil && other != row:
		return 0, apperr.Conflict("GitHub account %s is already registered to another student", githubLogin)
	case err != nil && !apperr.Is(err, apperr.KindNotFound):
		return 0, err
	}

	if err := p.Sheet.WriteCell(ctx, group, col, row, githubLogin); err != nil {
		return 0, err
	}
	log.Info().
		Str("course", p.Course.ConfigName).
		Str("group", group).
		Str("student", student.Full()).
		Str("github", githubLogin).
		Msg("Student registered")
	return Registered, nil
}

func (p *Pipeline) lockKey(group string, parts ...string) string {
	return p.Course.Spreadsheet + ":" + group + ":" + strings.Join(parts, ":")
}
