package grading

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
	"github.com/CMPEQ0/lab-mark-api/sheets"
	"github.com/xuri/excelize/v2"
)

type fakeCI struct {
	branch string
	sha    string
	runs   []models.CheckRun
	users  map[string]bool
	err    error
	repos  []string
}

func (f *fakeCI) DefaultBranch(ctx context.Context, org, repo string) (string, error) {
	f.repos = append(f.repos, org+"/"+repo)
	return f.branch, f.err
}

func (f *fakeCI) LatestCommit(ctx context.Context, org, repo, branch string) (string, error) {
	return f.sha, nil
}

func (f *fakeCI) CheckRuns(ctx context.Context, org, repo, sha string) ([]models.CheckRun, error) {
	return f.runs, nil
}

func (f *fakeCI) UserExists(ctx context.Context, login string) (bool, error) {
	return f.users[login], nil
}

type fakeJournal struct {
	held    map[string]bool
	records []models.GradeRecord
}

func (j *fakeJournal) Lock(ctx context.Context, key string) (func(), error) {
	if j.held[key] {
		return nil, apperr.Conflict("busy")
	}
	j.held[key] = true
	return func() { delete(j.held, key) }, nil
}

func (j *fakeJournal) Record(ctx context.Context, rec models.GradeRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func newRoster(t *testing.T) *sheets.Spreadsheet {
	t.Helper()
	rows := [][]string{
		{"#", "Student", "GitHub", "01.01.2024", "15.01.2024"},
		{"", "", "", "LR1", "LR2"},
		{"1", "Ivanov Ivan Ivanovich", "ivanov-gh"},
		{"2", "Petrova Anna"},
		{"3", "Sidorov Petr", "sidorov-gh"},
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "4132"); err != nil {
		t.Fatalf("failed to rename sheet: %v", err)
	}
	if _, err := f.NewSheet("info"); err != nil {
		t.Fatalf("failed to add info sheet: %v", err)
	}
	for r, row := range rows {
		for c, value := range row {
			if value != "" {
				if err := f.SetCellStr("4132", sheets.CellName(c, r), value); err != nil {
					t.Fatalf("failed to set cell: %v", err)
				}
			}
		}
	}
	dir := t.TempDir()
	if err := f.SaveAs(filepath.Join(dir, "roster.xlsx")); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}

	backend, err := sheets.WorkbookOpener(dir)(context.Background(), "roster")
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	return sheets.New(backend)
}

func newCourse() *models.Course {
	return &models.Course{
		ID:                 1,
		ConfigName:         "os.yaml",
		GitHubOrganization: "os-labs",
		Spreadsheet:        "roster",
		InfoSheet:          "info",
		StudentNameColumn:  1,
		Timezone:           "UTC",
		Labs: []models.Lab{
			{ID: "lab1", ShortName: "LR1", GitHubPrefix: "lab1", Workflows: []string{"build", "test", "Autograding"}, PenaltyMax: intPtr(3)},
			{ID: "lab3", ShortName: "LR3", GitHubPrefix: "lab3"},
			{ID: "lab2", ShortName: "LR2", GitHubPrefix: "lab2"},
		},
	}
}

func successRuns(t *testing.T, completedAt string, names ...string) []models.CheckRun {
	at := mustTime(t, completedAt)
	runs := make([]models.CheckRun, 0, len(names))
	for _, name := range names {
		runs = append(runs, models.CheckRun{Name: name, Status: "completed", Conclusion: "success", CompletedAt: &at})
	}
	return runs
}

func newPipeline(t *testing.T, ci *fakeCI) (*Pipeline, *fakeJournal) {
	journal := &fakeJournal{held: map[string]bool{}}
	return &Pipeline{
		Course:  newCourse(),
		Sheet:   newRoster(t),
		CI:      ci,
		Journal: journal,
		Now:     func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) },
	}, journal
}

func cell(t *testing.T, p *Pipeline, col, row int) string {
	t.Helper()
	v, err := p.Sheet.ReadCell(context.Background(), "4132", col, row)
	if err != nil {
		t.Fatalf("failed to read cell: %v", err)
	}
	return v
}

func TestGroupsAndLabs(t *testing.T) {
	p, _ := newPipeline(t, &fakeCI{})
	ctx := context.Background()

	groups, err := p.Groups(ctx)
	if err != nil || !reflect.DeepEqual(groups, []string{"4132"}) {
		t.Errorf("unexpected groups %v (err=%v)", groups, err)
	}

	labs, err := p.Labs(ctx, "4132")
	if err != nil || !reflect.DeepEqual(labs, []string{"LR1", "LR2"}) {
		t.Errorf("unexpected labs %v (err=%v)", labs, err)
	}
	if _, err := p.Labs(ctx, "info"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected info sheet to be hidden, got %v", err)
	}
}

func TestGradeOnTime(t *testing.T) {
	ci := &fakeCI{branch: "main", sha: "abc", runs: successRuns(t, "2024-01-01T10:00:00Z", "build", "test", "Autograding")}
	p, journal := newPipeline(t, ci)

	result, err := p.Grade(context.Background(), "4132", "LR1", "ivanov-gh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mark != "vv" || result.Penalty != 0 || result.Repository != "os-labs/lab1-ivanov-gh" || result.CommitSHA != "abc" {
		t.Errorf("unexpected result %+v", result)
	}
	if got := cell(t, p, 3, 2); got != "vv" {
		t.Errorf("expected vv in the roster, got %q", got)
	}
	if len(journal.records) != 1 || journal.records[0].Mark != "vv" || journal.records[0].ID == "" {
		t.Errorf("expected one journal record, got %+v", journal.records)
	}
	if len(journal.held) != 0 {
		t.Errorf("expected lock to be released")
	}
}

func TestGradeLateAndWriteOnce(t *testing.T) {
	ci := &fakeCI{branch: "main", sha: "abc", runs: successRuns(t, "2024-01-15T23:59:59Z", "build", "test", "Autograding")}
	p, _ := newPipeline(t, ci)
	ctx := context.Background()

	result, err := p.Grade(ctx, "4132", "LR1", "ivanov-gh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mark != "vv-2" {
		t.Errorf("expected vv-2, got %q", result.Mark)
	}

	ci.runs = successRuns(t, "2024-01-01T00:00:00Z", "build", "test", "Autograding")
	if _, err := p.Grade(ctx, "4132", "LR1", "ivanov-gh"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict on regrade, got %v", err)
	}
	if got := cell(t, p, 3, 2); got != "vv-2" {
		t.Errorf("cell must keep the first mark, got %q", got)
	}
}

func TestGradeMissingJobs(t *testing.T) {
	ci := &fakeCI{branch: "main", sha: "abc", runs: successRuns(t, "2024-01-01T10:00:00Z", "build", "test")}
	p, journal := newPipeline(t, ci)

	_, err := p.Grade(context.Background(), "4132", "LR1", "ivanov-gh")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if msg := apperr.MessageOf(err); !strings.HasSuffix(msg, ": Autograding") {
		t.Errorf("expected only Autograding to be named, got %q", msg)
	}
	if got := cell(t, p, 3, 2); got != "" {
		t.Errorf("nothing must be written on failure, got %q", got)
	}
	if len(journal.records) != 0 {
		t.Errorf("nothing must be journaled on failure")
	}
}

func TestGradeDefaultWorkflows(t *testing.T) {
	ci := &fakeCI{branch: "main", sha: "abc", runs: successRuns(t, "2024-01-10T10:00:00Z", models.DefaultWorkflows...)}
	p, _ := newPipeline(t, ci)

	result, err := p.Grade(context.Background(), "4132", "LR2", "sidorov-gh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mark != "vv" {
		t.Errorf("expected vv before the 15.01 deadline, got %q", result.Mark)
	}
	if !reflect.DeepEqual(ci.repos, []string{"os-labs/lab2-sidorov-gh"}) {
		t.Errorf("unexpected repositories %v", ci.repos)
	}
	if got := cell(t, p, 4, 4); got != "vv" {
		t.Errorf("expected vv in E5, got %q", got)
	}
}

func TestGradeWithoutSuccessfulRun(t *testing.T) {
	failed := []models.CheckRun{
		{Name: "build", Status: "completed", Conclusion: "failure"},
		{Name: "test", Status: "completed", Conclusion: "failure"},
		{Name: "Autograding", Status: "in_progress"},
	}
	ci := &fakeCI{branch: "main", sha: "abc", runs: failed}
	p, _ := newPipeline(t, ci)
	ctx := context.Background()

	result, err := p.Grade(ctx, "4132", "LR1", "ivanov-gh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mark != "vv-3" {
		t.Errorf("expected capped penalty vv-3, got %q", result.Mark)
	}

	ci.runs = []models.CheckRun{
		{Name: "run-autograding-tests"}, {Name: "test"}, {Name: "build"}, {Name: "Autograding"},
	}
	if _, err := p.Grade(ctx, "4132", "LR2", "ivanov-gh"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation failure for an uncapped lab, got %v", err)
	}
}

func TestGradeLookupFailures(t *testing.T) {
	ci := &fakeCI{branch: "main", sha: "abc", runs: successRuns(t, "2024-01-01T10:00:00Z", "build", "test", "Autograding")}
	p, _ := newPipeline(t, ci)
	ctx := context.Background()

	tests := []struct {
		group, lab, login string
	}{
		{"9999", "LR1", "ivanov-gh"},
		{"info", "LR1", "ivanov-gh"},
		{"4132", "LR9", "ivanov-gh"},
		{"4132", "LR3", "ivanov-gh"},
		{"4132", "LR1", "stranger"},
	}
	for _, tt := range tests {
		if _, err := p.Grade(ctx, tt.group, tt.lab, tt.login); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Grade(%s, %s, %s): expected NotFound, got %v", tt.group, tt.lab, tt.login, err)
		}
	}

	ci.err = apperr.NotFound("repository not found")
	if _, err := p.Grade(ctx, "4132", "LR1", "ivanov-gh"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected CI failure to propagate, got %v", err)
	}
	if got := cell(t, p, 3, 2); got != "" {
		t.Errorf("nothing must be written on failure, got %q", got)
	}
}

func TestGradeLockHeld(t *testing.T) {
	ci := &fakeCI{branch: "main", sha: "abc", runs: successRuns(t, "2024-01-01T10:00:00Z", "build", "test", "Autograding")}
	p, journal := newPipeline(t, ci)
	journal.held[p.lockKey("4132", "grade", "LR1", "ivanov-gh")] = true

	if _, err := p.Grade(context.Background(), "4132", "LR1", "ivanov-gh"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict while another grading holds the lock, got %v", err)
	}
	if got := cell(t, p, 3, 2); got != "" {
		t.Errorf("nothing must be written while locked, got %q", got)
	}
}

func TestRegister(t *testing.T) {
	ci := &fakeCI{users: map[string]bool{"petrova": true, "other": true, "sidorov-gh": true}}
	p, _ := newPipeline(t, ci)
	ctx := context.Background()
	petrova := models.StudentName{Surname: "Petrova", Name: "Anna"}

	outcome, err := p.Register(ctx, "4132", petrova, "petrova")
	if err != nil || outcome != Registered {
		t.Fatalf("expected Registered, got %v (err=%v)", outcome, err)
	}
	if got := cell(t, p, 2, 3); got != "petrova" {
		t.Fatalf("expected login in C4, got %q", got)
	}

	outcome, err = p.Register(ctx, "4132", petrova, "petrova")
	if err != nil || outcome != AlreadyRegistered {
		t.Errorf("expected AlreadyRegistered on resubmission, got %v (err=%v)", outcome, err)
	}

	if _, err := p.Register(ctx, "4132", petrova, "other"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected Conflict for a different login, got %v", err)
	}
	if got := cell(t, p, 2, 3); got != "petrova" {
		t.Errorf("original login must be kept, got %q", got)
	}
}

func TestRegisterFailures(t *testing.T) {
	ci := &fakeCI{users: map[string]bool{"sidorov-gh": true, "someone": true}}
	p, _ := newPipeline(t, ci)
	ctx := context.Background()

	petrova := models.StudentName{Surname: "Petrova", Name: "Anna"}
	if _, err := p.Register(ctx, "4132", petrova, "ghost"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected NotFound for unknown GitHub user, got %v", err)
	}

	nobody := models.StudentName{Surname: "Nobody", Name: "Here"}
	if _, err := p.Register(ctx, "4132", nobody, "someone"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected NotFound for unknown student, got %v", err)
	}

	if _, err := p.Register(ctx, "4132", petrova, "sidorov-gh"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected Conflict for a login owned by another student, got %v", err)
	}
	if got := cell(t, p, 2, 3); got != "" {
		t.Errorf("cell must stay empty, got %q", got)
	}

	if _, err := p.Register(ctx, "9999", petrova, "someone"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected NotFound for unknown group, got %v", err)
	}
}
