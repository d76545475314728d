package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
	"gopkg.in/yaml.v3"
)

// Catalog is the directory of course config documents. Course ids are the
// 1-based positions of the files in name order. Nothing is cached.
type Catalog struct {
	Dir string
}

func (c Catalog) files() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list course configs in %s: %w", c.Dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// List loads every course and returns their summaries.
func (c Catalog) List() ([]models.CourseSummary, error) {
	names, err := c.files()
	if err != nil {
		return nil, err
	}

	courses := make([]models.CourseSummary, 0, len(names))
	for i, name := range names {
		course, err := c.load(i+1, name)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course.Summary())
	}
	return courses, nil
}

// Course loads the course with the given id.
func (c Catalog) Course(id int) (*models.Course, error) {
	names, err := c.files()
	if err != nil {
		return nil, err
	}
	if id < 1 || id > len(names) {
		return nil, apperr.NotFound("course %d not found", id)
	}
	return c.load(id, names[id-1])
}

func (c Catalog) load(id int, name string) (*models.Course, error) {
	doc, err := LoadDocument(filepath.Join(c.Dir, name))
	if err != nil {
		return nil, err
	}
	return CourseFromDocument(id, doc)
}

type courseDocument struct {
	Name     string `yaml:"name"`
	Semester string `yaml:"semester"`
	Email    string `yaml:"email"`
	Timezone string `yaml:"timezone"`
	GitHub   struct {
		Organization string `yaml:"organization"`
	} `yaml:"github"`
	Google struct {
		Spreadsheet       string `yaml:"spreadsheet"`
		InfoSheet         string `yaml:"info-sheet"`
		StudentNameColumn int    `yaml:"student-name-column"`
	} `yaml:"google"`
	Labs labList `yaml:"labs"`
}

type labDocument struct {
	ShortName    string `yaml:"short-name"`
	GitHubPrefix string `yaml:"github-prefix"`
	PenaltyMax   *int   `yaml:"penalty-max"`
	CI           struct {
		Workflows []string `yaml:"workflows"`
	} `yaml:"ci"`
}

// labList keeps labs in document order.
type labList []models.Lab

func (l *labList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: labs must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value

		var lab labDocument
		if err := node.Content[i+1].Decode(&lab); err != nil {
			return fmt.Errorf("lab %q: %w", id, err)
		}
		if lab.ShortName == "" {
			return fmt.Errorf("lab %q: short-name is required", id)
		}
		if lab.GitHubPrefix == "" {
			return fmt.Errorf("lab %q: github-prefix is required", id)
		}
		*l = append(*l, models.Lab{
			ID:           id,
			ShortName:    lab.ShortName,
			GitHubPrefix: lab.GitHubPrefix,
			Workflows:    lab.CI.Workflows,
			PenaltyMax:   lab.PenaltyMax,
		})
	}
	return nil
}

// CourseFromDocument validates a course document into a typed course.
func CourseFromDocument(id int, doc *Document) (*models.Course, error) {
	var cd courseDocument
	ok, err := doc.Decode("course", &cd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: missing top-level course section", doc.Name())
	}
	if cd.GitHub.Organization == "" {
		return nil, fmt.Errorf("%s: course.github.organization is required", doc.Name())
	}
	if cd.Google.Spreadsheet == "" {
		return nil, fmt.Errorf("%s: course.google.spreadsheet is required", doc.Name())
	}
	if cd.Timezone == "" {
		cd.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cd.Timezone); err != nil {
		return nil, fmt.Errorf("%s: invalid course.timezone: %w", doc.Name(), err)
	}

	return &models.Course{
		ID:                 id,
		ConfigName:         doc.Name(),
		Name:               cd.Name,
		Semester:           cd.Semester,
		Email:              cd.Email,
		GitHubOrganization: cd.GitHub.Organization,
		Spreadsheet:        cd.Google.Spreadsheet,
		InfoSheet:          cd.Google.InfoSheet,
		StudentNameColumn:  cd.Google.StudentNameColumn,
		Timezone:           cd.Timezone,
		Labs:               cd.Labs,
	}, nil
}
