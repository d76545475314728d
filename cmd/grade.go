package cmd

import (
	"fmt"
	"strconv"

	"github.com/CMPEQ0/lab-mark-api/grading"
	"github.com/CMPEQ0/lab-mark-api/models"
	"github.com/CMPEQ0/lab-mark-api/sheets"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
)

var gradeCmd = &cobra.Command{
	Use:   "grade COURSE_ID GROUP LAB GITHUB_LOGIN",
	Short: "Grade one lab submission and write the mark",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := newPipeline(cmd, args[0])
		if err != nil {
			return err
		}

		var result *models.GradeResult
		_ = spinner.New().
			Title(fmt.Sprintf("Checking %s for %s...", args[2], args[3])).
			Action(func() {
				result, err = p.Grade(ctx, args[1], args[2], args[3])
			}).
			Run()
		if err != nil {
			return err
		}

		fmt.Printf("Repository: %s @ %s\n", result.Repository, result.CommitSHA)
		fmt.Printf("Deadline:   %s\n", result.Deadline.Format("02.01.2006 15:04:05 MST"))
		if !result.CompletedAt.IsZero() {
			fmt.Printf("Completed:  %s\n", result.CompletedAt.Format("02.01.2006 15:04:05 MST"))
		}
		fmt.Printf("Penalty:    %d\n", result.Penalty)
		fmt.Printf("Mark:       %s\n", result.Mark)
		return nil
	},
}

// newPipeline loads a course and opens its spreadsheet for one command run.
func newPipeline(cmd *cobra.Command, courseArg string) (*grading.Pipeline, error) {
	id, err := parseCourseID(courseArg)
	if err != nil {
		return nil, err
	}
	course, err := cfg.Catalog().Course(id)
	if err != nil {
		return nil, err
	}
	backend, err := spreadsheetOpener()(cmd.Context(), course.Spreadsheet)
	if err != nil {
		return nil, err
	}

	p := &grading.Pipeline{Course: course, Sheet: sheets.New(backend), CI: githubClient()}
	redis, err := redisService(cmd.Context())
	if err != nil {
		return nil, err
	}
	if redis != nil {
		cobra.OnFinalize(func() { redis.Client.Close() })
		p.Journal = redis.Journal(course.Spreadsheet)
	}
	return p, nil
}

func parseCourseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("course id must be a number: %q", arg)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(gradeCmd)
}
