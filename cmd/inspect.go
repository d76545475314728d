package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/CMPEQ0/lab-mark-api/grading"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect COURSE_ID LAB GITHUB_LOGIN",
	Short: "Show the CI state of a student's lab repository",
	Long: `inspect lists the Actions workflows of the repository with their latest
run, and the check runs on the head of the default branch, next to the jobs
the lab requires.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		course, err := cfg.Catalog().Course(id)
		if err != nil {
			return err
		}
		lab, ok := course.LabByShortName(args[1])
		if !ok {
			return fmt.Errorf("lab %s is not configured for %s", args[1], course.ConfigName)
		}

		gh := githubClient()
		org, repo := course.GitHubOrganization, lab.RepoName(args[2])

		workflows, err := gh.RepoWorkflows(ctx, org, repo)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "WORKFLOW\tSTATE\tLAST RUN\tSTATUS\tCONCLUSION\n")
		for _, wf := range workflows {
			runs, err := gh.WorkflowRuns(ctx, org, repo, wf.ID)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", wf.Name, wf.State)
				continue
			}
			last := runs[0]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", wf.Name, wf.State, last.UpdatedAt.Format("02.01.2006 15:04"), last.Status, last.Conclusion)
		}
		w.Flush()

		branch, err := gh.DefaultBranch(ctx, org, repo)
		if err != nil {
			return err
		}
		sha, err := gh.LatestCommit(ctx, org, repo, branch)
		if err != nil {
			return err
		}
		checks, err := gh.CheckRuns(ctx, org, repo, sha)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s/%s %s@%s\n", org, repo, branch, sha)
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "CHECK\tSTATUS\tCONCLUSION\tCOMPLETED\n")
		for _, c := range checks {
			completed := "-"
			if c.CompletedAt != nil {
				completed = c.CompletedAt.Format("02.01.2006 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Status, c.Conclusion, completed)
		}
		w.Flush()

		for _, name := range grading.MissingJobs(checks, lab.RequiredWorkflows()) {
			fmt.Printf("missing required check: %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
