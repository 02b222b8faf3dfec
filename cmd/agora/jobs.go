// ABOUTME: Job queue CLI commands
// ABOUTME: Implements job list, a one-shot run and a long-running worker

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and run scheduled jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE:  runJobsList,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every job that is due now, once",
	RunE:  runJobsRun,
}

var jobsWorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Run due jobs on the configured schedule until interrupted",
	RunE:  runJobsWork,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsRunCmd, jobsWorkCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	list, err := queue.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No scheduled jobs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKEY\tRUN AT\tATTEMPTS")
	for _, j := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", j.Name, j.Key, j.RunAt.Local().Format("2006-01-02 15:04:05"), j.Attempts)
	}
	return w.Flush()
}

func runJobsRun(cmd *cobra.Command, args []string) error {
	n, err := newRunner().RunDue(cmd.Context())
	if err != nil {
		return err
	}
	color.Green("Ran %d jobs", n)
	return nil
}

func runJobsWork(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := newRunner()
	if err := runner.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Working on schedule %s; Ctrl-C to stop\n", cfg.GetJobSchedule())
	<-ctx.Done()
	runner.Stop()
	return nil
}
