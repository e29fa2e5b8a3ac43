package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nugget/internal/batch"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Create and run batch jobs",
	}

	batchCmd.AddCommand(newBatchCreateCommand(ctx))
	batchCmd.AddCommand(newBatchStartCommand(ctx))
	batchCmd.AddCommand(newBatchRunCommand(ctx))
	batchCmd.AddCommand(newBatchStatusCommand(ctx))
	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchCancelCommand(ctx))
	batchCmd.AddCommand(newBatchPauseCommand(ctx))
	batchCmd.AddCommand(newBatchResumeCommand(ctx))
	batchCmd.AddCommand(newBatchDeleteCommand(ctx))
	batchCmd.AddCommand(newBatchReportCommand(ctx))

	return batchCmd
}

// jobFlags collects the per-job configuration overrides shared by create and
// run.
type jobFlags struct {
	name        string
	file        string
	playlist    string
	concurrency int
	retryFailed bool
	maxRetries  uint
	duration    float64
	overlap     float64
	transcript  bool
	analysis    bool
	social      bool
	formats     []string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Job name (required)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "File with one video reference per line")
	cmd.Flags().StringVar(&f.playlist, "playlist", "", "Expand a playlist reference into job items")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Concurrent items (defaults from config)")
	cmd.Flags().BoolVar(&f.retryFailed, "retry", false, "Retry failed items")
	cmd.Flags().UintVar(&f.maxRetries, "max-retries", 0, "Retries per item when --retry is set")
	cmd.Flags().Float64Var(&f.duration, "nugget-duration", 0, "Nugget length in seconds")
	cmd.Flags().Float64Var(&f.overlap, "overlap", -1, "Overlap between nuggets in seconds")
	cmd.Flags().BoolVar(&f.transcript, "transcript", false, "Enable transcription")
	cmd.Flags().BoolVar(&f.analysis, "analysis", false, "Enable AI content analysis")
	cmd.Flags().BoolVar(&f.social, "social", false, "Export social media posts")
	cmd.Flags().StringSliceVar(&f.formats, "formats", nil, "Export formats (json, csv, markdown)")
}

func (f *jobFlags) buildConfig(cmd *cobra.Command, env *environment) batch.Config {
	cfg := batch.DefaultJobConfig(env.cfg)
	if f.concurrency > 0 {
		cfg.Concurrency = f.concurrency
	}
	if cmd.Flags().Changed("retry") {
		cfg.RetryFailed = f.retryFailed
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if f.duration > 0 {
		cfg.NuggetDuration = f.duration
	}
	if f.overlap >= 0 {
		cfg.OverlapDuration = f.overlap
	}
	if cmd.Flags().Changed("transcript") {
		cfg.EnableTranscript = f.transcript
	}
	if cmd.Flags().Changed("analysis") {
		cfg.EnableAnalysis = f.analysis
	}
	if cmd.Flags().Changed("social") {
		cfg.EnableSocialExport = f.social
	}
	if len(f.formats) > 0 {
		cfg.ExportFormats = f.formats
	}
	return cfg
}

func (f *jobFlags) collectItems(args []string) ([]string, error) {
	items := append([]string(nil), args...)
	if f.file != "" {
		fromFile, err := readItemsFile(f.file)
		if err != nil {
			return nil, err
		}
		items = append(items, fromFile...)
	}
	return items, nil
}

func readItemsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open items file: %w", err)
	}
	defer file.Close()

	var items []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}
	return items, nil
}

func (f *jobFlags) createJob(cmd *cobra.Command, env *environment, args []string) (*batch.Job, error) {
	jobConfig := f.buildConfig(cmd, env)
	if f.playlist != "" {
		if len(args) > 0 || f.file != "" {
			return nil, errors.New("--playlist cannot be combined with explicit items")
		}
		return env.manager.CreateJobFromPlaylist(cmd.Context(), f.name, f.playlist, jobConfig)
	}
	items, err := f.collectItems(args)
	if err != nil {
		return nil, err
	}
	return env.manager.CreateJob(cmd.Context(), batch.CreateRequest{
		Name:   f.name,
		Items:  items,
		Config: jobConfig,
	})
}

func newBatchCreateCommand(ctx *commandContext) *cobra.Command {
	flags := &jobFlags{}
	cmd := &cobra.Command{
		Use:   "create [references...]",
		Short: "Create a pending batch job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				job, err := flags.createJob(cmd, env, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created job %s (%s) with %d items\n", job.ID, job.Name, len(job.Items))
				fmt.Fprintf(cmd.OutOrStdout(), "Start it with: nugget batch start %s\n", job.ID)
				return nil
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newBatchStartCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <job-id>",
		Short: "Start a pending job and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(true, func(env *environment) error {
				return startAndWait(cmd, env, args[0])
			})
		},
	}
	return cmd
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	flags := &jobFlags{}
	cmd := &cobra.Command{
		Use:   "run [references...]",
		Short: "Create a job and run it to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(true, func(env *environment) error {
				job, err := flags.createJob(cmd, env, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created job %s (%s) with %d items\n", job.ID, job.Name, len(job.Items))
				return startAndWait(cmd, env, job.ID)
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// startAndWait starts the job, renders progress until it finishes, and
// requests cooperative cancellation on the first interrupt signal.
func startAndWait(cmd *cobra.Command, env *environment, jobID string) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.manager.StartJob(runCtx, jobID); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	done := make(chan error, 1)
	go func() {
		done <- env.manager.WaitJob(context.Background(), jobID)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	interrupted := runCtx.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(out, "\nCancelling... in-flight items will finish their current stage")
			if err := env.manager.CancelJob(context.Background(), jobID); err != nil {
				return err
			}
		case <-ticker.C:
			if job, err := env.manager.GetJobStatus(context.Background(), jobID); err == nil && job != nil {
				fmt.Fprint(out, "\r"+progressLine(job))
			}
		case err := <-done:
			if err != nil {
				return err
			}
			job, err := env.manager.GetJobStatus(context.Background(), jobID)
			if err != nil {
				return err
			}
			if job == nil {
				return fmt.Errorf("job %s disappeared", jobID)
			}
			fmt.Fprintln(out, "\r"+progressLine(job))
			fmt.Fprintf(out, "Job %s %s: %d processed, %d failed, %d total\n",
				job.ID, job.Status, job.Progress.Processed, job.Progress.Failed, job.Progress.Total)
			if job.Status == batch.StatusFailed {
				return fmt.Errorf("job %s failed", job.ID)
			}
			return nil
		}
	}
}

func progressLine(job *batch.Job) string {
	line := fmt.Sprintf("[%s] %5.1f%% (%d/%d done, %d failed)",
		job.Status, job.Progress.Percentage,
		job.Progress.Processed, job.Progress.Total, job.Progress.Failed)
	if job.Progress.CurrentItem != "" {
		line += " " + truncate(job.Progress.CurrentItem, 40)
	}
	if job.Progress.ETASeconds != nil {
		line += fmt.Sprintf(" eta %s", (time.Duration(*job.Progress.ETASeconds) * time.Second).Round(time.Second))
	}
	return line
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func newBatchStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show one job's progress and item results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				job, err := env.manager.GetJobStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				printJobStatus(cmd, job)
				return nil
			})
		},
	}
}

func printJobStatus(cmd *cobra.Command, job *batch.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Name:     %s\n", job.Name)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Progress: %.1f%% (%d processed, %d failed of %d)\n",
		job.Progress.Percentage, job.Progress.Processed, job.Progress.Failed, job.Progress.Total)
	if job.Progress.CurrentItem != "" {
		fmt.Fprintf(out, "Current:  %s\n", job.Progress.CurrentItem)
	}
	if job.Progress.ETASeconds != nil {
		fmt.Fprintf(out, "ETA:      %s\n", (time.Duration(*job.Progress.ETASeconds) * time.Second).Round(time.Second))
	}

	rows := make([][]string, 0, len(job.Results))
	for _, result := range job.Results {
		detail := result.ErrorMessage
		if result.Status == batch.ItemSuccess {
			detail = fmt.Sprintf("%d nuggets", len(result.Nuggets))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", result.Position+1),
			truncate(result.Reference, 50),
			string(result.Status),
			fmt.Sprintf("%d", result.Attempts),
			truncate(detail, 40),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Reference", "Status", "Attempts", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				jobs, err := env.manager.ListJobs(cmd.Context())
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						truncate(job.Name, 30),
						string(job.Status),
						fmt.Sprintf("%d", job.Progress.Total),
						fmt.Sprintf("%.0f%%", job.Progress.Percentage),
						job.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Status", "Items", "Done", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newBatchCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cooperative cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				if err := env.manager.CancelJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <job-id>",
		Short: "Pause item admission for a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				if err := env.manager.PauseJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused job %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Resume a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				if err := env.manager.ResumeJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed job %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				if err := env.manager.DeleteJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchReportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "report <job-id>",
		Short: "Write a markdown report for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(false, func(env *environment) error {
				job, err := env.manager.GetJobStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				report := batch.Report(job)
				if outputPath == "" {
					fmt.Fprint(cmd.OutOrStdout(), report)
					return nil
				}
				if err := os.WriteFile(outputPath, []byte(report), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote report to %s\n", outputPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}
