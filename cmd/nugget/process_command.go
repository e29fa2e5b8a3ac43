package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nugget/internal/batch"
)

// newProcessCommand is the single-video convenience wrapper: it creates a
// one-item job and runs it to completion.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	flags := &jobFlags{}
	cmd := &cobra.Command{
		Use:   "process <reference>",
		Short: "Process a single video reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(true, func(env *environment) error {
				name := flags.name
				if name == "" {
					name = fmt.Sprintf("process %s", truncate(args[0], 60))
				}
				job, err := env.manager.CreateJob(cmd.Context(), batch.CreateRequest{
					Name:   name,
					Items:  args,
					Config: flags.buildConfig(cmd, env),
				})
				if err != nil {
					return err
				}
				return startAndWait(cmd, env, job.ID)
			})
		},
	}
	flags.register(cmd)
	// --file and --playlist only make sense for batch jobs.
	_ = cmd.Flags().MarkHidden("file")
	_ = cmd.Flags().MarkHidden("playlist")
	return cmd
}
