package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/dashsync/internal/actions"
	"github.com/five82/dashsync/internal/app"
	"github.com/five82/dashsync/internal/dashboard"
)

type globalFlags struct {
	configPath  string
	pollSeconds int
}

func (g *globalFlags) options() app.Options {
	return app.Options{ConfigPath: g.configPath, PollEvery: g.pollSeconds}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "dashsync",
		Short:         "Keep a live copy of a dashboard server's status",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), flags.options())
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default ~/.config/dashsync/config.toml)")
	root.PersistentFlags().IntVar(&flags.pollSeconds, "poll", 0, "poll interval in seconds (overrides config)")

	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the interactive dashboard",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.Run(cmd.Context(), flags.options())
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print one line per status change",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.Watch(cmd.Context(), flags.options(), cmd.OutOrStdout())
			},
		},
		newFetchCmd(flags),
		newActionCmd(flags),
		newTodoCmd(flags),
	)
	return root
}

func newFetchCmd(flags *globalFlags) *cobra.Command {
	var light bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the status document once and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(flags, func(rt *app.Runtime) error {
				snap, err := rt.Poller.Fetch(cmd.Context(), light)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
	cmd.Flags().BoolVar(&light, "light", false, "omit expensive fields")
	return cmd
}

func newActionCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Run a server action",
	}
	simple := func(use, short string, call func(*actions.Runner, context.Context) (string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAction(cmd, flags, func(r *actions.Runner) (string, error) {
					return call(r, cmd.Context())
				})
			},
		}
	}
	cmd.AddCommand(
		simple("restart", "Restart the gateway", (*actions.Runner).Restart),
		simple("backup", "Create a backup", (*actions.Runner).Backup),
		simple("clear-logs", "Clear the server logs", (*actions.Runner).ClearLogs),
	)
	return cmd
}

func newTodoCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage todos",
	}

	var req dashboard.TodoRequest
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = args[0]
			return runAction(cmd, flags, func(r *actions.Runner) (string, error) {
				return r.AddTodo(cmd.Context(), req)
			})
		},
	}
	add.Flags().StringVar(&req.ListName, "list", "", "list name")
	add.Flags().StringVar(&req.DueDate, "due", "", "due date (YYYY-MM-DD)")

	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a todo done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, flags, func(r *actions.Runner) (string, error) {
				return r.CompleteTodo(cmd.Context(), args[0])
			})
		},
	}

	reopen := &cobra.Command{
		Use:   "reopen <id>",
		Short: "Move a completed task back to the todo list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, flags, func(r *actions.Runner) (string, error) {
				return r.ReopenTask(cmd.Context(), args[0])
			})
		},
	}

	history := &cobra.Command{
		Use:   "history",
		Short: "Print completed tasks as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(flags, func(rt *app.Runtime) error {
				items, err := oneShotRunner(rt).History(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}

	cmd.AddCommand(add, complete, reopen, history)
	return cmd
}

func withRuntime(flags *globalFlags, fn func(*app.Runtime) error) error {
	rt, err := app.Build(flags.options())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// oneShotRunner runs actions without a synchronizer to refresh afterwards.
func oneShotRunner(rt *app.Runtime) *actions.Runner {
	return &actions.Runner{
		API:         rt.Client,
		Credentials: rt.Credentials,
		Logger:      rt.Logger,
	}
}

func runAction(cmd *cobra.Command, flags *globalFlags, fn func(*actions.Runner) (string, error)) error {
	return withRuntime(flags, func(rt *app.Runtime) error {
		msg, err := fn(oneShotRunner(rt))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
