package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rescuehub/errs"
	"rescuehub/models"
	"rescuehub/services"
)

func parseID(s, what string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, errs.Newf(errs.Validation, "invalid %s %q", what, s)
	}
	return uint(n), nil
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Browse and post rescue tasks",
	}
	cmd.AddCommand(tasksListCmd(), tasksGetCmd(), tasksCreateCmd())
	return cmd
}

func tasksListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first (served from cache while offline)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.connect(ctx)
				tasks, fromCache, err := a.coordinator.ListTasks(ctx, models.TaskStatus(status))
				if err != nil {
					return err
				}
				return printTasks(cmd, tasks, fromCache)
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (open, claimed, completed, cancelled)")
	return cmd
}

func tasksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show a task with its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireOnline(ctx); err != nil {
					return err
				}
				task, err := a.api.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printTask(cmd, task)
			})
		},
	}
}

func tasksCreateCmd() *cobra.Command {
	var (
		p          services.CreateTaskParams
		taskType   string
		location   string
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a new task (requires a connection)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.TaskType = models.TaskType(taskType)
			if location != "" {
				p.Location = &location
			}
			var err error
			if p.StartTime, err = parseTime(start, "start"); err != nil {
				return err
			}
			if p.EndTime, err = parseTime(end, "end"); err != nil {
				return err
			}
			if cmd.Flags().Changed("lat") {
				lat, _ := cmd.Flags().GetFloat64("lat")
				p.Latitude = &lat
			}
			if cmd.Flags().Changed("lng") {
				lng, _ := cmd.Flags().GetFloat64("lng")
				p.Longitude = &lng
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireOnline(ctx); err != nil {
					return err
				}
				task, err := a.api.CreateTask(ctx, p)
				if err != nil {
					return err
				}
				return printTask(cmd, task)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Title, "title", "", "task title")
	f.StringVar(&taskType, "type", "", "rescue, transport, feeding, medical, foster or other")
	f.StringVar(&p.Description, "description", "", "details for volunteers")
	f.StringVar(&location, "location", "", "where the task takes place")
	f.Float64("lat", 0, "latitude")
	f.Float64("lng", 0, "longitude")
	f.StringVar(&start, "start", "", "window start (RFC3339)")
	f.StringVar(&end, "end", "", "window end (RFC3339)")
	f.IntVar(&p.MaxAssignees, "max", 1, "volunteers needed")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func parseTime(s, what string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errs.Newf(errs.Validation, "invalid %s time %q, want RFC3339", what, s)
	}
	return &t, nil
}

func claimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Apply for, approve and complete claims",
	}
	cmd.AddCommand(claimApplyCmd(), claimApproveCmd(), claimCompleteCmd(), claimMineCmd())
	return cmd
}

func claimApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <task-id>",
		Short: "Apply to help with a task (queued while offline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				uid, err := a.userID()
				if err != nil {
					return err
				}
				a.connect(ctx)
				out, err := a.coordinator.ApplyClaim(ctx, id, uid)
				if err != nil {
					return err
				}
				return printOutcome(cmd, out)
			})
		},
	}
}

func claimApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <task-id> <user-id>",
		Short: "Approve a volunteer's pending claim on your task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}
			applicant, err := parseID(args[1], "user id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireOnline(ctx); err != nil {
					return err
				}
				task, err := a.api.ApproveClaim(ctx, taskID, applicant)
				if err != nil {
					return err
				}
				return printTask(cmd, task)
			})
		},
	}
}

func claimCompleteCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark your approved claim done (queued while offline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				uid, err := a.userID()
				if err != nil {
					return err
				}
				a.connect(ctx)
				out, err := a.coordinator.CompleteClaim(ctx, id, uid, note)
				if err != nil {
					return err
				}
				return printOutcome(cmd, out)
			})
		},
	}
	cmd.Flags().StringVarP(&note, "note", "n", "", "completion note")
	return cmd
}

func claimMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireOnline(ctx); err != nil {
					return err
				}
				claims, err := a.api.MyClaims(ctx)
				if err != nil {
					return err
				}
				return printClaims(cmd, claims)
			})
		},
	}
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Creator actions on a task",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel your task (queued while offline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				uid, err := a.userID()
				if err != nil {
					return err
				}
				a.connect(ctx)
				out, err := a.coordinator.CancelTask(ctx, id, uid)
				if err != nil {
					return err
				}
				return printOutcome(cmd, out)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force-complete <task-id>",
		Short: "Close a claimed task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireOnline(ctx); err != nil {
					return err
				}
				task, err := a.api.CreatorForceComplete(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "task closed")
				return printTask(cmd, task)
			})
		},
	})
	return cmd
}
