package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/client"
	dom "taskboard/internal/domain"
)

func addCmd(g *globalFlags) *cobra.Command {
	var in client.NewTask
	var assignee int64
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := g.connect(ctx)
			if err != nil {
				return err
			}
			in.Title = strings.Join(args, " ")
			if assignee > 0 {
				in.AssigneeID = &assignee
			}
			t, err := c.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q [%s]\n", t.ID, t.Title, t.Status.Label())
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&in.Status, "status", "", "todo, in_progress or done")
	cmd.Flags().Int64VarP(&assignee, "assign", "a", 0, "assignee user id")
	return cmd
}

func moveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move [task-id] [status]",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := dom.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return g.patch(cmd, args[0], dom.TaskPatch{Status: &st})
		},
	}
}

func assignCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assign [task-id] [user-id|none]",
		Short: "Assign a task to a user, or clear it with none",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := &dom.Assignment{}
			if args[1] != "none" {
				id, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("user id: %w", err)
				}
				a.UserID = &id
			}
			return g.patch(cmd, args[0], dom.TaskPatch{AssignedTo: a})
		},
	}
}

func removeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [task-id]",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := g.connect(ctx)
			if err != nil {
				return err
			}
			id, err := resolveID(ctx, c, args[0])
			if err != nil {
				return err
			}
			if err := c.DeleteTask(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func registerCmd(g *globalFlags) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(g.server, nil)
			if err != nil {
				return err
			}
			res, err := c.Register(cmd.Context(), username, g.email, g.password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d)\ntoken: %s\n", res.User.Username, res.User.ID, res.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (g *globalFlags) patch(cmd *cobra.Command, idArg string, p dom.TaskPatch) error {
	ctx := cmd.Context()
	c, err := g.connect(ctx)
	if err != nil {
		return err
	}
	id, err := resolveID(ctx, c, idArg)
	if err != nil {
		return err
	}
	t, err := c.UpdateTask(ctx, id, p)
	if err != nil {
		return err
	}
	assignee := "unassigned"
	if t.AssignedTo != nil {
		assignee = "@" + t.AssignedTo.Username
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s %q [%s] %s\n", t.ID, t.Title, t.Status.Label(), assignee)
	return nil
}

// resolveID expands the short ids the board prints to a full task id.
func resolveID(ctx context.Context, c *client.Client, prefix string) (string, error) {
	tasks, _, err := c.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	return matchID(tasks, prefix)
}

func matchID(tasks []dom.Task, prefix string) (string, error) {
	for _, t := range tasks {
		if t.ID == prefix {
			return t.ID, nil
		}
	}
	var match string
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("task id %q is ambiguous", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task matches %q", prefix)
	}
	return match, nil
}
