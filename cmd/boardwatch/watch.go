package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"taskboard/internal/client"
	dom "taskboard/internal/domain"
	"taskboard/internal/reconcile"
)

func watchCmd(g *globalFlags) *cobra.Command {
	var noClear bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the board live, reconnecting when the push channel drops",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := g.connect(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			members := newMemberCache(c)

			var mu sync.Mutex
			w := c.NewWatcher(reconcile.NewView(), client.WatchOptions{
				Logger: slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)),
				OnChange: func(v *reconcile.View) {
					mu.Lock()
					defer mu.Unlock()
					if !noClear {
						fmt.Fprint(out, "\033[H\033[2J")
					}
					tasks := v.Tasks()
					renderBoard(out, tasks)
					renderWorkload(out, v.Workload(members.get(ctx, tasks)))
				},
			})
			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "append frames instead of redrawing the screen")
	return cmd
}

func listCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the board once with team workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := g.connect(ctx)
			if err != nil {
				return err
			}
			tasks, _, err := c.ListTasks(ctx)
			if err != nil {
				return err
			}
			users, err := c.ListUsers(ctx)
			if err != nil {
				return err
			}
			v := reconcile.NewView()
			v.Load(tasks)
			printSnapshot(cmd.OutOrStdout(), v, users)
			return nil
		},
	}
}

func printSnapshot(out io.Writer, v *reconcile.View, users []dom.UserRef) {
	renderBoard(out, v.Tasks())
	renderWorkload(out, v.Workload(users))
}

// memberCache refetches the user list only when an unknown assignee shows up.
type memberCache struct {
	c     *client.Client
	known map[int64]bool
	list  []dom.UserRef
}

func newMemberCache(c *client.Client) *memberCache {
	return &memberCache{c: c, known: map[int64]bool{}}
}

func (m *memberCache) get(ctx context.Context, tasks []dom.Task) []dom.UserRef {
	stale := m.list == nil
	for _, t := range tasks {
		if t.AssignedTo != nil && !m.known[t.AssignedTo.ID] {
			stale = true
			break
		}
	}
	if !stale {
		return m.list
	}
	users, err := m.c.ListUsers(ctx)
	if err != nil {
		return m.list
	}
	m.list = users
	m.known = make(map[int64]bool, len(users))
	for _, u := range users {
		m.known[u.ID] = true
	}
	return m.list
}
