package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	dom "taskboard/internal/domain"
	"taskboard/internal/reconcile"
)

func renderBoard(w io.Writer, tasks []dom.Task) {
	byStatus := make(map[dom.TaskStatus][]dom.Task, len(dom.Statuses))
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	for _, st := range dom.Statuses {
		col := byStatus[st]
		fmt.Fprintf(w, "%s (%d)\n", st.Label(), len(col))
		fmt.Fprintln(w, strings.Repeat("-", 40))
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, t := range col {
			assignee := "-"
			if t.AssignedTo != nil {
				assignee = "@" + t.AssignedTo.Username
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", shortID(t.ID), t.Title, assignee)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}
}

func renderWorkload(w io.Writer, wl reconcile.Workload) {
	fmt.Fprintln(w, "Team Task Load")
	fmt.Fprintln(w, strings.Repeat("=", 40))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Unassigned\t%d\n", wl.Unassigned)
	for _, m := range wl.Members {
		flag := ""
		if m.Overloaded() {
			flag = "  overloaded"
		}
		fmt.Fprintf(tw, "  %s\t%d%s\n", m.User.Username, m.Tasks, flag)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
