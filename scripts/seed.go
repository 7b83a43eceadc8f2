// Seeds a running server with demo users and tasks: go run scripts/seed.go [base-url]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"taskboard/internal/client"
)

type demoUser struct {
	name, email string
}

var users = []demoUser{
	{"alice", "alice@example.com"},
	{"bob", "bob@example.com"},
	{"carol", "carol@example.com"},
}

var tasks = []client.NewTask{
	{Title: "Write spec", Description: "Board sync design"},
	{Title: "Wire push channel", Status: "In Progress"},
	{Title: "Ship CLI", Status: "done"},
	{Title: "Triage inbox"},
}

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}
	if err := seed(base, "password"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seed(base, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var ids []int64
	var c *client.Client
	for _, u := range users {
		uc, err := client.New(base, nil)
		if err != nil {
			return err
		}
		res, err := uc.Register(ctx, u.name, u.email, password)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 409 {
			res, err = uc.Login(ctx, u.email, password)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", u.email, err)
		}
		ids = append(ids, res.User.ID)
		if c == nil {
			c = uc
		}
	}

	for i, in := range tasks {
		if i < len(ids) {
			id := ids[i]
			in.AssigneeID = &id
		}
		t, err := c.CreateTask(ctx, in)
		if err != nil {
			return fmt.Errorf("create %q: %w", in.Title, err)
		}
		fmt.Printf("%s\t%s\n", t.ID, t.Title)
	}
	return nil
}
