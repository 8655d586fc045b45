package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/securechat-client/internal/api"
)

// The commands below are thin request/response glue over the backend's
// CRUD surface; none of them touch the realtime pipeline.

var announcementsCmd = &cobra.Command{
	Use:   "announcements",
	Short: "List announcements",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, cancel, err := apiContext()
		if err != nil {
			return err
		}
		defer cancel()

		items, err := client.Announcements(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no announcements")
			return nil
		}
		for _, a := range items {
			fmt.Printf("%s [%s] %s\n    %s\n", clockTime(a.CreatedAt), a.Author, a.Title, a.Content)
		}
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, cancel, err := apiContext()
		if err != nil {
			return err
		}
		defer cancel()

		items, err := client.Tasks(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no tasks")
			return nil
		}
		for _, t := range items {
			assignee := t.Assignee
			if assignee == "" {
				assignee = "-"
			}
			fmt.Printf("#%d  %-10s %-12s %s\n", t.ID, t.Status, assignee, t.Title)
		}
		return nil
	},
}

var whoCmd = &cobra.Command{
	Use:   "who",
	Short: "Show the server's user registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, cancel, err := apiContext()
		if err != nil {
			return err
		}
		defer cancel()

		users, err := client.Users(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			name := u.DisplayName
			if name == "" {
				name = u.UserID
			}
			fmt.Printf("%-20s %-8s %s\n", name, u.Status, u.LastSeen)
		}
		return nil
	},
}

func apiContext() (*api.Client, context.Context, context.CancelFunc, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	return api.NewClient(cfg.APIBase, logger), ctx, cancel, nil
}
