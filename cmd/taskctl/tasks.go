package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	v1 "github.com/fyrsmithlabs/taskd/pkg/api/v1"
	"github.com/fyrsmithlabs/taskd/pkg/client"
)

func (a *app) listCmd() *cobra.Command {
	var p client.ListParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your tasks",
		Long: `List your tasks, incomplete first.

Examples:
  taskctl list
  taskctl list --search milk
  taskctl list --sort priority
  taskctl list --order-by dueDate --order asc --page 1 --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			page, err := a.client.ListTasks(ctx, p)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), page); ok {
				return err
			}
			writeTasks(cmd.OutOrStdout(), page.Items)
			pages := (page.Total + page.Limit - 1) / max(page.Limit, 1)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d task(s), page %d of %d\n", page.Total, page.Page+1, max(pages, 1))
			return nil
		},
	}
	cmd.Flags().IntVar(&p.Page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&p.Limit, "limit", 0, "tasks per page (server default 10, max 100)")
	cmd.Flags().StringVar(&p.Search, "search", "", "only tasks whose title or description contains this text")
	cmd.Flags().StringVar(&p.SortOption, "sort", "", "date or priority")
	cmd.Flags().StringVar(&p.OrderBy, "order-by", "", "createdAt, updatedAt, title, dueDate or priority")
	cmd.Flags().StringVar(&p.Order, "order", "", "asc or desc")
	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	doneStyle   = cellStyle.Foreground(lipgloss.Color("245")).Strikethrough(true)

	priorityColors = map[string]lipgloss.Color{
		"high":   lipgloss.Color("196"),
		"medium": lipgloss.Color("226"),
		"low":    lipgloss.Color("46"),
	}
)

const priorityCol = 2

func writeTasks(w io.Writer, tasks []v1.Task) {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{t.ID, doneMark(t.Completed), t.Priority, formatDue(t.DueDate), t.Title})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers("ID", "DONE", "PRIORITY", "DUE", "TITLE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(tasks) {
				return cellStyle
			}
			if tasks[row].Completed {
				return doneStyle
			}
			if col == priorityCol {
				if c, ok := priorityColors[tasks[row].Priority]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl.String())
}

func doneMark(done bool) string {
	if done {
		return "x"
	}
	return ""
}

func formatDue(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Format("2006-01-02")
}

func (a *app) printTask(cmd *cobra.Command, t *v1.Task) error {
	if ok, err := a.printJSON(cmd.OutOrStdout(), t); ok {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:          %s\n", t.ID)
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(w, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(w, "Completed:   %t\n", t.Completed)
	fmt.Fprintf(w, "Due:         %s\n", formatDue(t.DueDate))
	fmt.Fprintf(w, "Created:     %s\n", t.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:     %s\n", t.UpdatedAt.Local().Format(time.RFC3339))
	return nil
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			t, err := a.client.GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printTask(cmd, t)
		},
	}
}

// parseDue accepts a date (2006-01-02, midnight UTC) or an RFC 3339 time.
func parseDue(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return &d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return &d, nil
}

func (a *app) addCmd() *cobra.Command {
	var req v1.CreateTaskRequest
	var due string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")
			if due != "" {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				req.DueDate = d
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			t, err := a.client.CreateTask(ctx, req)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), t); ok {
				return err
			}
			cmd.Printf("Added %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&req.Priority, "priority", "p", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var title, description, priority, due string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Long: `Change fields of a task. Only the flags you pass are sent.

Examples:
  taskctl edit 3f2c... --title "Buy oat milk"
  taskctl edit 3f2c... --priority low --due 2026-04-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req v1.UpdateTaskRequest
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("priority") {
				req.Priority = &priority
			}
			if flags.Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				req.DueDate = d
			}
			if req == (v1.UpdateTaskRequest{}) {
				return fmt.Errorf("nothing to change: pass --title, --description, --priority or --due")
			}
			return a.update(cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	return cmd
}

// doneCmd builds "done" or, with completed false, "undone".
func (a *app) doneCmd(completed bool) *cobra.Command {
	use, short := "done <id>", "Mark a task completed"
	if !completed {
		use, short = "undone <id>", "Mark a task not completed"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(cmd, args[0], v1.UpdateTaskRequest{Completed: &completed})
		},
	}
}

func (a *app) update(cmd *cobra.Command, id string, req v1.UpdateTaskRequest) error {
	ctx, cancel := a.ctx(cmd)
	defer cancel()

	t, err := a.client.UpdateTask(ctx, id, req)
	if err != nil {
		return err
	}
	if ok, err := a.printJSON(cmd.OutOrStdout(), t); ok {
		return err
	}
	cmd.Printf("Updated %s\n", t.ID)
	return nil
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if err := a.client.DeleteTask(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
