package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rescuehub/models"
	"rescuehub/offline"
)

func outputFormat(cmd *cobra.Command) string {
	if f := cmd.Flag("output"); f != nil {
		return f.Value.String()
	}
	return "table"
}

// printStructured writes v as JSON or YAML. YAML goes through JSON first so
// both formats share the API field names.
func printStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		raw, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(generic)
	case "", "table":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", format)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func render(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func printTasks(cmd *cobra.Command, tasks []models.RescueTask, fromCache bool) error {
	w := cmd.OutOrStdout()
	if done, err := printStructured(w, outputFormat(cmd), tasks); done {
		return err
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(t.ID), 10),
			t.Title,
			string(t.TaskType),
			string(t.Status),
			fmt.Sprintf("%d/%d", t.ClaimedCount, t.MaxAssignees),
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	render(w, []string{"ID", "TITLE", "TYPE", "STATUS", "CLAIMED", "CREATED"}, rows)
	if fromCache {
		fmt.Fprintln(w, "(offline: showing cached list)")
	}
	return nil
}

func printTask(cmd *cobra.Command, t *models.RescueTask) error {
	w := cmd.OutOrStdout()
	if done, err := printStructured(w, outputFormat(cmd), t); done {
		return err
	}
	fmt.Fprintf(w, "#%d %s [%s]\n", t.ID, t.Title, t.Status)
	fmt.Fprintf(w, "  type:     %s\n", t.TaskType)
	fmt.Fprintf(w, "  claimed:  %d/%d\n", t.ClaimedCount, t.MaxAssignees)
	if t.Creator != nil {
		fmt.Fprintf(w, "  creator:  %s (#%d)\n", t.Creator.Name, t.CreatorID)
	}
	if t.Location != nil {
		fmt.Fprintf(w, "  location: %s\n", *t.Location)
	}
	if t.StartTime != nil && t.EndTime != nil {
		fmt.Fprintf(w, "  window:   %s to %s\n", t.StartTime.Local().Format(time.RFC822), t.EndTime.Local().Format(time.RFC822))
	}
	if t.Description != "" {
		fmt.Fprintf(w, "  %s\n", t.Description)
	}
	if t.CompletionNote != nil {
		fmt.Fprintf(w, "  note:     %s\n", *t.CompletionNote)
	}
	for _, c := range t.Claims {
		name := strconv.FormatUint(uint64(c.UserID), 10)
		if c.User != nil {
			name = fmt.Sprintf("%s (#%d)", c.User.Name, c.UserID)
		}
		fmt.Fprintf(w, "  - %-24s %s\n", name, c.Status)
	}
	return nil
}

func printClaims(cmd *cobra.Command, claims []models.TaskClaim) error {
	w := cmd.OutOrStdout()
	if done, err := printStructured(w, outputFormat(cmd), claims); done {
		return err
	}
	rows := make([][]string, 0, len(claims))
	for _, c := range claims {
		title, status := "", ""
		if c.Task != nil {
			title, status = c.Task.Title, string(c.Task.Status)
		}
		rows = append(rows, []string{strconv.FormatUint(uint64(c.TaskID), 10), title, status, string(c.Status)})
	}
	render(w, []string{"TASK", "TITLE", "TASK STATUS", "MY CLAIM"}, rows)
	return nil
}

// printOutcome reports either the server's answer or the deferral.
func printOutcome(cmd *cobra.Command, out offline.Outcome) error {
	if out.Queued != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "offline: %s queued as %s, it will be sent when the connection returns\n", out.Queued.Type, out.Queued.ID)
		return nil
	}
	return printTask(cmd, out.Task)
}

func printQueue(cmd *cobra.Command, items []offline.QueueItem) error {
	w := cmd.OutOrStdout()
	if done, err := printStructured(w, outputFormat(cmd), items); done {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.ID, string(it.Type), string(it.Payload), it.CreatedAt.Local().Format("2006-01-02 15:04:05"), strconv.Itoa(it.Retries)})
	}
	render(w, []string{"ID", "TYPE", "PAYLOAD", "QUEUED", "RETRIES"}, rows)
	return nil
}
