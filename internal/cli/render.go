package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/newdok/mailingest/internal/ingest"
	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/theme"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.ColumnStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func renderSummary(s ingest.RunSummary) string {
	var b strings.Builder

	status := string(s.Status)
	fmt.Fprintf(&b, "%s %s\n", theme.HeaderStyle.Render("Ingestion run"), theme.StatusStyle(status).Render(status))

	if s.Status == ingest.RunAlreadyRunning {
		b.WriteString(theme.HelpStyle.Render("another run is in progress; trigger ignored"))
		b.WriteString("\n")
		return b.String()
	}

	if s.Error != "" {
		b.WriteString(theme.ErrorStyle.Render(s.Error))
		b.WriteString("\n")
	}

	t := newTable("Mailbox", "Ingested", "Hidden", "Skipped", "Error")
	for _, u := range s.Users {
		t.Row(u.Mailbox, strconv.Itoa(u.Ingested), strconv.Itoa(u.Hidden), strconv.Itoa(u.Skipped), userError(u))
	}
	b.WriteString(t.Render())
	b.WriteString("\n")

	elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
	b.WriteString(theme.HelpStyle.Render(fmt.Sprintf(
		"run %s: %d users, %d articles, %d failed in %s",
		s.RunID, len(s.Users), s.Ingested(), s.Failed(), elapsed,
	)))
	b.WriteString("\n")
	return b.String()
}

func userError(u ingest.UserResult) string {
	if u.Error == "" {
		return ""
	}
	return theme.ErrorStyle.Render(u.ErrorKind + ": " + u.Error)
}

func renderUsers(users []model.User) string {
	if len(users) == 0 {
		return theme.HelpStyle.Render("no mailboxes registered") + "\n"
	}

	t := newTable("ID", "Mailbox", "Articles", "Skipped", "Cursor")
	for _, u := range users {
		t.Row(u.ID, u.MailboxAddress, strconv.Itoa(u.ArticleCount), strconv.Itoa(u.SkippedCount), strconv.Itoa(u.Cursor()))
	}
	return t.Render() + "\n"
}

func renderSubscriptions(views []model.SubscriptionView) string {
	if len(views) == 0 {
		return theme.HelpStyle.Render("no subscriptions") + "\n"
	}

	t := newTable("Newsletter", "Brand", "Status", "Since")
	for _, v := range views {
		status := string(v.Status)
		t.Row(v.NewsletterID, v.BrandName, theme.StatusStyle(status).Render(status), v.Since.Format(time.DateOnly))
	}
	return t.Render() + "\n"
}

func renderNewsletter(n model.Newsletter) string {
	lines := []string{
		theme.HeaderStyle.Render(n.BrandName),
		"id:       " + n.ID,
		"address:  " + strings.Join(n.Addresses(), ", "),
	}
	if n.DoubleCheck {
		lines = append(lines, "first mail needs confirmation")
	}
	return theme.BorderStyle.Render(strings.Join(lines, "\n")) + "\n"
}
