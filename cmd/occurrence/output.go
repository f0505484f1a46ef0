package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spec-kit/occurrence-client/internal/api/client"
	"github.com/spec-kit/occurrence-client/internal/auth"
	"github.com/spec-kit/occurrence-client/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func statusLabel(s domain.OccurrenceStatus) string {
	switch s {
	case domain.OccurrenceStatusOpen:
		return "open"
	case domain.OccurrenceStatusInProgress:
		return "in progress"
	case domain.OccurrenceStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func printOccurrences(items []domain.Occurrence) {
	rows := make([][]string, 0, len(items))
	for _, o := range items {
		rows = append(rows, []string{o.ID, statusLabel(o.Status), o.Title, formatTime(o.DateTime)})
	}
	printTable([]string{"ID", "STATUS", "TITLE", "DATE"}, rows)
}

func printOccurrence(api *client.Client, o *domain.Occurrence, address string) {
	rows := [][2]string{
		{"id", o.ID},
		{"title", o.Title},
		{"description", o.Description},
		{"status", statusLabel(o.Status)},
		{"date", formatTime(o.DateTime)},
	}
	if o.Location != nil {
		rows = append(rows, [2]string{"location", o.Location.String()})
	}
	if address != "" {
		rows = append(rows, [2]string{"address", address})
	}
	if o.Feedback != nil {
		rows = append(rows, [2]string{"feedback", *o.Feedback})
	}
	if o.EmployeeID != nil {
		rows = append(rows, [2]string{"employee", *o.EmployeeID})
	}
	for i, img := range o.Images {
		rows = append(rows, [2]string{fmt.Sprintf("image %d", i+1), api.ImageURL(img.Path)})
	}
	printKV(rows)
}

func printUser(u *domain.User) {
	printKV([][2]string{
		{"id", u.ID},
		{"name", u.Name},
		{"email", u.Email},
		{"cpf", orDash(u.CPF)},
		{"phone", orDash(u.Phone)},
	})
}

func printEmployee(e *domain.Employee) {
	printKV([][2]string{
		{"id", e.ID},
		{"name", e.Name},
		{"email", e.Email},
		{"registration", orDash(e.RegistrationNumber)},
	})
}

type sessionInfo struct {
	LoggedIn  bool      `json:"logged_in"`
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Expired   bool      `json:"expired,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
}

type sessionReport struct {
	Citizen  sessionInfo `json:"citizen"`
	Employee sessionInfo `json:"employee"`
}

// describeSession summarizes a restored session. Token claims are read
// without verification, for display only.
func describeSession[T interface {
	comparable
	domain.Identity
}](identity T, token string) sessionInfo {
	var zero T
	if identity == zero {
		return sessionInfo{}
	}
	info := sessionInfo{LoggedIn: true, ID: identity.SubjectID()}
	switch v := any(identity).(type) {
	case *domain.User:
		info.Name, info.Email = v.Name, v.Email
	case *domain.Employee:
		info.Name, info.Email = v.Name, v.Email
	}
	if claims, err := auth.Inspect(token); err == nil {
		info.ExpiresAt = claims.ExpiresAt
		info.Expired = claims.Expired(time.Now())
	}
	return info
}

func printSessionReport(r sessionReport) {
	row := func(label string, s sessionInfo) [2]string {
		if !s.LoggedIn {
			return [2]string{label, "logged out"}
		}
		v := fmt.Sprintf("%s <%s> (%s)", s.Name, s.Email, s.ID)
		if !s.ExpiresAt.IsZero() {
			v += ", token expires " + formatTime(s.ExpiresAt)
		}
		if s.Expired {
			v += " [expired]"
		}
		return [2]string{label, v}
	}
	printKV([][2]string{row("citizen", r.Citizen), row("employee", r.Employee)})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
