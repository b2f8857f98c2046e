package templates

import (
	"fmt"
	"html"
	"strings"
)

// CaseAlertData holds the case details rendered into alert emails
type CaseAlertData struct {
	CaseNumber  string
	PersonName  string
	Age         int
	City        string
	State       string
	Priority    string
	Description string
	Link        string
}

// DigestData holds the figures of the daily digest
type DigestData struct {
	Date        string
	NewCases    int64
	ActiveCases int64
	FoundCases  int64
	TotalCases  int64
	SuccessRate float64
	Link        string
}

type fact struct {
	label string
	value string
}

func factsTable(rows ...fact) string {
	var b strings.Builder
	b.WriteString(`<table class="facts">`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td class="label">%s</td><td>%s</td></tr>`,
			html.EscapeString(r.label), html.EscapeString(r.value))
	}
	b.WriteString(`</table>`)
	return b.String()
}

func button(link, text string) string {
	if link == "" {
		return ""
	}
	return fmt.Sprintf(`<a class="cta-button" href="%s">%s</a>`, html.EscapeString(link), html.EscapeString(text))
}

func place(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// RenderWelcomeEmail generates the HTML sent after registration
func RenderWelcomeEmail(name, link string) string {
	body := fmt.Sprintf(`<h2>Welcome, %s</h2>
      <p>Your Missing Alert account is ready. You can now report missing persons, follow the cases you filed and update them as they progress.</p>
      <p>If you did not create this account, you can ignore this email.</p>
      %s`, html.EscapeString(name), button(link, "Open Missing Alert"))
	return renderLayout("Welcome to Missing Alert", body)
}

// RenderNewCaseAlert generates the HTML sent to staff when a case is reported
func RenderNewCaseAlert(d CaseAlertData) string {
	body := fmt.Sprintf(`<p>A new missing person case has been reported and is awaiting review.</p>
      %s
      <p>%s</p>
      %s`,
		factsTable(
			fact{"Case number", d.CaseNumber},
			fact{"Name", d.PersonName},
			fact{"Age", fmt.Sprintf("%d", d.Age)},
			fact{"Last seen", place(d.City, d.State)},
			fact{"Priority", d.Priority},
		),
		html.EscapeString(d.Description),
		button(d.Link, "View case"))
	return renderLayout("New case "+d.CaseNumber, body)
}

// RenderCaseFound generates the HTML sent when a case is marked found
func RenderCaseFound(recipient string, d CaseAlertData) string {
	greeting := "Hello,"
	if recipient != "" {
		greeting = "Hello " + html.EscapeString(recipient) + ","
	}
	body := fmt.Sprintf(`<p>%s</p>
      <p><strong>%s</strong> (case %s) has been marked as found.</p>
      <p>Thank you to everyone who shared and followed this case.</p>
      %s`,
		greeting, html.EscapeString(d.PersonName), html.EscapeString(d.CaseNumber), button(d.Link, "View case"))
	return renderLayout("Good news: "+d.PersonName+" has been found", body)
}

// RenderDailyDigest generates the HTML of the daily summary sent to admins
func RenderDailyDigest(d DigestData) string {
	body := fmt.Sprintf(`<p>Here is the case summary for %s.</p>
      %s
      %s`,
		html.EscapeString(d.Date),
		factsTable(
			fact{"New cases (24h)", fmt.Sprintf("%d", d.NewCases)},
			fact{"Active cases", fmt.Sprintf("%d", d.ActiveCases)},
			fact{"Found cases", fmt.Sprintf("%d", d.FoundCases)},
			fact{"Total cases", fmt.Sprintf("%d", d.TotalCases)},
			fact{"Success rate", fmt.Sprintf("%.1f%%", d.SuccessRate)},
		),
		button(d.Link, "Open dashboard"))
	return renderLayout("Daily case digest", body)
}
