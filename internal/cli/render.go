package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/notify"
	"github.com/Veraticus/tachyon/internal/wallet"
	"github.com/charmbracelet/lipgloss"
)

// RenderProbability renders one branch result as a single line.
func RenderProbability(label string, p model.ProbabilityResult) string {
	var value string
	switch {
	case p.Err != "":
		value = toneFail.style.Render("unavailable: " + p.Err)
	case p.NoData:
		value = toneWarn.style.Render("no data")
	default:
		value = boldStyle.Render(fmt.Sprintf("%.2f%%", p.Value))
	}

	line := fmt.Sprintf("%-10s %s", label, value)
	if p.Summary != "" && p.Err == "" {
		line += "\n" + mutedStyle.Render("           "+p.Summary)
	}
	return line
}

// RenderAssessment renders a purchase assessment as a box.
func RenderAssessment(a *model.Assessment) string {
	verdict := toneFail.line("No purchase")
	if a.Decision.Verdict {
		verdict = FormatSuccess("Purchase likely")
	}
	if a.Decision.Score != nil {
		verdict += mutedStyle.Render(fmt.Sprintf(" (score %.2f)", *a.Decision.Score))
	}

	lines := []string{
		mutedStyle.Render(fmt.Sprintf("user %s at %s", a.UID, a.Location)),
		"",
		RenderProbability("Personal", a.Personal),
		RenderProbability("Public", a.Public),
		"",
		verdict,
	}
	if a.Decision.Rationale != "" {
		lines = append(lines, a.Decision.Rationale)
	}
	if a.Duration > 0 {
		lines = append(lines, mutedStyle.Render("took "+a.Duration.Round(time.Millisecond).String()))
	}

	return box(chartIcon, "Purchase assessment", strings.Join(lines, "\n"))
}

// RenderQueryResult renders the answer to a spending question.
func RenderQueryResult(r *model.QueryResult) string {
	lines := []string{
		mutedStyle.Render(fmt.Sprintf("language %s", r.Language)),
		boldStyle.Render(r.Query),
		"",
		r.Answer,
	}
	return box(robotIcon, "Answer", strings.Join(lines, "\n"))
}

// RenderInvoice renders a saved invoice and the outcome of its wallet pass.
func RenderInvoice(inv *model.Invoice, pass *wallet.Pass, passErr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render("Invoice"), inv.ID)
	if inv.StoreName != "" {
		fmt.Fprintf(&b, "%s, %s\n", inv.StoreName, inv.StoreAddress)
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		cellStyle.Width(24).Render("Item"),
		cellStyle.Render("Cost"))))
	b.WriteString("\n")
	for _, item := range inv.Items {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			cellStyle.Width(24).Render(item.Name),
			cellStyle.Render(fmt.Sprintf("%.2f", item.Cost))))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nCGST %.2f%%  SGST %.2f%%\n", inv.CGST, inv.SGST)
	b.WriteString(boldStyle.Render(fmt.Sprintf("Gross %.2f", inv.GrossAmount)))

	switch {
	case passErr != "":
		b.WriteString("\n\n" + FormatWarning("Wallet pass not issued: "+passErr))
	case pass != nil:
		b.WriteString("\n\n" + FormatSuccess("Add to wallet: "+pass.SaveURL))
	}

	return box(receiptIcon, "Invoice saved", b.String())
}

// RenderNotifications renders notifications as a bulleted list.
func RenderNotifications(notes []notify.Notification) string {
	if len(notes) == 0 {
		return FormatInfo("No notifications")
	}

	lines := make([]string, 0, len(notes))
	for _, note := range notes {
		t := toneInfo
		if note.Kind == notify.KindProbable {
			t = toneOK
		}
		lines = append(lines, BellIcon+" "+t.style.Render(note.Message))
	}
	return strings.Join(lines, "\n")
}
