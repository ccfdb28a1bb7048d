package service

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	id "membership/pkg/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type paymentView struct {
	FullName string
	Fee      string
	MemberID string
	Bank     BankDetails
}

type welcomeView struct {
	FullName     string
	Email        string
	TempPassword string
}

func render(name string, view any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// formatFee renders pence as pounds, e.g. 5000 -> "£50", 2550 -> "£25.50".
func formatFee(t id.MembershipType) string {
	pence := t.FeePence()
	if pence%100 == 0 {
		return fmt.Sprintf("£%d", pence/100)
	}
	return fmt.Sprintf("£%d.%02d", pence/100, pence%100)
}
