package mail

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/isdelr/contacts-be/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ConfirmationMessage renders the email-confirmation mail.
func ConfirmationMessage(to, username, link string) (Message, error) {
	body, err := render("confirm_email.html", map[string]any{
		"Username": username,
		"Link":     link,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Confirm your email", HTML: body}, nil
}

// BirthdayDigestMessage renders the upcoming-birthdays reminder.
func BirthdayDigestMessage(to, username string, contacts []models.Contact) (Message, error) {
	body, err := render("birthday_digest.html", map[string]any{
		"Username": username,
		"Contacts": contacts,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Upcoming birthdays this week", HTML: body}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
