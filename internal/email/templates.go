package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const appName = "Buildea"

// StatusChangeData fills the idea status notification.
type StatusChangeData struct {
	UserName    string
	IdeaTitle   string
	StatusLabel string
	Details     string
	IdeaURL     string
}

// CommentData fills the new comment notification.
type CommentData struct {
	UserName  string
	IdeaTitle string
	Comment   string
	IdeaURL   string
}

// ContactData fills the contact form forward.
type ContactData struct {
	Kind    string
	Name    string
	Email   string
	Company string
	Phone   string
	Subject string
	Message string
}

var templates = template.Must(template.New("email").Parse(layoutTemplate + statusChangeTemplate + commentTemplate + contactTemplate))

// StatusChangeMessage tells an idea's author their idea moved in the pipeline.
func StatusChangeMessage(to string, data StatusChangeData) (Message, error) {
	html, err := render("status_change", data)
	if err != nil {
		return Message{}, fmt.Errorf("render status change template: %w", err)
	}
	text := fmt.Sprintf("%s, your idea \"%s\" is now: %s.\n%s\n%s", data.UserName, data.IdeaTitle, data.StatusLabel, data.Details, data.IdeaURL)
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] Your idea is now %s", appName, data.StatusLabel),
		Text:    strings.TrimSpace(text),
		HTML:    html,
	}, nil
}

// CommentMessage tells an idea's author someone commented.
func CommentMessage(to string, data CommentData) (Message, error) {
	html, err := render("comment", data)
	if err != nil {
		return Message{}, fmt.Errorf("render comment template: %w", err)
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] New comment on \"%s\"", appName, data.IdeaTitle),
		Text:    fmt.Sprintf("New comment on \"%s\":\n\n%s\n\n%s", data.IdeaTitle, data.Comment, data.IdeaURL),
		HTML:    html,
	}, nil
}

// ContactMessage forwards a contact form submission to the team inbox.
func ContactMessage(inbox string, data ContactData) (Message, error) {
	html, err := render("contact", data)
	if err != nil {
		return Message{}, fmt.Errorf("render contact template: %w", err)
	}
	subject := data.Subject
	if subject == "" {
		subject = data.Kind + " inquiry"
	}
	return Message{
		To:      []string{inbox},
		ReplyTo: data.Email,
		Subject: fmt.Sprintf("[%s %s] %s", appName, data.Kind, subject),
		Text:    fmt.Sprintf("From: %s <%s>\n\n%s", data.Name, data.Email, data.Message),
		HTML:    html,
	}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const layoutTemplate = `{{define "head"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Hiragino Sans', 'Segoe UI', sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #ff6a00; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #ff6a00; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .quote { background: #f6f6f6; padding: 12px; border-radius: 4px; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header"><h1>Buildea</h1></div>
{{end}}
{{define "foot"}}
    <div class="footer">
        <p>You can turn off email notifications in your Buildea settings.</p>
    </div>
</body>
</html>{{end}}`

const statusChangeTemplate = `{{define "status_change"}}{{template "head"}}
    <p>Hi {{.UserName}},</p>
    <p>Your idea <strong>{{.IdeaTitle}}</strong> is now <strong>{{.StatusLabel}}</strong>.</p>
    {{if .Details}}<p class="quote">{{.Details}}</p>{{end}}
    {{if .IdeaURL}}<p><a href="{{.IdeaURL}}" class="button">View idea</a></p>{{end}}
{{template "foot"}}{{end}}`

const commentTemplate = `{{define "comment"}}{{template "head"}}
    <p>Hi {{.UserName}},</p>
    <p>Someone commented on <strong>{{.IdeaTitle}}</strong>:</p>
    <p class="quote">{{.Comment}}</p>
    {{if .IdeaURL}}<p><a href="{{.IdeaURL}}" class="button">Reply</a></p>{{end}}
{{template "foot"}}{{end}}`

const contactTemplate = `{{define "contact"}}{{template "head"}}
    <h2>{{.Kind}} inquiry</h2>
    <p><strong>{{.Name}}</strong> &lt;{{.Email}}&gt;</p>
    {{if .Company}}<p>Company: {{.Company}}</p>{{end}}
    {{if .Phone}}<p>Phone: {{.Phone}}</p>{{end}}
    {{if .Subject}}<p>Subject: {{.Subject}}</p>{{end}}
    <p class="quote">{{.Message}}</p>
</body>
</html>{{end}}`
