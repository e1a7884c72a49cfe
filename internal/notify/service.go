// Package notify sends show notifications via SMTP.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email delivery for show notifications
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new notify service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if SMTP is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("notify not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain-text fallback part
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("notify not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-cuemesh"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// RefusalData holds data for the cant notification template
type RefusalData struct {
	ShowName   string
	CueTitle   string
	MemberName string
	Department string
	Note       string
}

// InviteData holds data for the show invite template
type InviteData struct {
	ShowName   string
	SenderName string
	JoinCode   string
}

// SendRefusalNotification alerts the director's inbox that a member flagged
// a cue as cant.
func (s *Service) SendRefusalNotification(to, showName, cueTitle, memberName, department, note string) error {
	data := RefusalData{
		ShowName:   showName,
		CueTitle:   cueTitle,
		MemberName: memberName,
		Department: department,
		Note:       note,
	}

	subject := fmt.Sprintf("CANT on %q", cueTitle)
	html, err := renderTemplate(refusalEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render refusal template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendShowInvite mails a join code to a crew member.
func (s *Service) SendShowInvite(to, showName, senderName, joinCode string) error {
	data := InviteData{
		ShowName:   showName,
		SenderName: senderName,
		JoinCode:   joinCode,
	}

	subject := fmt.Sprintf("You're on the crew for %s", showName)
	html, err := renderTemplate(inviteEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("notify").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const refusalEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>CANT on {{.CueTitle}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #b00020; padding-bottom: 10px; margin-bottom: 20px; }
        .note { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.ShowName}}</h1>
    </div>

    <h2>Cue refused: {{.CueTitle}}</h2>

    <p>{{.MemberName}} ({{.Department}}) reported they cannot execute this cue.</p>

    {{if .Note}}
    <div class="note">
        <strong>Reason:</strong> {{.Note}}
    </div>
    {{end}}

    <p>Open the show to review the cue and restage it.</p>

    <div class="footer">
        <p>You are receiving this because you direct {{.ShowName}} on CueMesh.</p>
    </div>
</body>
</html>`

const inviteEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Join {{.ShowName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .code { font-size: 28px; letter-spacing: 6px; font-family: monospace; padding: 12px 24px; background: #f0f4ff; border-radius: 4px; display: inline-block; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>CueMesh</h1>
    </div>

    <h2>{{.SenderName}} added you to {{.ShowName}}</h2>

    <p>Use this code in the app to join the show:</p>

    <p class="code">{{.JoinCode}}</p>

    <div class="footer">
        <p>If you weren't expecting this invite, you can safely ignore it.</p>
    </div>
</body>
</html>`
