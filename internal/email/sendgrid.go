package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendgridEndpoint = "/v3/mail/send"

// SendgridMailer sends mail through the SendGrid v3 API.
type SendgridMailer struct {
	key  string
	host string
	from *sgmail.Email
}

func NewSendgridMailer(key, fromName, fromEmail string) *SendgridMailer {
	return &SendgridMailer{
		key:  key,
		host: "https://api.sendgrid.com",
		from: sgmail.NewEmail(fromName, fromEmail),
	}
}

func (m *SendgridMailer) Name() string { return "sendgrid" }

func (m *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.Subject = msg.Subject
	v3.AddPersonalizations(p)
	if msg.ReplyTo != "" {
		v3.SetReplyTo(sgmail.NewEmail("", msg.ReplyTo))
	}
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
