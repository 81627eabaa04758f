package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

var (
	otpTemplate = template.Must(template.New("otp").Parse(`Hello{{if .Name}} {{.Name}}{{end}},

Your {{.Purpose}} verification code is: {{.Code}}

The code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.
`))

	resetTemplate = template.Must(template.New("reset").Parse(`Hello{{if .Name}} {{.Name}}{{end}},

We received a request to reset your password. Open the link below to choose a new one:

{{.Link}}

The link expires in {{.Minutes}} minutes and can be used once.
`))
)

type templateData struct {
	Payload
	Minutes int
}

// Render builds the message for kind.
func Render(address string, kind Kind, payload Payload) (Message, error) {
	data := templateData{Payload: payload, Minutes: int(payload.ExpiresIn / time.Minute)}
	var (
		tmpl    *template.Template
		subject string
	)
	switch kind {
	case KindOTP:
		tmpl, subject = otpTemplate, "Your verification code"
		if data.Purpose == "" {
			data.Purpose = "login"
		}
	case KindPasswordReset:
		tmpl, subject = resetTemplate, "Reset your password"
	default:
		return Message{}, fmt.Errorf("notify: unknown template kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s: %w", kind, err)
	}
	return Message{To: address, Subject: subject, Body: buf.String()}, nil
}
