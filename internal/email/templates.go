package email

import (
	"bytes"
	"fmt"
	"text/template"
)

const (
	TemplateVerifyEmail   = "verify-email"
	TemplateResetPassword = "reset-password"
)

var templates = template.Must(template.New("mail").Option("missingkey=error").Parse(`
{{define "verify-email"}}Hi {{.name}},

Please confirm your email address by opening the link below:

{{.link}}

The link expires in {{.expires_in}}. If you did not create an account, ignore this message.
{{end}}
{{define "reset-password"}}Hi {{.name}},

We received a request to reset your password. Open the link below to choose a new one:

{{.link}}

The link expires in {{.expires_in}}. If you did not ask for a reset, ignore this message.
{{end}}
`))

// Render ejecuta la plantilla del mensaje con su contexto.
func Render(msg Message) (string, error) {
	tmpl := templates.Lookup(msg.Template)
	if tmpl == nil {
		return "", fmt.Errorf("unknown email template %q", msg.Template)
	}
	data := msg.Data
	if data == nil {
		data = map[string]string{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return buf.String(), nil
}
