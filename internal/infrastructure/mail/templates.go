package mail

import (
	"bytes"
	"html/template"
)

type message struct {
	Subject string
	HTML    string
	Text    string
}

var (
	verificationHTML = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Confirm your email</h1>
  <p>Welcome to {{.Product}}. Confirm your address to activate your account:</p>
  <p><a href="{{.URL}}">Verify my email</a></p>
  <p>This link expires in 24 hours.</p>
</body>
</html>`))

	resetHTML = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Reset your password</h1>
  <p>We received a request to reset your {{.Product}} password:</p>
  <p><a href="{{.URL}}">Choose a new password</a></p>
  <p>This link expires in 1 hour. If you did not ask for it, ignore this email.</p>
</body>
</html>`))
)

type templateVars struct {
	Product string
	URL     string
}

func render(t *template.Template, vars templateVars) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func verificationMessage(product, link string) (message, error) {
	html, err := render(verificationHTML, templateVars{Product: product, URL: link})
	if err != nil {
		return message{}, err
	}
	return message{
		Subject: "Verify your email - " + product,
		HTML:    html,
		Text:    "Verify your email: " + link,
	}, nil
}

func resetMessage(product, link string) (message, error) {
	html, err := render(resetHTML, templateVars{Product: product, URL: link})
	if err != nil {
		return message{}, err
	}
	return message{
		Subject: "Reset your password - " + product,
		HTML:    html,
		Text:    "Reset your password: " + link,
	}, nil
}
