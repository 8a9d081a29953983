package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

const resetCodeHTML = `<div>
  <h1>Forgot your password? If you didn't forget your password, please ignore this email!</h1>
  <p>Use the following code to verify your account:</p>
  <h3 style="color: red; font-weight: bold; text-align: center">{{.Code}}</h3>
  <p>The code expires in {{.ValidFor}}.</p>
  <h6 style="font-weight: bold">{{.Brand}}</h6>
</div>`

var resetCodeTemplate = template.Must(template.New("reset_code").Parse(resetCodeHTML))

// ResetCodeData feeds the password-reset email.
type ResetCodeData struct {
	Brand    string
	Code     string
	ValidFor string
}

// ResetCodeMessage renders the password-reset email for to.
func ResetCodeMessage(to string, data ResetCodeData) (Message, error) {
	var buf bytes.Buffer
	if err := resetCodeTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("notify: render reset email: %w", err)
	}
	return Message{
		To:      to,
		Subject: data.Brand + " - Reset Password",
		HTML:    buf.String(),
	}, nil
}
