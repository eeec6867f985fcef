package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type CodeKind string

const (
	KindTwoFactor CodeKind = "2fa"
	KindReset     CodeKind = "reset"
)

const (
	SubjectTwoFactor = "Your two-factor authentication code"
	SubjectReset     = "Your password reset code"
)

type codeVars struct {
	Brand       string
	Title       string
	Instruction string
	Name        string
	Code        string
	Minutes     int
	Year        int
}

// Templates renders the one-time code emails.
type Templates struct {
	brand string
	code  *template.Template
	now   func() time.Time
}

func NewTemplates(brand string) (*Templates, error) {
	tpl, err := template.ParseFS(templateFS, "templates/code.html")
	if err != nil {
		return nil, fmt.Errorf("mail.NewTemplates: %w", err)
	}

	return &Templates{
		brand: brand,
		code:  tpl,
		now:   time.Now,
	}, nil
}

// Code renders the email carrying a one-time code and returns its subject and body.
func (t *Templates) Code(kind CodeKind, name, code string, validFor time.Duration) (string, string, error) {
	vars := codeVars{
		Brand:   t.brand,
		Name:    name,
		Code:    code,
		Minutes: int(validFor / time.Minute),
		Year:    t.now().Year(),
	}

	subject := SubjectTwoFactor
	switch kind {
	case KindReset:
		subject = SubjectReset
		vars.Title = "Reset your password securely"
		vars.Instruction = "use the code below to reset your password."
	case KindTwoFactor:
		vars.Title = "Protect your account with two-factor authentication"
		vars.Instruction = "use the code below."
	default:
		return "", "", fmt.Errorf("mail.Templates.Code: unknown kind %q", kind)
	}

	var buf bytes.Buffer
	if err := t.code.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("mail.Templates.Code: %w", err)
	}

	return subject, buf.String(), nil
}
