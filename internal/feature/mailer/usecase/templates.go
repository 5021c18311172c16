package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Brand is the product name used in every email.
const Brand = "SyncMosaic"

type theme struct {
	From template.CSS
	To   template.CSS
}

var (
	themeOTP     = theme{From: "#667eea", To: "#764ba2"}
	themeReset   = theme{From: "#ff6b6b", To: "#ee5a24"}
	themeWelcome = theme{From: "#4facfe", To: "#00f2fe"}
)

type templateData struct {
	Brand            string
	Heading          string
	Theme            theme
	FirstName        string
	OTP              string
	ExpiresInMinutes int
	SiteURL          string
}

// templates are parsed once; each kind is the layout plus its body.
type templates map[string]*template.Template

func parseTemplates() (templates, error) {
	out := make(templates)
	for _, name := range []string{"otp", "password_reset", "welcome"} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func (t templates) render(name string, data templateData) (string, error) {
	tpl, ok := t[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
