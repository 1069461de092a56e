package mailtemplates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"

	root "github.com/lysco/checkout-backend"
	"github.com/lysco/checkout-backend/internal"
	"github.com/lysco/checkout-backend/notifications"
)

const (
	// templatesDir is the directory of the email templates inside the
	// embedded assets.
	templatesDir = "assets/mail"
	// partialsPrefix marks the files holding shared blocks, they are parsed
	// with every template instead of being templates on their own.
	partialsPrefix = "_"
)

// TemplateFile represents an email template key. Every email template should
// have a key that identifies it, which is the filename without the extension.
type TemplateFile string

// MailTemplate struct represents an email template. It includes the file key
// and the notification placeholder to be sent. The subject and the plain
// body of the placeholder are text templates executed with the same data as
// the HTML file.
type MailTemplate struct {
	File        TemplateFile
	Placeholder notifications.Notification
}

var (
	mtx       sync.RWMutex
	available map[TemplateFile]*htmltemplate.Template
)

var funcs = map[string]any{
	"euros": internal.FormatEuros,
}

// Load parses every HTML template of the embedded assets. It is safe to call
// it more than once.
func Load() error {
	entries, err := fs.ReadDir(root.Assets, templatesDir)
	if err != nil {
		return fmt.Errorf("could not read mail templates: %w", err)
	}
	var partials, files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		if strings.HasPrefix(entry.Name(), partialsPrefix) {
			partials = append(partials, path.Join(templatesDir, entry.Name()))
			continue
		}
		files = append(files, entry.Name())
	}
	parsed := make(map[TemplateFile]*htmltemplate.Template, len(files))
	for _, file := range files {
		patterns := append([]string{path.Join(templatesDir, file)}, partials...)
		tmpl, err := htmltemplate.New(file).Funcs(funcs).ParseFS(root.Assets, patterns...)
		if err != nil {
			return fmt.Errorf("could not parse mail template %s: %w", file, err)
		}
		parsed[TemplateFile(strings.TrimSuffix(file, ".html"))] = tmpl
	}
	mtx.Lock()
	available = parsed
	mtx.Unlock()
	return nil
}

// Available returns the keys of the loaded templates.
func Available() []TemplateFile {
	mtx.RLock()
	defer mtx.RUnlock()
	keys := make([]TemplateFile, 0, len(available))
	for key := range available {
		keys = append(keys, key)
	}
	return keys
}

// ExecTemplate method checks if the template file exists in the loaded mail
// templates and if it does, it executes the template with the data
// provided. The subject and plain body placeholders are executed too. It
// returns the notification without recipients.
func (mt MailTemplate) ExecTemplate(data any) (*notifications.Notification, error) {
	mtx.RLock()
	tmpl, ok := available[mt.File]
	mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("template %s not found", mt.File)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, err
	}
	n := &notifications.Notification{Body: buf.String()}
	var err error
	if n.Subject, err = execText(mt.Placeholder.Subject, data); err != nil {
		return nil, fmt.Errorf("could not execute subject: %w", err)
	}
	if n.PlainBody, err = execText(mt.Placeholder.PlainBody, data); err != nil {
		return nil, fmt.Errorf("could not execute plain body: %w", err)
	}
	return n, nil
}

func execText(text string, data any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := texttemplate.New("plain").Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
