package invoice

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/invoice.html
var templatesFS embed.FS

// Renderer converts HTML into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Store persists a rendered file and returns its URL.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Options tune invoice presentation.
type Options struct {
	CompanyName    string
	CurrencySymbol string
	Locale         string
}

// Generator renders invoices to PDF and stores them.
type Generator struct {
	renderer Renderer
	store    Store
	tpl      *template.Template
	opts     Options
}

// NewGenerator parses the embedded template.
func NewGenerator(renderer Renderer, store Store, opts Options) (*Generator, error) {
	tag, err := language.Parse(opts.Locale)
	if err != nil {
		tag = language.English
	}
	printer := message.NewPrinter(tag)
	funcMap := template.FuncMap{
		"money": func(v float64) string {
			return opts.CurrencySymbol + printer.Sprintf("%.2f", v)
		},
		"date": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
		"upper": strings.ToUpper,
	}
	tpl, err := template.New("invoice.html").Funcs(funcMap).ParseFS(templatesFS, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &Generator{renderer: renderer, store: store, tpl: tpl, opts: opts}, nil
}

type view struct {
	Document
	CompanyName string
}

// RenderHTML executes the invoice template.
func (g *Generator) RenderHTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.tpl.Execute(&buf, view{Document: doc, CompanyName: g.opts.CompanyName}); err != nil {
		return nil, fmt.Errorf("execute invoice template: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders doc to PDF, stores it and returns the public URL.
func (g *Generator) Generate(ctx context.Context, doc Document) (string, error) {
	if doc.Number == "" {
		doc.Number = NumberFor(doc.OrderID, doc.IssuedAt)
	}
	html, err := g.RenderHTML(doc)
	if err != nil {
		return "", err
	}
	pdf, err := g.renderer.RenderHTML(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render invoice %s: %w", doc.Number, err)
	}
	url, err := g.store.Save(ctx, doc.Number+".pdf", pdf)
	if err != nil {
		return "", err
	}
	return url, nil
}
