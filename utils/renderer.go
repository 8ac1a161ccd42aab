package utils

import (
	"fmt"
	"net/url"
	"strings"

	"dripcrm/config"
	"dripcrm/models"
)

// CatalogBlockToken marks where the rendered catalog markup goes. Without
// the token, catalog markup (if any items are selected) is appended after
// the base content.
const CatalogBlockToken = "{{CATALOG_BLOCK}}"

// RenderedMail is the renderer output handed to the dispatch adapter.
type RenderedMail struct {
	Subject string
	HTML    string
	Text    string
}

// RenderTemplate substitutes the variable tokens and injects the catalog
// block for one recipient. It is a pure function of its inputs plus the
// configured client base URL (unsubscribe links).
func RenderTemplate(tpl *models.Template, contact *models.Contact, senderEmail string, items []models.CatalogItem) RenderedMail {
	senderName := senderNameFromEmail(senderEmail)

	vars := map[string]string{
		"{{name}}":            contact.DisplayName(),
		"{{company}}":         contact.Company,
		"{{senderName}}":      senderName,
		"{{senderCompany}}":   senderName,
		"{{unsubscribeLink}}": unsubscribeLink(contact.Email),
	}

	out := RenderedMail{
		Subject: substitute(tpl.Subject, vars),
		Text:    substitute(tpl.TextContent, vars),
	}

	if tpl.TextOnly && tpl.HTMLContent == "" {
		out.Text = stripToken(out.Text)
		return out
	}

	html := substitute(tpl.HTMLContent, vars)
	if html == "" && out.Text != "" {
		html = textToHTML(out.Text)
	}

	block := renderCatalogBlock(tpl, items)
	if strings.Contains(html, CatalogBlockToken) {
		html = strings.Replace(html, CatalogBlockToken, block, 1)
		html = strings.ReplaceAll(html, CatalogBlockToken, "")
	} else if block != "" {
		html += block
	}
	out.HTML = html
	out.Text = stripToken(out.Text)

	return out
}

func substitute(content string, vars map[string]string) string {
	for token, value := range vars {
		content = strings.ReplaceAll(content, token, value)
	}
	return content
}

func stripToken(text string) string {
	return strings.ReplaceAll(text, CatalogBlockToken, "")
}

// senderNameFromEmail derives a display name by capitalizing the first
// label of the sender's email domain: joe@acme.io -> "Acme".
func senderNameFromEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	domain := email[at+1:]
	label := domain
	if dot := strings.Index(domain, "."); dot > 0 {
		label = domain[:dot]
	}
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func unsubscribeLink(email string) string {
	return fmt.Sprintf("%s/unsubscribe?email=%s",
		strings.TrimRight(config.AppConfig.ClientURL, "/"),
		url.QueryEscape(email))
}

func textToHTML(text string) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}

// renderCatalogBlock builds the markup for the template's selected items.
// Empty when no items are selected or the template is text-only.
func renderCatalogBlock(tpl *models.Template, items []models.CatalogItem) string {
	if len(items) == 0 || tpl.TextOnly {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div class="catalog-block">`)
	for _, item := range items {
		if tpl.CatalogLayout == "list" {
			b.WriteString(`<div class="catalog-item catalog-item-list">`)
		} else {
			b.WriteString(`<div class="catalog-item catalog-item-grid">`)
		}
		if item.ImageURL != "" {
			fmt.Fprintf(&b, `<img src="%s" alt="%s">`, item.ImageURL, item.Name)
		}
		fmt.Fprintf(&b, `<h3>%s</h3>`, item.Name)
		if item.Description != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, item.Description)
		}
		if tpl.ShowPrices {
			fmt.Fprintf(&b, `<span class="price">%.2f %s</span>`, item.Price, item.Currency)
		}
		if item.ProductURL != "" {
			fmt.Fprintf(&b, `<a href="%s">View</a>`, item.ProductURL)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
