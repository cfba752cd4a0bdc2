package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
)

// Channel describes the RSS channel wrapping a product list
type Channel struct {
	SearchTerm string
	SelfLink   string
	Version    string
	BuiltAt    time.Time
}

// Generator renders the cheapest products for a search term as RSS 2.0 so a
// feed reader can follow a price watch
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(channel Channel, products []database.Product) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("Cheapest offers for \"%s\"", channel.SearchTerm), 4)
	g.writeElement(&buf, "link", channel.SelfLink, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Lowest current prices found for \"%s\" across all stores", channel.SearchTerm), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	lastBuildDate := channel.BuiltAt
	for _, product := range products {
		if product.LastSeenAt.After(lastBuildDate) {
			lastBuildDate = product.LastSeenAt
		}
	}
	if lastBuildDate.IsZero() {
		lastBuildDate = time.Now()
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.In(time.Local).Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Price-Comb/%s", channel.Version), 4)

	for _, product := range products {
		g.writeItem(&buf, product)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, product database.Product) {
	buf.WriteString("    <item>\n")

	// the same product reappears with a new guid whenever its price moves
	guid := product.ID + "@" + strconv.FormatFloat(product.Price, 'f', -1, 64)
	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", fmt.Sprintf("%s: %s %s", product.Name, FormatPrice(product.Price), product.Currency), 6)
	g.writeElement(buf, "link", product.URL, 6)
	g.writeElement(buf, "description", g.describe(product), 6)
	g.writeElement(buf, "pubDate", product.LastSeenAt.In(time.Local).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", product.SourceCode, 6)
	if product.Category != "" {
		g.writeElement(buf, "category", product.Category, 6)
	}

	if product.Image != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(product.Image),
			imageType(product.Image)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) describe(product database.Product) string {
	parts := []string{fmt.Sprintf("%s %s at %s", FormatPrice(product.Price), product.Currency, product.SourceCode)}
	if product.Seller != "" && product.Seller != product.SourceCode {
		parts = append(parts, "sold by "+product.Seller)
	}
	if product.Brand != "" {
		parts = append(parts, "brand "+product.Brand)
	}
	return strings.Join(parts, ", ")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// FormatPrice renders a price with dot thousands grouping, e.g. 1.490.000
func FormatPrice(price float64) string {
	whole := strconv.FormatFloat(price, 'f', 0, 64)
	if len(whole) <= 3 {
		return whole
	}

	var out strings.Builder
	lead := len(whole) % 3
	if lead > 0 {
		out.WriteString(whole[:lead])
	}
	for i := lead; i < len(whole); i += 3 {
		if out.Len() > 0 {
			out.WriteByte('.')
		}
		out.WriteString(whole[i : i+3])
	}
	return out.String()
}

func imageType(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".png"):
		return "image/png"
	case strings.Contains(lower, ".webp"):
		return "image/webp"
	case strings.Contains(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
