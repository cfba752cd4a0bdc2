package feed

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator()

	seenAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	products := []database.Product{
		{
			ID:         "product-1",
			SourceCode: "store-a",
			URL:        "https://a.example.com/p/1?ref=x&y=1",
			Name:       "Phone X 128GB",
			Image:      "https://a.example.com/img/1.webp",
			Price:      1490000,
			Currency:   "COP",
			Seller:     "Mega <Shop>",
			Category:   "Phones",
			LastSeenAt: seenAt,
		},
		{
			ID:         "product-2",
			SourceCode: "store-b",
			URL:        "https://b.example.com/p/2",
			Name:       "Phone X",
			Price:      1520000,
			Currency:   "COP",
			Seller:     "store-b",
			LastSeenAt: seenAt.Add(-time.Hour),
		},
	}

	rss, err := generator.Run(Channel{
		SearchTerm: "phone x",
		SelfLink:   "http://localhost:8080/feeds/cheapest?query=phone+x",
		Version:    "test",
	}, products)
	if err != nil {
		t.Fatalf("Failed to generate RSS: %v", err)
	}

	expectedElements := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		`<title>Cheapest offers for &#34;phone x&#34;</title>`,
		`<guid isPermaLink="false">product-1@1490000</guid>`,
		`<title>Phone X 128GB: 1.490.000 COP</title>`,
		`<link>https://a.example.com/p/1?ref=x&amp;y=1</link>`,
		`sold by Mega &lt;Shop&gt;`,
		`<category>store-a</category>`,
		`<category>Phones</category>`,
		`type="image/webp"`,
		`<generator>Price-Comb/test</generator>`,
	}
	for _, expected := range expectedElements {
		if !strings.Contains(rss, expected) {
			t.Errorf("Expected RSS to contain '%s'", expected)
		}
	}

	if strings.Contains(rss, "sold by store-b") {
		t.Error("Seller equal to the store should not be repeated")
	}
	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got %d", strings.Count(rss, "<item>"))
	}

	var doc struct {
		Channel struct {
			Items []struct {
				Title string `xml:"title"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("Generated RSS is not well-formed: %v", err)
	}
	if len(doc.Channel.Items) != 2 {
		t.Errorf("Expected 2 parsed items, got %d", len(doc.Channel.Items))
	}
}

func TestGenerateRSSEmpty(t *testing.T) {
	rss, err := NewGenerator().Run(Channel{SearchTerm: "nothing"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if strings.Contains(rss, "atom:link") {
		t.Error("Expected no self link when none is configured")
	}
	if !strings.Contains(rss, "<lastBuildDate>") {
		t.Error("Expected lastBuildDate to be set")
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{25990, "25.990"},
		{1490000, "1.490.000"},
		{1234.6, "1.235"},
	}

	for _, tt := range tests {
		if got := FormatPrice(tt.price); got != tt.want {
			t.Errorf("FormatPrice(%v) = %s, want %s", tt.price, got, tt.want)
		}
	}
}
