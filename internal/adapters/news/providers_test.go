package news

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSymbolsFrom(t *testing.T) {
	tests := []struct {
		name    string
		queries []string
		max     int
		want    []string
	}{
		{
			name:    "tickers pass through upper-cased",
			queries: []string{"AAPL", "nvda", "TSM"},
			max:     5,
			want:    []string{"AAPL", "NVDA", "TSM"},
		},
		{
			name:    "search phrases are skipped",
			queries: []string{"AAPL supply chain disruption latest news", "NVDA", "chip shortage"},
			max:     5,
			want:    []string{"NVDA"},
		},
		{
			name:    "long and non-alpha entries are skipped",
			queries: []string{"BRK.B", "TOOLONG", "AMD"},
			max:     5,
			want:    []string{"AMD"},
		},
		{
			name:    "capped at max",
			queries: []string{"AAPL", "NVDA", "AMD", "INTC"},
			max:     2,
			want:    []string{"AAPL", "NVDA"},
		},
		{
			name:    "empty input",
			queries: nil,
			max:     5,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := symbolsFrom(tt.queries, tt.max)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>"AAPL OR NVDA" - Google News</title>
    <item>
      <title>Apple supplier halts output after quake</title>
      <link>https://example.com/quake</link>
      <pubDate>Mon, 10 Jun 2024 08:30:00 GMT</pubDate>
      <description>&lt;a href="https://example.com/quake"&gt;Apple supplier halts output&lt;/a&gt; after a magnitude 7 quake hit the region.</description>
      <source url="https://reuters.com">Reuters</source>
    </item>
    <item>
      <title>NVIDIA unveils new accelerator</title>
      <link>https://example.com/accel</link>
      <pubDate>Mon, 10 Jun 2024 07:00:00 GMT</pubDate>
      <description>NVIDIA announced a new data-center accelerator line.</description>
      <source url="https://cnbc.com">CNBC</source>
    </item>
    <item>
      <title></title>
      <link>https://example.com/untitled</link>
    </item>
  </channel>
</rss>`

func TestParseGoogleNewsFeed(t *testing.T) {
	got, err := parseGoogleNewsFeed(strings.NewReader(sampleFeed), 10)
	if err != nil {
		t.Fatalf("parseGoogleNewsFeed failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 items (untitled dropped), got %d", len(got))
	}

	first := got[0]
	if first.Title != "Apple supplier halts output after quake" {
		t.Errorf("Unexpected title: %q", first.Title)
	}
	if first.URL != "https://example.com/quake" {
		t.Errorf("Unexpected URL: %q", first.URL)
	}
	if first.Source != "Reuters" {
		t.Errorf("Expected source Reuters, got %q", first.Source)
	}
	if strings.Contains(first.Content, "<") {
		t.Errorf("Expected HTML stripped from content, got %q", first.Content)
	}
	if !strings.Contains(first.Content, "magnitude 7 quake") {
		t.Errorf("Expected description text preserved, got %q", first.Content)
	}

	second := got[1]
	want := time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)
	if !second.PublishedAt.Equal(want) {
		t.Errorf("Expected pubDate %v, got %v", want, second.PublishedAt)
	}
}

func TestParseGoogleNewsFeedLimit(t *testing.T) {
	got, err := parseGoogleNewsFeed(strings.NewReader(sampleFeed), 1)
	if err != nil {
		t.Fatalf("parseGoogleNewsFeed failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected limit of 1, got %d items", len(got))
	}
}

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`<a href="x">Apple</a> rises`, "Apple rises"},
		{"plain text", "plain text"},
		{"<p>one</p><p>two</p>", "one two"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := stripHTMLTags(tt.in); got != tt.want {
			t.Errorf("stripHTMLTags(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
