package filings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
)

const (
	tickerMapURL   = "https://www.sec.gov/files/company_tickers.json"
	submissionsURL = "https://data.sec.gov/submissions/CIK%s.json"
	archivesURL    = "https://www.sec.gov/Archives/edgar/data/%d/%s/%s"
)

const (
	// minSectionLen is the smallest carve considered usable; below it the
	// document head is served instead.
	minSectionLen = 500
	fallbackLen   = 10000
)

// Section markers in annual reports. Heuristic: real filings vary, and
// the fallback covers the ones that do not match.
var (
	businessRe = regexp.MustCompile(`(?i)Item 1\.\s+Business`)
	riskRe     = regexp.MustCompile(`(?i)Item 1A\.\s+Risk Factors`)
	legalRe    = regexp.MustCompile(`(?i)Item 3\.\s+Legal Proceedings`)
)

// Client fetches annual-report text from SEC EDGAR. EDGAR requires a
// User-Agent with a contact address on every request.
type Client struct {
	userAgent string
	client    *http.Client

	mu  sync.Mutex
	cik map[string]string
}

// NewClient creates new EDGAR client
func NewClient(userAgent string) *Client {
	return &Client{
		userAgent: userAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// LatestAnnualReportText returns the Business and Risk Factors sections
// of the ticker's most recent 10-K, falling back to the document head
// when the section markers cannot be found.
func (c *Client) LatestAnnualReportText(ctx context.Context, ticker string) (string, error) {
	cik, err := c.cikFor(ctx, ticker)
	if err != nil {
		return "", err
	}

	accession, doc, err := c.latestAnnualFiling(ctx, cik)
	if err != nil {
		return "", err
	}

	cikNum, err := strconv.Atoi(cik)
	if err != nil {
		return "", fmt.Errorf("malformed CIK %q: %w", cik, err)
	}

	raw, err := c.get(ctx, fmt.Sprintf(archivesURL, cikNum, accession, doc))
	if err != nil {
		return "", fmt.Errorf("failed to fetch filing document: %w", err)
	}

	text := carveSections(htmlToText(string(raw)))

	logger.Debug("fetched annual report",
		zap.String("ticker", ticker),
		zap.String("accession", accession),
		zap.Int("chars", len(text)),
	)

	return text, nil
}

// cikFor resolves a ticker to its zero-padded CIK, loading the SEC
// ticker map on first use.
func (c *Client) cikFor(ctx context.Context, ticker string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cik == nil {
		m, err := c.loadTickerMap(ctx)
		if err != nil {
			return "", err
		}
		c.cik = m
	}

	cik, ok := c.cik[strings.ToUpper(ticker)]
	if !ok {
		return "", fmt.Errorf("no CIK mapping for ticker %s", ticker)
	}
	return cik, nil
}

func (c *Client) loadTickerMap(ctx context.Context) (map[string]string, error) {
	raw, err := c.get(ctx, tickerMapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticker map: %w", err)
	}

	var entries map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ticker map: %w", err)
	}

	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[strings.ToUpper(e.Ticker)] = fmt.Sprintf("%010d", e.CIK)
	}

	logger.Debug("loaded SEC ticker map", zap.Int("tickers", len(m)))
	return m, nil
}

// submissionIndex is the recent-filings slice layout of the EDGAR
// submissions feed: parallel arrays indexed together.
type submissionIndex struct {
	Form            []string `json:"form"`
	AccessionNumber []string `json:"accessionNumber"`
	PrimaryDocument []string `json:"primaryDocument"`
}

func (c *Client) latestAnnualFiling(ctx context.Context, cik string) (accession, doc string, err error) {
	raw, err := c.get(ctx, fmt.Sprintf(submissionsURL, cik))
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch submissions: %w", err)
	}

	var payload struct {
		Filings struct {
			Recent submissionIndex `json:"recent"`
		} `json:"filings"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", fmt.Errorf("failed to decode submissions: %w", err)
	}

	accession, doc, ok := firstAnnualFiling(payload.Filings.Recent)
	if !ok {
		return "", "", fmt.Errorf("no 10-K filing on record for CIK %s", cik)
	}
	return accession, doc, nil
}

// firstAnnualFiling finds the most recent 10-K in the parallel filing
// arrays and returns its de-dashed accession number and document name.
func firstAnnualFiling(recent submissionIndex) (accession, doc string, ok bool) {
	for i, form := range recent.Form {
		if form != "10-K" {
			continue
		}
		if i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			return "", "", false
		}
		return strings.ReplaceAll(recent.AccessionNumber[i], "-", ""), recent.PrimaryDocument[i], true
	}
	return "", "", false
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// carveSections keeps the Business (Item 1 to 1A) and Risk Factors
// (Item 1A to 3) spans. A carve under minSectionLen usually means the
// markers hit the table of contents, so the document head wins.
func carveSections(text string) string {
	business := businessRe.FindStringIndex(text)
	risk := riskRe.FindStringIndex(text)
	legal := legalRe.FindStringIndex(text)

	var b strings.Builder
	if business != nil && risk != nil && business[0] < risk[0] {
		b.WriteString(text[business[0]:risk[0]])
	}
	if risk != nil && legal != nil && risk[0] < legal[0] {
		b.WriteString(text[risk[0]:legal[0]])
	}

	if carved := b.String(); len(carved) > minSectionLen {
		return carved
	}
	if len(text) > fallbackLen {
		return text[:fallbackLen]
	}
	return text
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&#160;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// htmlToText strips markup from a filing document, dropping script and
// style payloads entirely.
func htmlToText(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))

	lower := strings.ToLower(doc)
	inTag := false
	skipUntil := ""

	for i := 0; i < len(doc); i++ {
		if skipUntil != "" {
			if doc[i] == '<' && strings.HasPrefix(lower[i:], skipUntil) {
				i += len(skipUntil) - 1
				skipUntil = ""
				inTag = true
			}
			continue
		}

		switch {
		case doc[i] == '<':
			if strings.HasPrefix(lower[i:], "<script") {
				skipUntil = "</script"
			} else if strings.HasPrefix(lower[i:], "<style") {
				skipUntil = "</style"
			}
			inTag = true
		case doc[i] == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteByte(doc[i])
		}
	}

	return strings.Join(strings.Fields(entityReplacer.Replace(b.String())), " ")
}
