package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"KabuSentinel/internal/model"
)

const defaultCreditURL = "https://kabutan.jp/stock/kabuka?code=%s&ashi=shin"

// Credit ratio bands used by CreditScore.
const (
	shortHeavyRatio = 1.0
	longHeavyRatio  = 8.0
)

// CreditScraper reads the weekly margin-balance table from a stock page.
type CreditScraper struct {
	URLFormat string // fmt pattern taking the code
	Client    *http.Client
}

// NewCreditScraper creates a scraper. An empty urlFormat uses the default page.
func NewCreditScraper(urlFormat string, client *http.Client) *CreditScraper {
	if urlFormat == "" {
		urlFormat = defaultCreditURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &CreditScraper{URLFormat: urlFormat, Client: client}
}

// FetchCreditBalance returns margin-balance rows, newest first as the page lists them.
func (s *CreditScraper) FetchCreditBalance(ctx context.Context, code string) ([]model.CreditBalance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.URLFormat, code), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credit fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credit fetch: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("credit parse: %w", err)
	}
	rows := parseCreditTable(doc)
	if len(rows) == 0 {
		return nil, fmt.Errorf("credit %s: %w", code, ErrNoData)
	}
	return rows, nil
}

type creditColumns struct {
	date, sell, buy, ratio int
}

// parseCreditTable finds the first table whose header names both 売残 and 買残.
// Columns are located by header text, so their order may vary.
func parseCreditTable(doc *goquery.Document) []model.CreditBalance {
	var out []model.CreditBalance
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := creditColumns{date: -1, sell: -1, buy: -1, ratio: -1}
		table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			switch {
			case strings.Contains(text, "売残"):
				cols.sell = i
			case strings.Contains(text, "買残"):
				cols.buy = i
			case strings.Contains(text, "倍率"):
				cols.ratio = i
			case strings.Contains(text, "日") || strings.EqualFold(text, "date"):
				cols.date = i
			}
		})
		if cols.sell < 0 || cols.buy < 0 {
			return true
		}

		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("th, td")
			cell := func(i int) string {
				if i < 0 || i >= cells.Length() {
					return ""
				}
				return strings.TrimSpace(cells.Eq(i).Text())
			}

			sell, errSell := parseNumber(cell(cols.sell))
			buy, errBuy := parseNumber(cell(cols.buy))
			if errSell != nil || errBuy != nil {
				return
			}
			row := model.CreditBalance{SellTotal: sell, BuyTotal: buy}
			if ratio, err := parseNumber(cell(cols.ratio)); err == nil {
				row.Ratio = ratio
			} else if sell > 0 {
				row.Ratio = buy / sell
			}
			row.Date, _ = parseCreditDate(cell(cols.date))
			out = append(out, row)
		})
		return false
	})
	return out
}

func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer(",", "", "倍", "", "株", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}

func parseCreditDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006/01/02", "06/01/02", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// CreditScore rates the latest margin ratio: short-heavy books are a
// squeeze tailwind (+1), long-heavy books are overhead supply (-1).
func CreditScore(rows []model.CreditBalance) (int, string) {
	if len(rows) == 0 {
		return 0, "no data"
	}
	ratio := rows[0].Ratio
	note := fmt.Sprintf("margin ratio %.2fx", ratio)
	switch {
	case ratio < shortHeavyRatio:
		return 1, note + " (short-heavy)"
	case ratio > longHeavyRatio:
		return -1, note + " (long-heavy)"
	default:
		return 0, note
	}
}
