// Package universe discovers the instrument universe a simulation trades
package universe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/pkg/httputil"
	"github.com/wonny/alphalab/pkg/logger"
)

// DefaultSP500URL lists S&P 500 constituents in its first table
const DefaultSP500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// SourceSP500 identifies the scraped S&P 500 universe
const SourceSP500 = "sp500"

// ErrNoTickers is returned when a source yields an empty universe
var ErrNoTickers = errors.New("universe source returned no tickers")

// SP500Scraper reads index constituents from the "Symbol" column of the first page table
// ⭐ SSOT: 유니버스 스크래핑은 여기서만
type SP500Scraper struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewSP500Scraper creates a scraper; an empty url selects DefaultSP500URL
func NewSP500Scraper(httpClient *httputil.Client, log *logger.Logger, url string) *SP500Scraper {
	if url == "" {
		url = DefaultSP500URL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SP500Scraper{
		httpClient: httpClient,
		logger:     log.Component("universe"),
		url:        url,
	}
}

// Tickers fetches the page and returns constituents in document order
func (s *SP500Scraper) Tickers(ctx context.Context) ([]string, error) {
	body, err := s.httpClient.GetBody(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}

	tickers, err := ParseSymbolTable(body)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"source":  SourceSP500,
		"tickers": len(tickers),
	}).Info("Fetched universe")

	return tickers, nil
}

// ParseSymbolTable extracts the "Symbol" column of the first <table> in html
func ParseSymbolTable(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no table found", ErrNoTickers)
	}

	// 헤더 행에서 Symbol 컬럼 위치 찾기
	column := -1
	table.Find("tr").First().Find("th, td").EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(cell.Text()), "Symbol") {
			column = i
			return false
		}
		return true
	})
	if column < 0 {
		return nil, fmt.Errorf("%w: no Symbol column", ErrNoTickers)
	}

	var raw []string
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() <= column {
			return
		}
		raw = append(raw, cells.Eq(column).Text())
	})

	tickers := contracts.UniqueTickers(raw)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	return tickers, nil
}
