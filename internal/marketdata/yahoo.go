// Package marketdata retrieves, stores and caches the daily price histories a
// simulation consumes
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/alphalab/internal/contracts"
	"github.com/wonny/alphalab/pkg/httputil"
	"github.com/wonny/alphalab/pkg/logger"
)

// DefaultYahooURL is the chart endpoint base
const DefaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooClient reads daily bars from the Yahoo Finance chart API
// ⭐ SSOT: 가격 히스토리 외부 호출은 이 클라이언트에서만
type YahooClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewYahooClient creates a client; an empty baseURL selects DefaultYahooURL
func NewYahooClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *YahooClient {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &YahooClient{
		httpClient: httpClient,
		logger:     log.Component("yahoo"),
		baseURL:    baseURL,
	}
}

// chartResponse mirrors the subset of the chart payload we read.
// Missing values arrive as null, hence the pointers.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns split/dividend adjusted daily bars for [start, end], both inclusive.
// An unknown ticker yields an empty slice.
func (c *YahooClient) History(ctx context.Context, ticker string, start, end time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(contracts.NormalizeDate(start).Unix(), 10))
	params.Set("period2", strconv.FormatInt(contracts.NormalizeDate(end).AddDate(0, 0, 1).Unix(), 10))
	params.Set("interval", "1d")

	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.WithField("ticker", ticker).Debug("No history for ticker")
		return []contracts.Bar{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return parseChart(body)
}

// parseChart converts a chart payload into ascending, adjusted bars.
// Rows with a null close are dropped; a zero close is kept and left unadjusted.
func parseChart(body []byte) ([]contracts.Bar, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if e := payload.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return []contracts.Bar{}, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []contracts.Bar{}, nil
	}
	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	at := func(xs []*float64, i int) (float64, bool) {
		if i >= len(xs) || xs[i] == nil {
			return 0, false
		}
		return *xs[i], true
	}

	bars := make([]contracts.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice, ok := at(quote.Close, i)
		if !ok {
			continue
		}
		open, _ := at(quote.Open, i)
		high, _ := at(quote.High, i)
		low, _ := at(quote.Low, i)
		volume, _ := at(quote.Volume, i)

		// auto adjust: scale OHLC by adjclose/close
		ratio := 1.0
		if a, ok := at(adj, i); ok && closePrice != 0 {
			ratio = a / closePrice
		}

		// 거래소 현지 날짜 기준
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		bars = append(bars, contracts.Bar{
			Date:   contracts.NormalizeDate(local),
			Open:   open * ratio,
			High:   high * ratio,
			Low:    low * ratio,
			Close:  closePrice * ratio,
			Volume: volume,
		})
	}

	return contracts.CloneBars(bars), nil
}

var _ contracts.HistorySource = (*YahooClient)(nil)
