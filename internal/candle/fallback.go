package candle

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitly/go-simplejson"
)

// httpGet issues a bounded-timeout GET and returns the raw body.
func httpGet(url string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// CoinbaseSource fetches BTC-USD candles from Coinbase's public product
// candles endpoint. Each row is `[time, low, high, open, close, volume]`,
// oldest-to-newest order is NOT guaranteed by Coinbase (it returns
// newest-first), so rows are reversed after parsing.
type CoinbaseSource struct{}

func (s *CoinbaseSource) Name() string { return "coinbase" }

func (s *CoinbaseSource) FetchCandles(limit int) ([]Candle, error) {
	url := fmt.Sprintf("https://api.exchange.coinbase.com/products/BTC-USD/candles?granularity=60&limit=%d", limit)
	data, err := httpGet(url)
	if err != nil {
		return nil, fmt.Errorf("coinbase: %w", err)
	}

	js, err := simplejson.NewJson(data)
	if err != nil {
		return nil, fmt.Errorf("coinbase: parse: %w", err)
	}

	rows := js.MustArray()
	out := make([]Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := js.GetIndex(i)
		if len(row.MustArray()) < 6 {
			continue
		}
		out = append(out, Candle{
			OpenTimeMs: row.GetIndex(0).MustInt64() * 1000,
			Low:        row.GetIndex(1).MustFloat64(),
			High:       row.GetIndex(2).MustFloat64(),
			Open:       row.GetIndex(3).MustFloat64(),
			Close:      row.GetIndex(4).MustFloat64(),
			Volume:     row.GetIndex(5).MustFloat64(),
		})
	}
	return out, nil
}

// KrakenSource fetches XBT/USD OHLC candles from Kraken's public OHLC
// endpoint. Rows are `[time, open, high, low, close, vwap, volume, count]`
// with every numeric field except `time` and `count` encoded as a string.
type KrakenSource struct{}

func (s *KrakenSource) Name() string { return "kraken" }

func (s *KrakenSource) FetchCandles(limit int) ([]Candle, error) {
	data, err := httpGet("https://api.kraken.com/0/public/OHLC?pair=XBTUSD&interval=1")
	if err != nil {
		return nil, fmt.Errorf("kraken: %w", err)
	}

	js, err := simplejson.NewJson(data)
	if err != nil {
		return nil, fmt.Errorf("kraken: parse: %w", err)
	}

	if errs := js.Get("error").MustArray(); len(errs) > 0 {
		return nil, fmt.Errorf("kraken: api error: %v", errs)
	}

	result := js.Get("result")
	var pairKey string
	for k := range result.MustMap() {
		if k != "last" {
			pairKey = k
			break
		}
	}
	if pairKey == "" {
		return nil, fmt.Errorf("kraken: no pair key in response")
	}

	rows := result.Get(pairKey).MustArray()
	start := 0
	if len(rows) > limit {
		start = len(rows) - limit
	}

	out := make([]Candle, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		row := result.Get(pairKey).GetIndex(i)
		if len(row.MustArray()) < 7 {
			continue
		}
		open, err1 := row.GetIndex(1).String()
		high, err2 := row.GetIndex(2).String()
		low, err3 := row.GetIndex(3).String()
		closeP, err4 := row.GetIndex(4).String()
		volume, err5 := row.GetIndex(6).String()
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		c, err := klineToCandle(row.GetIndex(0).MustInt64()*1000, open, high, low, closeP, volume)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// BitstampSource fetches BTC/USD OHLC candles from Bitstamp's public OHLC
// endpoint. Response is nested under `data.ohlc`, an array of objects (not
// positional arrays like the other sources) keyed by string field name.
type BitstampSource struct{}

func (s *BitstampSource) Name() string { return "bitstamp" }

func (s *BitstampSource) FetchCandles(limit int) ([]Candle, error) {
	url := fmt.Sprintf("https://www.bitstamp.net/api/v2/ohlc/btcusd/?step=60&limit=%d", limit)
	data, err := httpGet(url)
	if err != nil {
		return nil, fmt.Errorf("bitstamp: %w", err)
	}

	js, err := simplejson.NewJson(data)
	if err != nil {
		return nil, fmt.Errorf("bitstamp: parse: %w", err)
	}

	rows := js.Get("data").Get("ohlc").MustArray()
	out := make([]Candle, 0, len(rows))
	for i := range rows {
		row := js.Get("data").Get("ohlc").GetIndex(i)
		ts, err := row.Get("timestamp").String()
		if err != nil {
			continue
		}
		tsInt, err := parseUnixSeconds(ts)
		if err != nil {
			continue
		}
		open, err1 := row.Get("open").String()
		high, err2 := row.Get("high").String()
		low, err3 := row.Get("low").String()
		closeP, err4 := row.Get("close").String()
		volume, err5 := row.Get("volume").String()
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		c, err := klineToCandle(tsInt*1000, open, high, low, closeP, volume)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseUnixSeconds(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
