package candle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
)

// BinanceSource is the primary candle source: Binance's public, unauthenticated
// spot klines endpoint for BTCUSDT.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource builds a source against Binance's public spot API. No API
// key is required for kline/candlestick data.
func NewBinanceSource() *BinanceSource {
	return &BinanceSource{client: binance.NewClient("", "")}
}

func (s *BinanceSource) Name() string { return "binance" }

// FetchCandles pulls the most recent 1-minute klines for BTCUSDT.
func (s *BinanceSource) FetchCandles(limit int) ([]Candle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	klines, err := s.client.NewKlinesService().
		Symbol("BTCUSDT").
		Interval("1m").
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch klines: %w", err)
	}

	out := make([]Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func klineToCandle(openTime int64, open, high, low, close, volume string) (Candle, error) {
	o, err := strconv.ParseFloat(open, 64)
	if err != nil {
		return Candle{}, err
	}
	h, err := strconv.ParseFloat(high, 64)
	if err != nil {
		return Candle{}, err
	}
	l, err := strconv.ParseFloat(low, 64)
	if err != nil {
		return Candle{}, err
	}
	c, err := strconv.ParseFloat(close, 64)
	if err != nil {
		return Candle{}, err
	}
	v, err := strconv.ParseFloat(volume, 64)
	if err != nil {
		return Candle{}, err
	}
	return Candle{OpenTimeMs: openTime, Open: o, High: h, Low: l, Close: c, Volume: v}, nil
}
