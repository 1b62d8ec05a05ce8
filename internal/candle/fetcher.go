package candle

import "log/slog"

// Fetcher is the public entry point used by the rest of the bot: one
// operation, fetch_recent_candles(limit), backed by an ordered fallback
// chain and a shared cache.
type Fetcher struct {
	sources []Source
	cache   *Cache
}

// NewFetcher builds the fixed fallback chain: Binance first, then three
// alternate spot exchanges.
func NewFetcher(cache *Cache) *Fetcher {
	return &Fetcher{
		sources: []Source{
			NewBinanceSource(),
			&CoinbaseSource{},
			&KrakenSource{},
			&BitstampSource{},
		},
		cache: cache,
	}
}

// FetchRecentCandles returns up to limit ordered 1-minute candles and the
// name of the source that produced them, using the cache when fresh.
// Failure is non-fatal: callers must tolerate an empty slice.
func (f *Fetcher) FetchRecentCandles(limit int) ([]Candle, string) {
	if candles, source, ok := f.cache.Get(); ok {
		return candles, source
	}

	for _, src := range f.sources {
		candles, err := src.FetchCandles(limit)
		if err != nil {
			slog.Debug("candle source failed, trying next", "source", src.Name(), "err", err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		f.cache.Set(candles, src.Name())
		return candles, src.Name()
	}

	slog.Warn("all candle sources failed")
	return nil, ""
}
