package telemetry

import "polyPaperBot/internal/ports"

// GaugeActiveSubscriptions tracks how many market data streams the feed
// is currently subscribed to.
const GaugeActiveSubscriptions = "market_data_active_subscriptions"

// SubscriptionView is the read side of a market data feed: the set of
// stream identifiers it currently holds open.
type SubscriptionView interface {
	Subscriptions() []string
}

// UpdateSubsGauge reads the feed's current subscription set, publishes
// its size as a gauge, and returns the count. A nil feed yields 0 with
// no telemetry call. Telemetry failures are best-effort and do not
// affect the returned count.
func UpdateSubsGauge(feed SubscriptionView, tel ports.Telemetry) int {
	if feed == nil {
		return 0
	}
	seen := make(map[string]struct{})
	for _, id := range feed.Subscriptions() {
		seen[id] = struct{}{}
	}
	count := len(seen)
	if tel != nil {
		_ = tel.SetGauge(GaugeActiveSubscriptions, float64(count))
	}
	return count
}
