package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 经济系统核心指标，挂在 gin 的 /metrics 路由上
var (
	IncomeCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starfarm_income_collected_total",
		Help: "Total stars credited by farm income collection",
	})

	FarmsPurchased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starfarm_farms_purchased_total",
		Help: "Total number of farms purchased",
	})

	BidsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starfarm_auction_bids_accepted_total",
		Help: "Total number of accepted auction bids",
	})

	BidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starfarm_auction_bids_rejected_total",
		Help: "Total number of rejected auction bids by reason",
	}, []string{"reason"})

	AuctionsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starfarm_auctions_settled_total",
		Help: "Total number of settled auctions",
	})

	WagersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starfarm_casino_wagers_total",
		Help: "Total number of casino wagers by game",
	}, []string{"game"})
)
