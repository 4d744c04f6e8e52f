package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricGamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trdelnik_games_started_total",
		Help: "Confirmed game starts",
	})

	metricStepsPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trdelnik_steps_total",
		Help: "Confirmed step resolutions by outcome",
	}, []string{"outcome"})

	metricCashouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trdelnik_cashouts_total",
		Help: "Confirmed cashouts",
	})
)
