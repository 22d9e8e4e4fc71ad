// Package metrics exposes run metrics through a Prometheus registry and
// writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/f1-strategy-lab/strategylab/sim/season"
)

const namespace = "strategylab"

// Registry holds the metrics of one run.
type Registry struct {
	reg *prometheus.Registry

	RacesSimulated   prometheus.Counter
	RacesSkipped     prometheus.Counter
	CandidatesTotal  prometheus.Counter
	DrawsTotal       prometheus.Counter
	Fallbacks        *prometheus.CounterVec
	StageDuration    *prometheus.GaugeVec
	ModelError       *prometheus.GaugeVec
	StrategyScore    *prometheus.GaugeVec
	TitleProbability *prometheus.GaugeVec
	ExpectedPoints   *prometheus.GaugeVec
}

// NewRegistry creates and registers every run metric.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RacesSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "races_simulated_total",
			Help:      "Calendar races with a strategy recommendation",
		}),
		RacesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "races_skipped_total",
			Help:      "Calendar races without pre-race data for the target driver",
		}),
		CandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Strategy candidates simulated across all races",
		}),
		DrawsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Baseline Monte Carlo draws across all races and candidates",
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallback decisions taken during the run",
		}, []string{"kind"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage",
		}, []string{"stage"}),
		ModelError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pace_model_error",
			Help:      "Pace model validation quality",
		}, []string{"metric"}),
		StrategyScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strategy_score",
			Help:      "Composite score of the recommended strategy",
		}, []string{"race"}),
		TitleProbability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "title_probability",
			Help:      "Projected championship title probability",
		}, []string{"championship", "name"}),
		ExpectedPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expected_points",
			Help:      "Projected mean season points",
		}, []string{"championship", "name"}),
	}
	r.reg.MustRegister(
		r.RacesSimulated, r.RacesSkipped, r.CandidatesTotal, r.DrawsTotal, r.Fallbacks,
		r.StageDuration, r.ModelError, r.StrategyScore, r.TitleProbability, r.ExpectedPoints,
	)
	return r
}

// Gatherer returns the underlying registry for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveRun records a completed season run.
func (r *Registry) ObserveRun(res *season.Result) {
	for _, rr := range res.Races {
		r.RacesSimulated.Inc()
		r.CandidatesTotal.Add(float64(rr.Candidates))
		r.DrawsTotal.Add(float64(rr.Draws))
		r.StrategyScore.WithLabelValues(rr.Race.ID).Set(rr.Recommendation.Primary.Score.Composite)
	}
	r.RacesSkipped.Add(float64(len(res.Skipped)))
	if res.Trace != nil {
		for _, f := range res.Trace.Fallbacks {
			r.Fallbacks.WithLabelValues(f.Kind).Inc()
		}
	}
	for stage, d := range res.Durations {
		r.StageDuration.WithLabelValues(stage).Set(d.Seconds())
	}
	r.ModelError.WithLabelValues("mae").Set(res.Metrics.MAE)
	r.ModelError.WithLabelValues("rmse").Set(res.Metrics.RMSE)
	r.ModelError.WithLabelValues("r2").Set(res.Metrics.R2)
	if res.Projection != nil {
		for _, d := range res.Projection.Drivers {
			r.TitleProbability.WithLabelValues("drivers", d.Name).Set(d.TitleProbability)
			r.ExpectedPoints.WithLabelValues("drivers", d.Name).Set(d.MeanPoints)
		}
		for _, c := range res.Projection.Constructors {
			r.TitleProbability.WithLabelValues("constructors", c.Name).Set(c.TitleProbability)
			r.ExpectedPoints.WithLabelValues("constructors", c.Name).Set(c.MeanPoints)
		}
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
