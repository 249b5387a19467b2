package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObjectsEvaluated counts objects evaluated against the current rule set
	ObjectsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrules_objects_evaluated_total",
			Help: "Total number of objects evaluated",
		},
		[]string{"source"},
	)

	// RuleMatches counts matched rules across all evaluated objects
	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrules_rule_matches_total",
			Help: "Total number of rule matches reported",
		},
		[]string{"source"},
	)

	// EvaluationDuration tracks wall time of one evaluation call (single or batch)
	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagrules_evaluation_duration_seconds",
			Help:    "Evaluation call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"source"},
	)

	// CompileTotal counts rule set compilations by result
	CompileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrules_compile_total",
			Help: "Total number of rule set compilations",
		},
		[]string{"result"},
	)

	// CompileDuration tracks rule set compilation duration
	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagrules_compile_duration_seconds",
			Help:    "Rule set compilation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RulesRejected counts rules skipped by lenient compilation, by error kind
	RulesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrules_rules_rejected_total",
			Help: "Total number of rules rejected during compilation",
		},
		[]string{"kind"},
	)

	// RuleSetRules is the rule count of the published rule set
	RuleSetRules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagrules_ruleset_rules",
			Help: "Number of rules in the published rule set",
		},
	)

	// RuleSetSubrules is the subrule count of the published rule set
	RuleSetSubrules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagrules_ruleset_subrules",
			Help: "Number of subrules in the published rule set",
		},
	)

	// ReloadsTotal counts rule set reloads by trigger and result
	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrules_reloads_total",
			Help: "Total number of rule set reloads",
		},
		[]string{"trigger", "result"},
	)
)

// Label values
const (
	SourceRPC = "rpc"
	SourceCLI = "cli"

	ResultOK    = "ok"
	ResultError = "error"

	TriggerRPC     = "rpc"
	TriggerWatch   = "watch"
	TriggerStartup = "startup"
)
