package core

import (
	"context"
	"time"
)

// Evaluator runs a single backtest for a parameter set and reports metrics.
type Evaluator interface {
	Evaluate(ctx context.Context, params ParameterSet) (*SweepResult, error)
}

// ParameterSet represents a collection of parameters with specific values
type ParameterSet map[string]any

// MetricName defines standard metric names for sweep ranking
type MetricName string

const (
	MetricProfit       MetricName = "profit"
	MetricWinRate      MetricName = "win_rate"
	MetricPayoff       MetricName = "payoff"
	MetricProfitFactor MetricName = "profit_factor"
	MetricDrawdown     MetricName = "drawdown"
	MetricTradeCount   MetricName = "trade_count"
)

// ParameterType defines the data type of a parameter
type ParameterType string

const (
	TypeInt         ParameterType = "int"
	TypeFloat       ParameterType = "float"
	TypeBool        ParameterType = "bool"
	TypeCategorical ParameterType = "categorical"
)

// Parameter describes one dimension of the sweep grid.
type Parameter struct {
	Name        string
	Description string
	Type        ParameterType
	Default     any
	Min         any
	Max         any
	Step        any
	Options     []any
}

// SweepResult is the outcome of evaluating one parameter set.
type SweepResult struct {
	Parameters ParameterSet
	Metrics    map[string]float64
	Duration   time.Duration
}
