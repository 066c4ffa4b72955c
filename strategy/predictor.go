package strategy

import (
	"fmt"

	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

// Prediction is the output of an injected model: class probabilities for
// the next move.
type Prediction struct {
	BuyProbability  float64
	SellProbability float64
}

// Predictor is the ML/RL collaborator contract. Implementations are
// stateless per call from the strategy's point of view; any model state
// is the predictor's internal concern. It must document its minimum
// required window so decisions can be skipped until enough history exists.
type Predictor interface {
	// Ready reports whether the underlying model is loaded.
	Ready() bool

	// MinWindow returns the minimum history length Predict requires.
	MinWindow() int

	// Predict maps the visible bar history to class probabilities.
	Predict(history []market.Bar) (Prediction, error)
}

// PredictorDriven converts an injected predictor's probabilities into
// Enter/Hold/Exit using configurable thresholds. The predictor is an
// explicit constructor dependency with its own lifecycle; nothing is
// loaded at package init.
type PredictorDriven struct {
	symbol string
	cfg    Config

	predictor Predictor
	entered   bool
}

// NewPredictorDriven wires a predictor-backed strategy. A missing or
// unloaded predictor is a setup error: it fails here, before the replay
// loop starts, never mid-run.
func NewPredictorDriven(symbol string, cfg Config) (*PredictorDriven, error) {
	if cfg.Predictor == nil {
		return nil, fmt.Errorf("predictor strategy: no predictor injected")
	}
	if !cfg.Predictor.Ready() {
		return nil, fmt.Errorf("predictor strategy: predictor is not loaded")
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = cfg.Predictor.MinWindow()
	}
	if cfg.MinHistory < cfg.Predictor.MinWindow() {
		return nil, fmt.Errorf("predictor strategy: min history %d below predictor window %d",
			cfg.MinHistory, cfg.Predictor.MinWindow())
	}
	if cfg.BuyThreshold <= 0 || cfg.BuyThreshold > 1 {
		cfg.BuyThreshold = 0.65
	}
	if cfg.SellThreshold <= 0 || cfg.SellThreshold > 1 {
		cfg.SellThreshold = 0.65
	}
	return &PredictorDriven{symbol: symbol, cfg: cfg, predictor: cfg.Predictor}, nil
}

func (s *PredictorDriven) Name() string {
	return fmt.Sprintf("predictor(buy>=%.2f)", s.cfg.BuyThreshold)
}

func (s *PredictorDriven) Symbol() string { return s.symbol }

func (s *PredictorDriven) Reset() { s.entered = false }

// OnFill keeps the entered flag in sync with fills the book accepted,
// not with orders merely issued.
func (s *PredictorDriven) OnFill(tr ledger.Trade) {
	if tr.Symbol != s.symbol {
		return
	}
	switch tr.Side {
	case ledger.Buy:
		s.entered = true
	case ledger.Sell:
		s.entered = false
	}
}

// SetBuyThreshold adjusts the entry threshold, e.g. from a market regime
// classification (bullish markets accept weaker signals than bearish ones).
func (s *PredictorDriven) SetBuyThreshold(t float64) {
	if t > 0 && t <= 1 {
		s.cfg.BuyThreshold = t
	}
}

func (s *PredictorDriven) Decide(step int, history []market.Bar, view LedgerView) (Action, error) {
	if len(history) < s.cfg.MinHistory {
		return Hold(), nil
	}

	pred, err := s.predictor.Predict(history)
	if err != nil {
		return Hold(), fmt.Errorf("predictor: %w", err)
	}

	if _, held := view.Position(s.symbol); held && s.entered {
		if pred.SellProbability >= s.cfg.SellThreshold {
			return Exit("PredictorSell"), nil
		}
		return Hold(), nil
	}

	if pred.BuyProbability >= s.cfg.BuyThreshold {
		return Enter(), nil
	}
	return Hold(), nil
}
