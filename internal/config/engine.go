package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScoreBand maps a minimum composite score to a qualitative label.
type ScoreBand struct {
	Label    string
	MinScore float64
}

// ScoreWeights are the four component weights the composite score is built
// from; they must sum to 1.0.
type ScoreWeights struct {
	IdentityResolution float64
	RevenueMatch       float64
	TimingAlignment    float64
	DataCompleteness   float64
}

// FuzzyThresholds gate the identity resolver's second pass.
type FuzzyThresholds struct {
	AutoAcceptAbove float64
	CandidateAbove  float64
}

// EngineConfig holds the tunable constants the reconciliation engine applies
// uniformly across every session: fuzzy-match thresholds, the variance
// tolerance, score bands and weights, and the corporate-suffix closed set
// used during name normalization.
type EngineConfig struct {
	Fuzzy              FuzzyThresholds
	ToleranceUSD       float64
	ScoreWeights       ScoreWeights
	ScoreBands         []ScoreBand
	RiskLevels         []RiskLevel
	CorporateSuffixes  []string
}

// RiskLevel classifies a session's total revenue-at-risk.
type RiskLevel struct {
	Level          string
	MinOutstanding float64
}

// DefaultEngineConfig returns the engine defaults called out by the base
// specification.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Fuzzy: FuzzyThresholds{
			AutoAcceptAbove: 0.95,
			CandidateAbove:  0.75,
		},
		ToleranceUSD: 1.00,
		ScoreWeights: ScoreWeights{
			IdentityResolution: 0.25,
			RevenueMatch:       0.35,
			TimingAlignment:    0.25,
			DataCompleteness:   0.15,
		},
		ScoreBands: []ScoreBand{
			{Label: "green", MinScore: 90},
			{Label: "amber", MinScore: 75},
			{Label: "orange", MinScore: 60},
			{Label: "red", MinScore: 0},
		},
		RiskLevels: []RiskLevel{
			{Level: "high", MinOutstanding: 100_000},
			{Level: "medium", MinOutstanding: 10_000},
			{Level: "low", MinOutstanding: 0},
		},
		CorporateSuffixes: []string{
			"inc", "inc.", "incorporated",
			"llc", "l.l.c.",
			"ltd", "ltd.", "limited",
			"corp", "corp.", "corporation",
			"co", "co.", "company",
			"plc", "gmbh", "sa", "s.a.", "bv", "b.v.", "pty",
		},
	}
}

// EngineConfigHolder is a hot-reloadable view over EngineConfig, adapted from
// the teacher's BillingConfigHolder: an atomic.Value populated from a viper
// document and refreshed on fsnotify change events.
type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

// NewEngineConfigHolder loads engine.yaml (falling back to defaults when no
// file is present) and watches it for changes.
func NewEngineConfigHolder() (*EngineConfigHolder, error) {
	v := viper.New()
	v.SetConfigName("engine")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/reconciler")

	v.SetEnvPrefix("RECONCILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &EngineConfigHolder{}
	cfg := DefaultEngineConfig()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(cfg)
		return holder, nil
	}

	if err := v.UnmarshalKey("engine", &cfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultEngineConfig()
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			log.Printf("[engine-config] reload failed: %v", err)
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			log.Printf("[engine-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[engine-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Get returns the current engine configuration snapshot.
func (h *EngineConfigHolder) Get() EngineConfig {
	return h.current.Load().(EngineConfig)
}

func validateEngineConfig(cfg EngineConfig) error {
	if len(cfg.ScoreBands) == 0 {
		return errors.New("engine.scoreBands cannot be empty")
	}
	if len(cfg.RiskLevels) == 0 {
		return errors.New("engine.riskLevels cannot be empty")
	}
	if cfg.Fuzzy.CandidateAbove <= 0 || cfg.Fuzzy.AutoAcceptAbove <= cfg.Fuzzy.CandidateAbove {
		return errors.New("engine.fuzzy thresholds must satisfy 0 < candidate < autoAccept")
	}
	sum := cfg.ScoreWeights.IdentityResolution + cfg.ScoreWeights.RevenueMatch +
		cfg.ScoreWeights.TimingAlignment + cfg.ScoreWeights.DataCompleteness
	if sum < 0.999 || sum > 1.001 {
		return errors.New("engine.scoreWeights must sum to 1.0")
	}
	return nil
}

// Band returns the label for a composite score, falling back to the lowest
// configured band.
func (c EngineConfig) Band(score float64) string {
	best := ""
	bestMin := -1.0
	for _, band := range c.ScoreBands {
		if score >= band.MinScore && band.MinScore > bestMin {
			best = band.Label
			bestMin = band.MinScore
		}
	}
	if best == "" {
		for _, band := range c.ScoreBands {
			if best == "" || band.MinScore < bestMin {
				best = band.Label
				bestMin = band.MinScore
			}
		}
	}
	return best
}

// RiskLevelFor classifies a revenue-at-risk amount.
func (c EngineConfig) RiskLevelFor(amount float64) string {
	best := ""
	bestMin := -1.0
	for _, level := range c.RiskLevels {
		if amount >= level.MinOutstanding && level.MinOutstanding > bestMin {
			best = level.Level
			bestMin = level.MinOutstanding
		}
	}
	return best
}

// IsCorporateSuffix reports whether token (already lowercased) is a member
// of the configured corporate-suffix closed set.
func (c EngineConfig) IsCorporateSuffix(token string) bool {
	for _, suffix := range c.CorporateSuffixes {
		if token == suffix {
			return true
		}
	}
	return false
}
