package resilience

import "time"

type CircuitBreakerConfig struct {
	Enabled      bool
	FailureLimit int
	CoolDown     time.Duration
	ProbeBudget  int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:      true,
		FailureLimit: 5,
		CoolDown:     15 * time.Second,
		ProbeBudget:  2,
	}
}

func NormalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	defaults := DefaultCircuitBreakerConfig()
	if cfg.FailureLimit < 1 {
		cfg.FailureLimit = defaults.FailureLimit
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = defaults.CoolDown
	}
	if cfg.ProbeBudget < 1 {
		cfg.ProbeBudget = defaults.ProbeBudget
	}
	return cfg
}
