package engine

import (
	"github.com/shopspring/decimal"

	"github.com/coinquest/game-engine/internal/model"
)

// Difficulty levels accepted by start-game.
const (
	DifficultyEasy   = "Easy"
	DifficultyNormal = "Normal"
	DifficultyHard   = "Hard"
	DifficultyExpert = "Expert"
)

// gameConfig is the resolved starting configuration for one session.
type gameConfig struct {
	StartingCapital decimal.Decimal
	BonusMultiplier decimal.Decimal
	TargetROI       decimal.Decimal
	TargetNetWorth  decimal.Decimal
	TargetDays      int
}

// modeTargets holds the per-mode win targets before difficulty scaling.
// Survival has no targets: the session runs open-ended and never wins.
var modeTargets = map[model.GameMode]gameConfig{
	model.ModeROITarget: {
		TargetROI:      decimal.NewFromInt(100),
		TargetNetWorth: decimal.NewFromInt(10000),
		TargetDays:     30,
	},
	model.ModeNetWorthTarget: {
		TargetROI:      decimal.NewFromInt(200),
		TargetNetWorth: decimal.NewFromInt(15000),
		TargetDays:     45,
	},
	model.ModeTimeChallenge: {
		TargetROI:      decimal.NewFromInt(50),
		TargetNetWorth: decimal.NewFromInt(7500),
		TargetDays:     14,
	},
	model.ModeSurvival: {},
}

// difficultyScale multiplies the base capital, bonus multiplier, and ROI
// target. Normal is the identity.
type difficultyScale struct {
	Capital    decimal.Decimal
	Multiplier decimal.Decimal
	ROI        decimal.Decimal
}

var difficultyScales = map[string]difficultyScale{
	DifficultyEasy: {
		Capital:    decimal.NewFromFloat(1.5),
		Multiplier: decimal.NewFromFloat(1.2),
		ROI:        decimal.NewFromFloat(0.8),
	},
	DifficultyHard: {
		Capital:    decimal.NewFromFloat(0.6),
		Multiplier: decimal.NewFromFloat(0.8),
		ROI:        decimal.NewFromFloat(1.5),
	},
	DifficultyExpert: {
		Capital:    decimal.NewFromFloat(0.4),
		Multiplier: decimal.NewFromFloat(0.6),
		ROI:        decimal.NewFromFloat(2.0),
	},
}

// resolveGameConfig maps mode and difficulty to a starting configuration.
// Unknown difficulties behave as Normal.
func resolveGameConfig(mode model.GameMode, difficulty string) gameConfig {
	cfg := modeTargets[mode]
	cfg.StartingCapital = decimal.NewFromInt(5000)
	cfg.BonusMultiplier = decimal.NewFromInt(1)

	if scale, ok := difficultyScales[difficulty]; ok {
		cfg.StartingCapital = cfg.StartingCapital.Mul(scale.Capital)
		cfg.BonusMultiplier = cfg.BonusMultiplier.Mul(scale.Multiplier)
		cfg.TargetROI = cfg.TargetROI.Mul(scale.ROI)
	}
	return cfg
}

// validMode reports whether mode is one of the supported game modes.
func validMode(mode model.GameMode) bool {
	_, ok := modeTargets[mode]
	return ok
}
