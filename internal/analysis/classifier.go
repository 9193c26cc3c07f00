package analysis

import "github.com/vytor/chessinsight/internal/models"

// Centipawn thresholds.
const (
	InaccuracyThreshold = 50
	MistakeThreshold    = 100
	BlunderThreshold    = 200

	BrilliantThreshold      = 100
	QualityMistakeThreshold = -50

	// SkipEvalThreshold marks positions already decided; moves from them are not charged.
	SkipEvalThreshold = 600
	// EarlyStopThreshold losses are recorded as blunders without further classification.
	EarlyStopThreshold = 300
)

// ClassifyLoss maps a centipawn loss to a severity.
func ClassifyLoss(cpLoss int) models.Severity {
	switch {
	case cpLoss >= BlunderThreshold:
		return models.SeverityBlunder
	case cpLoss >= MistakeThreshold:
		return models.SeverityMistake
	case cpLoss >= InaccuracyThreshold:
		return models.SeverityInaccuracy
	default:
		return models.SeverityNone
	}
}

// ClassifyChange maps the signed change in the player's evaluation to the
// simplified quality class.
func ClassifyChange(cpChange int) models.Quality {
	switch {
	case cpChange >= BrilliantThreshold:
		return models.QualityBrilliant
	case cpChange <= QualityMistakeThreshold:
		return models.QualityMistake
	default:
		return models.QualityNeutral
	}
}

// StageFor returns the stage of a full-move number: 1-7 early, 8-20 middle, 21+ endgame.
func StageFor(fullMove int) models.Stage {
	switch {
	case fullMove <= 7:
		return models.StageEarly
	case fullMove <= 20:
		return models.StageMiddle
	default:
		return models.StageEndgame
	}
}
