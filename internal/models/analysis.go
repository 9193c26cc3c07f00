package models

import "time"

// Stage is the game phase a ply belongs to, derived from the full-move number.
type Stage string

const (
	StageEarly   Stage = "early"
	StageMiddle  Stage = "middle"
	StageEndgame Stage = "endgame"
)

// Stages lists every stage in reporting order.
var Stages = []Stage{StageEarly, StageMiddle, StageEndgame}

// DisplayName returns the human readable stage name.
func (s Stage) DisplayName() string {
	switch s {
	case StageEarly:
		return "Early game"
	case StageMiddle:
		return "Middlegame"
	case StageEndgame:
		return "Endgame"
	default:
		return string(s)
	}
}

// Severity is the fine-grained classification of a centipawn loss.
type Severity string

const (
	SeverityNone       Severity = "none"
	SeverityInaccuracy Severity = "inaccuracy"
	SeverityMistake    Severity = "mistake"
	SeverityBlunder    Severity = "blunder"
)

// Quality is the simplified two-tier move class used for summaries.
type Quality string

const (
	QualityBrilliant Quality = "brilliant"
	QualityNeutral   Quality = "neutral"
	QualityMistake   Quality = "mistake"
)

// QualityCounts tallies simplified move classes.
type QualityCounts struct {
	Brilliant int `json:"brilliant"`
	Neutral   int `json:"neutral"`
	Mistake   int `json:"mistake"`
}

// Add increments the counter for q.
func (c *QualityCounts) Add(q Quality) {
	switch q {
	case QualityBrilliant:
		c.Brilliant++
	case QualityMistake:
		c.Mistake++
	default:
		c.Neutral++
	}
}

// Merge adds other into c.
func (c *QualityCounts) Merge(other QualityCounts) {
	c.Brilliant += other.Brilliant
	c.Neutral += other.Neutral
	c.Mistake += other.Mistake
}

// MistakeRecord identifies a single evaluated move that lost centipawns.
// GameIndex and GameURL are only set once the record leaves the per-game scope.
type MistakeRecord struct {
	GameIndex  int      `json:"game_index"`
	GameURL    string   `json:"game_url,omitempty"`
	MoveNumber int      `json:"move_number"`
	Ply        int      `json:"ply"`
	CPLoss     int      `json:"cp_loss"`
	Severity   Severity `json:"type"`
}

// CriticalMistakeRecord is a worst mistake taken from a game the player lost by resignation.
type CriticalMistakeRecord struct {
	MistakeRecord
	Result      string `json:"result"`
	Termination string `json:"termination"`
	Opening     string `json:"opening,omitempty"`
	Link        string `json:"link,omitempty"`
}

// StageStats accumulates move-quality statistics for one stage.
type StageStats struct {
	TotalMoves        int                    `json:"total_moves"`
	EvaluatedMoves    int                    `json:"evaluated_moves"`
	Inaccuracies      int                    `json:"inaccuracies"`
	Mistakes          int                    `json:"mistakes"`
	Blunders          int                    `json:"blunders"`
	Quality           QualityCounts          `json:"quality"`
	CPLosses          []int                  `json:"cp_losses"`
	AvgCPLoss         float64                `json:"avg_cp_loss"`
	WorstMistake      *MistakeRecord         `json:"worst_game,omitempty"`
	CriticalMistake   *CriticalMistakeRecord `json:"critical_mistake,omitempty"`
	CriticalThreshold int                    `json:"critical_threshold,omitempty"`
}

// TotalErrors returns inaccuracies, mistakes and blunders combined.
func (s *StageStats) TotalErrors() int {
	return s.Inaccuracies + s.Mistakes + s.Blunders
}

// Record counts a classified loss for the stage.
func (s *StageStats) Record(sev Severity, cpLoss int) {
	switch sev {
	case SeverityInaccuracy:
		s.Inaccuracies++
	case SeverityMistake:
		s.Mistakes++
	case SeverityBlunder:
		s.Blunders++
	default:
		return
	}
	s.CPLosses = append(s.CPLosses, cpLoss)
}

// OracleStats reports how the remote evaluation cache performed.
type OracleStats struct {
	APICalls int64   `json:"api_calls"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Errors   int64   `json:"errors"`
	HitRate  float64 `json:"hit_rate"`
}

// AggregatedAnalysis is the result of one mistake-analysis run over a set of games.
type AggregatedAnalysis struct {
	Early              *StageStats `json:"early"`
	Middle             *StageStats `json:"middle"`
	Endgame            *StageStats `json:"endgame"`
	TotalGames         int         `json:"total_games"`
	AnalyzedGames      int         `json:"analyzed_games"`
	FailedGames        int         `json:"failed_games"`
	SamplePercentage   float64     `json:"sample_percentage"`
	WeakestStage       string      `json:"weakest_stage"`
	WeakestStageName   string      `json:"weakest_stage_name"`
	WeakestStageReason string      `json:"weakest_stage_reason"`
	EngineAvailable    bool        `json:"engine_available"`
	Oracle             OracleStats `json:"oracle"`
	Duration           string      `json:"duration,omitempty"`
}

// NewAggregatedAnalysis returns an analysis with empty stage buckets.
func NewAggregatedAnalysis(totalGames int) *AggregatedAnalysis {
	return &AggregatedAnalysis{
		Early:      &StageStats{CPLosses: []int{}},
		Middle:     &StageStats{CPLosses: []int{}},
		Endgame:    &StageStats{CPLosses: []int{}},
		TotalGames: totalGames,
	}
}

// Stage returns the bucket for s.
func (a *AggregatedAnalysis) Stage(s Stage) *StageStats {
	switch s {
	case StageEarly:
		return a.Early
	case StageMiddle:
		return a.Middle
	default:
		return a.Endgame
	}
}

// CachedEval is a persisted position evaluation, relative to the side to move.
type CachedEval struct {
	FEN       string    `json:"fen"`
	CP        int       `json:"cp"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}
