package enums

// ScoreSource records where a match score came from.
type ScoreSource string

const (
	ScoreSourceOracle   ScoreSource = "oracle"
	ScoreSourceFallback ScoreSource = "fallback"
)

func (s ScoreSource) IsValid() bool {
	return s == ScoreSourceOracle || s == ScoreSourceFallback
}
