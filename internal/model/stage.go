package model

// Stage is a session's position in its lifecycle
type Stage string

const (
	StagePlayerSetup Stage = "player_setup" // Adding players
	StageBuyins      Stage = "buyins"       // Recording buy-ins
	StageChipEntry   Stage = "chip_entry"   // Counting final chip stacks
	StageReview      Stage = "review"       // Reserved for an explicit pre-finalization check
	StageFinalized   Stage = "finalized"    // Settlement locked
)

// Stages returns all stages in lifecycle order
func Stages() []Stage {
	return []Stage{StagePlayerSetup, StageBuyins, StageChipEntry, StageReview, StageFinalized}
}

// Order returns the stage's position in the lifecycle, or -1 if unknown
func (s Stage) Order() int {
	for i, st := range Stages() {
		if st == s {
			return i
		}
	}
	return -1
}

// Before returns true if s comes earlier in the lifecycle than other
func (s Stage) Before(other Stage) bool {
	return s.Order() < other.Order()
}

func (s Stage) String() string {
	return string(s)
}
