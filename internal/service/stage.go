package service

// Stage is a step of the request state machine:
// received → ingested → normalized → text_extracted → analyzed → rendered,
// with errored reachable from any step. The OCR-only pipeline goes from
// text_extracted straight to rendered.
type Stage string

const (
	StageReceived      Stage = "received"
	StageIngested      Stage = "ingested"
	StageNormalized    Stage = "normalized"
	StageTextExtracted Stage = "text_extracted"
	StageAnalyzed      Stage = "analyzed"
	StageRendered      Stage = "rendered"
	StageErrored       Stage = "errored"
)

var transitions = map[Stage][]Stage{
	StageReceived:      {StageIngested},
	StageIngested:      {StageNormalized},
	StageNormalized:    {StageTextExtracted},
	StageTextExtracted: {StageAnalyzed, StageRendered},
	StageAnalyzed:      {StageRendered},
}

// CanAdvanceTo reports whether next directly follows s.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if next == StageErrored {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Stage) Terminal() bool {
	return s == StageRendered || s == StageErrored
}
