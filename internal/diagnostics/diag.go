package diagnostics

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes emitted by the playback controller and the control channel.
const (
	LoadFormat       = "LOAD.FORMAT"
	LoadOK           = "LOAD.OK"
	SeekOutOfRange   = "SEEK.OUT_OF_RANGE"
	ModelUnresolved  = "MODEL.UNRESOLVED"
	SceneApplyFailed = "SCENE.APPLY_FAILED"
	PlaybackEmpty    = "PLAYBACK.EMPTY"
	PlaybackDone     = "PLAYBACK.DONE"
	ControlUnknown   = "CONTROL.UNKNOWN"
	ReloadFailed     = "RELOAD.FAILED"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}
