package entity

import "encoding/json"

// PipelineResult is what a successful session hands to presentation.
// A nil Scenes or AIAnnotations means the stage was not requested; an empty
// non-nil slice means it ran and produced nothing.
type PipelineResult struct {
	SessionID     string          `json:"session_id"`
	Metadata      VideoMetadata   `json:"metadata"`
	FrameCount    int             `json:"frame_count"`
	Frames        []string        `json:"frames"`
	Analysis      []FrameAnalysis `json:"analysis"`
	Scenes        []Scene         `json:"-"`
	AIAnnotations []AIAnnotation  `json:"-"`
}

func (r PipelineResult) MarshalJSON() ([]byte, error) {
	type plain PipelineResult
	out := struct {
		plain
		Scenes        *[]Scene        `json:"scenes,omitempty"`
		AIAnnotations *[]AIAnnotation `json:"ai_annotations,omitempty"`
	}{plain: plain(r)}
	if r.Scenes != nil {
		out.Scenes = &r.Scenes
	}
	if r.AIAnnotations != nil {
		out.AIAnnotations = &r.AIAnnotations
	}
	return json.Marshal(out)
}
