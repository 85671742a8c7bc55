package entity

import (
	"math"
)

type ExtractionMode string

const (
	ModeAll       ExtractionMode = "all"
	ModeFixedRate ExtractionMode = "fixed-rate"
	ModeSceneCut  ExtractionMode = "scene-cut"
	ModeKeyframe  ExtractionMode = "keyframe"
)

func (m ExtractionMode) Valid() bool {
	switch m {
	case ModeAll, ModeFixedRate, ModeSceneCut, ModeKeyframe:
		return true
	}
	return false
}

// ExtractionRequest is built once from user input and never mutated afterwards.
type ExtractionRequest struct {
	Mode         ExtractionMode `json:"mode"`
	Rate         float64        `json:"rate,omitempty"`
	Start        *float64       `json:"start,omitempty"`
	End          *float64       `json:"end,omitempty"`
	EnableAI     bool           `json:"enable_ai"`
	RemoveBlurry bool           `json:"remove_blurry"`
	DetectScenes bool           `json:"detect_scenes"`
}

func (r ExtractionRequest) Validate() error {
	if !r.Mode.Valid() {
		return invalidParam("unknown extraction mode %q", r.Mode)
	}
	if r.Mode == ModeFixedRate {
		if math.IsNaN(r.Rate) || math.IsInf(r.Rate, 0) || r.Rate <= 0 {
			return invalidParam("frame rate must be a positive finite number, got %v", r.Rate)
		}
	}
	if r.Start != nil && !validBound(*r.Start) {
		return invalidParam("start time must be a non-negative number, got %v", *r.Start)
	}
	if r.End != nil && !validBound(*r.End) {
		return invalidParam("end time must be a non-negative number, got %v", *r.End)
	}
	if r.Start != nil && r.End != nil && *r.End < *r.Start {
		return invalidParam("end time %v is before start time %v", *r.End, *r.Start)
	}
	return nil
}

func validBound(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
