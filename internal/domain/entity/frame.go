package entity

type VideoMetadata struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        int     `json:"fps"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
}

// FrameFile is one extracted still. Index is the transcoder's sequence number.
type FrameFile struct {
	Index int
	Name  string
	Path  string
}

type FrameAnalysis struct {
	Filename   string `json:"filename"`
	Quality    int    `json:"quality"`
	IsBlurry   bool   `json:"is_blurry"`
	IsKeyframe bool   `json:"is_keyframe"`
}

type Scene struct {
	Index      int      `json:"scene_index"`
	StartFrame int      `json:"start_frame"`
	Frames     []string `json:"frames"`
}

type AIAnnotation struct {
	Filename    string `json:"filename"`
	Quality     int    `json:"quality"`
	IsKeyframe  bool   `json:"is_keyframe"`
	Description string `json:"description"`
	IsBlurry    bool   `json:"is_blurry"`
	// Fallback marks the neutral default used when the frame could not be judged.
	Fallback bool `json:"-"`
}

func FrameNames(frames []FrameFile) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Name
	}
	return names
}
