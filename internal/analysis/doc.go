// Package analysis holds the per-frame passes that run over an extracted
// frame sequence: sharpness scoring, scene grouping and AI annotation.
//
// Every pass is best-effort. A frame that cannot be read or judged gets a
// fixed fallback value and the pass carries on; nothing here returns an
// error to the pipeline.
package analysis
