// Package timeline lays out the scenes of a video on a frame grid.
//
// A Layout is an ordered table of SceneSpecs. Compute folds over it with the
// measured narration durations and produces a Timeline: back-to-back scenes,
// each with the absolute start frame of every clip and sound effect it holds.
// Everything here is pure and safe for concurrent use.
package timeline

import (
	"errors"
	"fmt"
	"math"
)

// DefaultFPS is the frame rate of the rendered composition.
const DefaultFPS = 30

// ErrInvalidInput is returned (wrapped) when Compute receives a negative,
// non-finite or oversized duration, a non-positive fps, a malformed layout,
// or a layout that places an effect past the end of its scene.
var ErrInvalidInput = errors.New("invalid timeline input")

// maxClipFrames bounds a single clip so frame sums stay far from int overflow.
const maxClipFrames = math.MaxInt32

// Anchor selects the point inside a scene an effect offset is measured from.
type Anchor string

const (
	// AnchorStart measures from the first frame of the scene.
	AnchorStart Anchor = "start"
	// AnchorContentEnd measures from the frame where the trailing buffer
	// begins: leading pad + all clips + one gap per clip.
	AnchorContentEnd Anchor = "content_end"
)

// EffectSpec places a sound effect relative to an anchor of its scene.
type EffectSpec struct {
	Name         string `yaml:"name" json:"name"`
	Anchor       Anchor `yaml:"anchor" json:"anchor"`
	OffsetFrames int    `yaml:"offset" json:"offset"`
}

// SceneSpec describes the pacing of one scene. All values are frames.
type SceneSpec struct {
	Name           string       `yaml:"name" json:"name"`
	Clips          []string     `yaml:"clips" json:"clips"`
	LeadingPad     int          `yaml:"leading_pad" json:"leadingPad"`
	GapFrames      int          `yaml:"gap" json:"gap"`
	TrailingBuffer int          `yaml:"trailing_buffer" json:"trailingBuffer"`
	MinimumFrames  int          `yaml:"minimum" json:"minimum"`
	Effects        []EffectSpec `yaml:"effects,omitempty" json:"effects,omitempty"`
}

// Layout is the ordered list of scenes of one video.
type Layout []SceneSpec

// ClipPlacement is where a narration clip starts.
type ClipPlacement struct {
	ID            string `json:"id"`
	Frames        int    `json:"frames"`
	RelativeStart int    `json:"relativeStart"`
	AbsoluteStart int    `json:"absoluteStart"`
}

// EffectPlacement is where a sound effect starts.
type EffectPlacement struct {
	Name          string `json:"name"`
	RelativeStart int    `json:"relativeStart"`
	AbsoluteStart int    `json:"absoluteStart"`
}

// ScenePlacement is one computed scene.
type ScenePlacement struct {
	Name     string            `json:"name"`
	Start    int               `json:"start"`
	Duration int               `json:"duration"`
	Clips    []ClipPlacement   `json:"clips"`
	Effects  []EffectPlacement `json:"effects,omitempty"`
}

// End is the first frame after the scene.
func (s ScenePlacement) End() int { return s.Start + s.Duration }

// Timeline is the complete frame layout of one video.
type Timeline struct {
	FPS         int              `json:"fps"`
	Scenes      []ScenePlacement `json:"scenes"`
	TotalFrames int              `json:"totalFrames"`
}

// ClipFrames converts a clip duration to whole frames, rounding up.
// It panics if durationSeconds is negative or not finite, or if fps <= 0.
func ClipFrames(durationSeconds float64, fps int) int {
	if fps <= 0 {
		panic(fmt.Sprintf("timeline: non-positive fps %d", fps))
	}
	if !validDuration(durationSeconds) {
		panic(fmt.Sprintf("timeline: invalid clip duration %v", durationSeconds))
	}
	return int(math.Ceil(durationSeconds * float64(fps)))
}

// SceneDuration returns
//
//	max(minimumFrames, leadingPad + sum(clipFrames) + gapFrames*len(clipFrames) + trailingBuffer)
//
// The gap is charged after every clip, the last one included.
// It panics if any argument is negative.
func SceneDuration(clipFrames []int, leadingPad, gapFrames, trailingBuffer, minimumFrames int) int {
	if leadingPad < 0 || gapFrames < 0 || trailingBuffer < 0 || minimumFrames < 0 {
		panic(fmt.Sprintf("timeline: negative scene parameter (lead=%d gap=%d trailing=%d minimum=%d)",
			leadingPad, gapFrames, trailingBuffer, minimumFrames))
	}
	total := leadingPad + trailingBuffer
	for _, frames := range clipFrames {
		if frames < 0 {
			panic(fmt.Sprintf("timeline: negative clip frames %d", frames))
		}
		total += frames + gapFrames
	}
	return max(minimumFrames, total)
}

// Compute lays out every scene of layout back to back. Clips missing from
// durations count as zero seconds. On invalid input it returns an error
// wrapping ErrInvalidInput and no partial result.
func Compute(layout Layout, durations map[string]float64, fps int) (Timeline, error) {
	if fps <= 0 {
		return Timeline{}, fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidInput, fps)
	}
	for id, d := range durations {
		if !validDuration(d) {
			return Timeline{}, fmt.Errorf("%w: clip %q has duration %v", ErrInvalidInput, id, d)
		}
		if d*float64(fps) > maxClipFrames {
			return Timeline{}, fmt.Errorf("%w: clip %q is too long (%v seconds)", ErrInvalidInput, id, d)
		}
	}
	if err := layout.Validate(); err != nil {
		return Timeline{}, err
	}

	tl := Timeline{FPS: fps, Scenes: make([]ScenePlacement, 0, len(layout))}
	start := 0
	for _, spec := range layout {
		scene, err := placeScene(spec, durations, fps, start)
		if err != nil {
			return Timeline{}, err
		}
		tl.Scenes = append(tl.Scenes, scene)
		start = scene.End()
	}
	tl.TotalFrames = start
	return tl, nil
}

func placeScene(spec SceneSpec, durations map[string]float64, fps, start int) (ScenePlacement, error) {
	frames := make([]int, len(spec.Clips))
	clips := make([]ClipPlacement, len(spec.Clips))
	cursor := spec.LeadingPad
	for i, id := range spec.Clips {
		frames[i] = ClipFrames(durations[id], fps)
		clips[i] = ClipPlacement{
			ID:            id,
			Frames:        frames[i],
			RelativeStart: cursor,
			AbsoluteStart: start + cursor,
		}
		cursor += frames[i] + spec.GapFrames
	}
	contentEnd := cursor

	duration := SceneDuration(frames, spec.LeadingPad, spec.GapFrames, spec.TrailingBuffer, spec.MinimumFrames)

	var effects []EffectPlacement
	for _, fx := range spec.Effects {
		rel := fx.OffsetFrames
		if fx.Anchor == AnchorContentEnd {
			rel += contentEnd
		}
		if rel >= duration {
			return ScenePlacement{}, fmt.Errorf("%w: effect %q starts at frame %d of scene %s, which lasts %d frames",
				ErrInvalidInput, fx.Name, rel, spec.Name, duration)
		}
		effects = append(effects, EffectPlacement{
			Name:          fx.Name,
			RelativeStart: rel,
			AbsoluteStart: start + rel,
		})
	}

	return ScenePlacement{
		Name:     spec.Name,
		Start:    start,
		Duration: duration,
		Clips:    clips,
		Effects:  effects,
	}, nil
}

// Validate reports the first malformed scene of the layout.
func (l Layout) Validate() error {
	for i, spec := range l {
		if spec.LeadingPad < 0 || spec.GapFrames < 0 || spec.TrailingBuffer < 0 || spec.MinimumFrames < 0 {
			return fmt.Errorf("%w: scene %d (%s) has a negative frame parameter", ErrInvalidInput, i, spec.Name)
		}
		for _, fx := range spec.Effects {
			if fx.OffsetFrames < 0 {
				return fmt.Errorf("%w: effect %q in scene %s has negative offset", ErrInvalidInput, fx.Name, spec.Name)
			}
			if fx.Anchor != AnchorStart && fx.Anchor != AnchorContentEnd {
				return fmt.Errorf("%w: effect %q in scene %s has unknown anchor %q", ErrInvalidInput, fx.Name, spec.Name, fx.Anchor)
			}
		}
	}
	return nil
}

// Scene returns the placement of the named scene.
func (t Timeline) Scene(name string) (ScenePlacement, bool) {
	for _, s := range t.Scenes {
		if s.Name == name {
			return s, true
		}
	}
	return ScenePlacement{}, false
}

// Clip returns the first placement of the clip with the given id.
func (t Timeline) Clip(id string) (ClipPlacement, bool) {
	for _, s := range t.Scenes {
		for _, c := range s.Clips {
			if c.ID == id {
				return c, true
			}
		}
	}
	return ClipPlacement{}, false
}

// Effect returns the first placement of the named effect.
func (t Timeline) Effect(name string) (EffectPlacement, bool) {
	for _, s := range t.Scenes {
		for _, e := range s.Effects {
			if e.Name == name {
				return e, true
			}
		}
	}
	return EffectPlacement{}, false
}

// SceneDurations maps scene name to duration in frames.
func (t Timeline) SceneDurations() map[string]int {
	out := make(map[string]int, len(t.Scenes))
	for _, s := range t.Scenes {
		out[s.Name] = s.Duration
	}
	return out
}

// SceneStarts maps scene name to absolute start frame.
func (t Timeline) SceneStarts() map[string]int {
	out := make(map[string]int, len(t.Scenes))
	for _, s := range t.Scenes {
		out[s.Name] = s.Start
	}
	return out
}

// ClipStarts maps clip id to absolute start frame.
func (t Timeline) ClipStarts() map[string]int {
	out := map[string]int{}
	for _, s := range t.Scenes {
		for _, c := range s.Clips {
			if _, seen := out[c.ID]; !seen {
				out[c.ID] = c.AbsoluteStart
			}
		}
	}
	return out
}

// EffectStarts maps effect name to absolute start frame.
func (t Timeline) EffectStarts() map[string]int {
	out := map[string]int{}
	for _, s := range t.Scenes {
		for _, e := range s.Effects {
			if _, seen := out[e.Name]; !seen {
				out[e.Name] = e.AbsoluteStart
			}
		}
	}
	return out
}

// Seconds converts a frame number to seconds at the timeline's frame rate.
func (t Timeline) Seconds(frame int) float64 {
	if t.FPS <= 0 {
		return 0
	}
	return float64(frame) / float64(t.FPS)
}

func validDuration(d float64) bool {
	return d >= 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}
