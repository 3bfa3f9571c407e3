package timeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scene names understood by the ErrorEnglishVideo composition.
const (
	ScenePanic        = "panic"
	SceneErrorMeaning = "errorMeaning"
	SceneWord         = "word"
	SceneContext      = "context"
	SceneUsage        = "usage"
	SceneOutro        = "outro"
)

// Clip ids. Narration clips share the name of the entry field they read.
const (
	ClipErrorMessage              = "errorMessage"
	ClipMessageTranslation        = "messageTranslation"
	ClipTargetWord                = "targetWord"
	ClipGeneralMeaning            = "generalMeaning"
	ClipGeneralExample            = "generalExample"
	ClipTechMeaning               = "techMeaning"
	ClipExplanation               = "explanation"
	ClipUsageContext              = "usageContext"
	ClipUsageExample              = "usageExample"
	ClipUsageExampleTranslation   = "usageExampleTranslation"
	ClipUsagePunchline            = "usagePunchline"
	ClipUsagePunchlineTranslation = "usagePunchlineTranslation"
	ClipFollowMe                  = "followMe"
)

// Sound effect names; each maps to public/se/<name>.mp3.
const (
	EffectWhatMean   = "what_mean"
	EffectContextEnd = "context_end"
	EffectUsageIntro = "usage_intro"
	EffectUsageOutro = "usage_outro"
)

// DefaultLayout returns the six-scene table of the ErrorEnglishVideo composition.
func DefaultLayout() Layout {
	return Layout{
		{
			Name:           ScenePanic,
			Clips:          []string{ClipErrorMessage},
			LeadingPad:     45,
			TrailingBuffer: 60,
			MinimumFrames:  120,
			Effects: []EffectSpec{
				{Name: EffectWhatMean, Anchor: AnchorContentEnd, OffsetFrames: 10},
			},
		},
		{
			Name:           SceneErrorMeaning,
			Clips:          []string{ClipMessageTranslation},
			LeadingPad:     10,
			TrailingBuffer: 60,
			MinimumFrames:  150,
		},
		{
			Name:           SceneWord,
			Clips:          []string{ClipTargetWord, ClipGeneralMeaning, ClipGeneralExample},
			LeadingPad:     30,
			GapFrames:      15,
			TrailingBuffer: 15,
			MinimumFrames:  90,
		},
		{
			// 80 trailing frames keep room for the "naruhodo" effect.
			Name:           SceneContext,
			Clips:          []string{ClipTechMeaning, ClipExplanation},
			LeadingPad:     20,
			GapFrames:      20,
			TrailingBuffer: 80,
			MinimumFrames:  150,
			Effects: []EffectSpec{
				{Name: EffectContextEnd, Anchor: AnchorContentEnd, OffsetFrames: 10},
			},
		},
		{
			Name: SceneUsage,
			Clips: []string{
				ClipUsageContext,
				ClipUsageExample,
				ClipUsageExampleTranslation,
				ClipUsagePunchline,
				ClipUsagePunchlineTranslation,
			},
			LeadingPad:     100,
			GapFrames:      15,
			TrailingBuffer: 135,
			MinimumFrames:  310,
			Effects: []EffectSpec{
				{Name: EffectUsageIntro, Anchor: AnchorStart, OffsetFrames: 10},
				{Name: EffectUsageOutro, Anchor: AnchorContentEnd, OffsetFrames: 10},
			},
		},
		{
			Name:           SceneOutro,
			Clips:          []string{ClipFollowMe},
			LeadingPad:     20,
			TrailingBuffer: 90,
			MinimumFrames:  110,
		},
	}
}

// ClipIDs lists every clip id of the layout in order of appearance.
func (l Layout) ClipIDs() []string {
	var ids []string
	for _, spec := range l {
		ids = append(ids, spec.Clips...)
	}
	return ids
}

// EffectNames lists every effect name of the layout in order of appearance.
func (l Layout) EffectNames() []string {
	var names []string
	for _, spec := range l {
		for _, fx := range spec.Effects {
			names = append(names, fx.Name)
		}
	}
	return names
}

type layoutFile struct {
	Scenes Layout `yaml:"scenes"`
}

// LoadLayout reads a YAML layout file of the form `scenes: [...]`.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if len(f.Scenes) == 0 {
		return nil, fmt.Errorf("%w: layout %s has no scenes", ErrInvalidInput, path)
	}
	for i := range f.Scenes {
		for j := range f.Scenes[i].Effects {
			if f.Scenes[i].Effects[j].Anchor == "" {
				f.Scenes[i].Effects[j].Anchor = AnchorStart
			}
		}
	}
	if err := f.Scenes.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return f.Scenes, nil
}

// SaveLayout writes layout as YAML.
func SaveLayout(path string, layout Layout) error {
	data, err := yaml.Marshal(layoutFile{Scenes: layout})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
