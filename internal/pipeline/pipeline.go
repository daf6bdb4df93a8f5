// Package pipeline describes the generation pipelines as data: each pipeline
// is an ordered list of provider steps with an input mapping. The first step
// is mandatory; later steps refine its output and may be skipped on failure.
package pipeline

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/digkill/themeshot/internal/models"
)

// Community models on Replicate are only reachable through /v1/predictions
// with an explicit version, so they are pinned as owner/name:version.
const (
	DefaultFaceSwapModel  = "cdingram/face-swap:d1d6ea8c8be89d664a07a457526f7128109dee7030fdac424788d762c71ed111"
	DefaultInstantIDModel = "zsxkib/instant-id:2e4785a4d80dadf580077b2244c8d7c05d8e3faac04a04c02d8e099dd2876789"
	previewModel          = "black-forest-labs/flux-schnell"
)

// officialReplicateModels may be run by name through /v1/models/{owner}/{name}.
var officialReplicateModels = map[string]bool{
	"black-forest-labs/flux-schnell": true,
}

// ValidateReplicateModel rejects community model ids without a pinned version.
func ValidateReplicateModel(model string) error {
	name, version, pinned := strings.Cut(model, ":")
	if owner, rest, ok := strings.Cut(name, "/"); !ok || owner == "" || rest == "" || strings.Contains(rest, "/") {
		return fmt.Errorf("replicate model %q: expected owner/name[:version]", model)
	}
	if pinned {
		if version == "" {
			return fmt.Errorf("replicate model %q: empty version", model)
		}
		return nil
	}
	if !officialReplicateModels[name] {
		return fmt.Errorf("replicate model %q: community models need a pinned version (owner/name:version)", model)
	}
	return nil
}

// StepInput carries everything a step may read when building its request.
type StepInput struct {
	Prompt         string
	SourceImageURI string
	PreviousURL    string
}

type Step struct {
	Name      string
	Provider  models.ProviderName
	Model     string
	Mandatory bool
	Input     func(StepInput) map[string]any
}

type Pipeline struct {
	Name  models.PipelineName
	Steps []Step
}

type Registry struct {
	pipelines map[models.PipelineName]Pipeline
}

func NewRegistry(pipelines ...Pipeline) (*Registry, error) {
	r := &Registry{pipelines: make(map[models.PipelineName]Pipeline, len(pipelines))}
	for _, p := range pipelines {
		if len(p.Steps) == 0 || len(p.Steps) > 2 {
			return nil, fmt.Errorf("pipeline %s: expected 1 or 2 steps, got %d", p.Name, len(p.Steps))
		}
		if !p.Steps[0].Mandatory {
			return nil, fmt.Errorf("pipeline %s: first step must be mandatory", p.Name)
		}
		for _, step := range p.Steps {
			if step.Provider != models.ProviderReplicate {
				continue
			}
			if err := ValidateReplicateModel(step.Model); err != nil {
				return nil, fmt.Errorf("pipeline %s step %s: %w", p.Name, step.Name, err)
			}
		}
		if _, dup := r.pipelines[p.Name]; dup {
			return nil, fmt.Errorf("pipeline %s registered twice", p.Name)
		}
		r.pipelines[p.Name] = p
	}
	return r, nil
}

func (r *Registry) Get(name models.PipelineName) (Pipeline, bool) {
	p, ok := r.pipelines[name]
	return p, ok
}

func (r *Registry) Names() []models.PipelineName {
	names := make([]models.PipelineName, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

type Options struct {
	PromptSuffix   string
	FaceSwapModel  string
	InstantIDModel string
}

// Defaults returns the four production pipelines.
func Defaults(opts Options) []Pipeline {
	faceSwap := opts.FaceSwapModel
	if faceSwap == "" {
		faceSwap = DefaultFaceSwapModel
	}
	instantID := opts.InstantIDModel
	if instantID == "" {
		instantID = DefaultInstantIDModel
	}
	scenePrompt := func(prompt string) string {
		if opts.PromptSuffix == "" {
			return prompt
		}
		return prompt + ", " + opts.PromptSuffix
	}

	return []Pipeline{
		{
			Name: models.PipelineFalFluxFaceSwap,
			Steps: []Step{
				{
					Name:      "scene",
					Provider:  models.ProviderFal,
					Model:     "fal-ai/flux/schnell",
					Mandatory: true,
					Input: func(in StepInput) map[string]any {
						return map[string]any{
							"prompt":                scenePrompt(in.Prompt),
							"image_size":            "portrait_4_3",
							"num_inference_steps":   4,
							"num_images":            1,
							"enable_safety_checker": false,
						}
					},
				},
				{
					Name:     "face_swap",
					Provider: models.ProviderFal,
					Model:    "fal-ai/face-swap",
					Input: func(in StepInput) map[string]any {
						return map[string]any{
							"base_image_url": in.PreviousURL,
							"swap_image_url": in.SourceImageURI,
						}
					},
				},
			},
		},
		{
			Name: models.PipelineFalPulid,
			Steps: []Step{
				{
					Name:      "pulid",
					Provider:  models.ProviderFal,
					Model:     "fal-ai/flux-pulid",
					Mandatory: true,
					Input: func(in StepInput) map[string]any {
						return map[string]any{
							"prompt":              scenePrompt(in.Prompt),
							"reference_image_url": in.SourceImageURI,
							"image_size":          "portrait_4_3",
							"num_inference_steps": 20,
						}
					},
				},
			},
		},
		{
			Name: models.PipelineReplicateFluxFaceSwap,
			Steps: []Step{
				{
					Name:      "scene",
					Provider:  models.ProviderReplicate,
					Model:     "black-forest-labs/flux-schnell",
					Mandatory: true,
					Input: func(in StepInput) map[string]any {
						return map[string]any{
							"prompt":         scenePrompt(in.Prompt),
							"num_outputs":    1,
							"aspect_ratio":   "3:4",
							"output_format":  "jpg",
							"output_quality": 90,
						}
					},
				},
				{
					Name:     "face_swap",
					Provider: models.ProviderReplicate,
					Model:    faceSwap,
					Input: func(in StepInput) map[string]any {
						return map[string]any{
							"input_image": in.PreviousURL,
							"swap_image":  in.SourceImageURI,
						}
					},
				},
			},
		},
		{
			Name: models.PipelineReplicateInstantID,
			Steps: []Step{
				{
					Name:      "instant_id",
					Provider:  models.ProviderReplicate,
					Model:     instantID,
					Mandatory: true,
					Input: func(in StepInput) map[string]any {
						return map[string]any{
							"image":       in.SourceImageURI,
							"prompt":      scenePrompt(in.Prompt),
							"num_outputs": 1,
						}
					},
				},
			},
		},
	}
}

// Preview is the single text-to-image step behind theme previews.
func Preview() Step {
	return Step{
		Name:      "preview",
		Provider:  models.ProviderReplicate,
		Model:     previewModel,
		Mandatory: true,
		Input: func(in StepInput) map[string]any {
			return map[string]any{
				"prompt":         in.Prompt,
				"num_outputs":    1,
				"aspect_ratio":   "1:1",
				"output_format":  "webp",
				"output_quality": 80,
			}
		},
	}
}

// DataURI inlines image bytes so providers can read the source photo without
// a public URL.
func DataURI(data []byte) string {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
