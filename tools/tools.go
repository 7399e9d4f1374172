package tools

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v2"
)

type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (string, error)
}

// Registry keeps tools in registration order so listings are stable.
type Registry struct {
	m     map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{m: map[string]Tool{}}
	for _, t := range tools {
		if _, dup := r.m[t.Name()]; !dup {
			r.order = append(r.order, t.Name())
		}
		r.m[t.Name()] = t
	}
	return r
}

func (r *Registry) Get(name string) (Tool, bool) { t, ok := r.m[name]; return t, ok }

func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.m[name])
	}
	return out
}

func (r *Registry) OpenAITools() []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(r.order))
	for _, t := range r.List() {
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name(),
					Description: openai.String(t.Description()),
					Parameters:  t.Schema(),
				},
			},
		})
	}
	return out
}

// unmarshalArgs decodes tool arguments, treating an absent payload as {}.
func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
