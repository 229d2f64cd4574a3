package engine

import (
	"encoding/json"

	"github.com/specialistvlad/mudyla/internal/model"
)

// GoalOutputs assembles the combined output document: goal nodes keyed by
// action name, or by name@context-label when the same action is a goal in
// several reduced contexts.
func (e *Engine) GoalOutputs(result *Result) map[string]map[string]any {
	perAction := make(map[string]int)
	for _, key := range e.graph.Goals {
		perAction[e.graph.Node(key).Action.Name]++
	}

	out := make(map[string]map[string]any, len(e.graph.Goals))
	for _, key := range e.graph.Goals {
		res, ok := result.Nodes[key]
		if !ok || res.Outputs == nil {
			continue
		}
		node := e.graph.Node(key)

		name := node.Action.Name
		if perAction[name] > 1 {
			name = name + "@" + node.Context.Label()
		}

		values := make(map[string]any, len(res.Outputs))
		for ret, v := range res.Outputs {
			values[ret] = model.ValueToJSON(v)
		}
		out[name] = values
	}
	return out
}

// RenderGoalOutputs serializes the combined outputs as indented JSON.
func (e *Engine) RenderGoalOutputs(result *Result) ([]byte, error) {
	return json.MarshalIndent(e.GoalOutputs(result), "", "  ")
}
