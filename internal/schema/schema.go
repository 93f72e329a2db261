// Package schema generates JSON schemas from the API contract structs
// using github.com/swaggest/jsonschema-go, so the dashboard frontend can
// validate forms against the same definitions the server decodes.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/swaggest/jsonschema-go"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
)

// Schema labels served by GET /api/schema/{label}.
const (
	LabelTask        = "task"
	LabelTaskCreate  = "task-create"
	LabelTaskUpdate  = "task-update"
	LabelTaskMove    = "task-move"
	LabelCommitGraph = "commit-graph"
	LabelSession     = "session"
)

// schemaEntry holds a type and optional skip fields for generation.
type schemaEntry struct {
	value      any
	skipFields []string
}

var (
	registry      = make(map[string]schemaEntry)
	registryMu    sync.RWMutex
	schemaCache   = make(map[string]string)
	schemaCacheMu sync.RWMutex
)

func init() {
	Register(LabelTask, contracts.Task{})
	Register(LabelTaskCreate, contracts.TaskCreateRequest{})
	Register(LabelTaskUpdate, contracts.TaskUpdateRequest{})
	Register(LabelTaskMove, contracts.TaskMoveRequest{})
	Register(LabelCommitGraph, contracts.CommitGraphResponse{})
	Register(LabelSession, contracts.Session{})
}

// Register adds a type to the schema registry. The schema is generated
// lazily on first Get.
func Register(label string, v any, skipFields ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[label] = schemaEntry{value: v, skipFields: skipFields}
}

// Get returns the JSON schema string for a registered label. Schemas
// are cached after first generation.
func Get(label string) (string, error) {
	schemaCacheMu.RLock()
	if cached, ok := schemaCache[label]; ok {
		schemaCacheMu.RUnlock()
		return cached, nil
	}
	schemaCacheMu.RUnlock()

	registryMu.RLock()
	entry, ok := registry[label]
	registryMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown schema label: %s", label)
	}

	schema, err := GenerateJSON(entry.value, entry.skipFields...)
	if err != nil {
		return "", fmt.Errorf("failed to generate schema for %s: %w", label, err)
	}

	schemaCacheMu.Lock()
	schemaCache[label] = schema
	schemaCacheMu.Unlock()

	return schema, nil
}

// Labels returns all registered schema labels.
func Labels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	labels := make([]string, 0, len(registry))
	for label := range registry {
		labels = append(labels, label)
	}
	return labels
}

// GenerateJSON generates a JSON schema string from a Go type. Struct
// tags define required fields and constraints; fields named in
// skipFields are excluded.
func GenerateJSON(v any, skipFields ...string) (string, error) {
	r := jsonschema.Reflector{}

	opts := []func(*jsonschema.ReflectContext){
		jsonschema.InlineRefs,
	}

	if len(skipFields) > 0 {
		skipSet := make(map[string]bool)
		for _, f := range skipFields {
			skipSet[f] = true
		}
		opts = append(opts, jsonschema.InterceptProp(
			func(params jsonschema.InterceptPropParams) error {
				if skipSet[params.Name] {
					return jsonschema.ErrSkipProperty
				}
				return nil
			},
		))
	}

	schema, err := r.Reflect(v, opts...)
	if err != nil {
		return "", err
	}

	bytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	// When additionalProperties is a schema object some validators
	// require properties to be present as well.
	var raw map[string]any
	if err := json.Unmarshal(bytes, &raw); err != nil {
		return "", err
	}
	fixAdditionalProperties(raw)

	bytes, err = json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func fixAdditionalProperties(node map[string]any) {
	if ap, ok := node["additionalProperties"]; ok {
		if apMap, ok := ap.(map[string]any); ok {
			if _, hasProps := node["properties"]; !hasProps {
				node["properties"] = map[string]any{}
			}
			fixAdditionalProperties(apMap)
		}
	}

	if props, ok := node["properties"].(map[string]any); ok {
		for _, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				fixAdditionalProperties(propMap)
			}
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		fixAdditionalProperties(items)
	}
}
