package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/swaggest/jsonschema-go"
)

type methodSchema struct {
	params any
	result any
}

var methodSchemas = map[string]methodSchema{
	MethodGetCommitGraph:   {params: GraphRequest{}, result: GraphResponse{}},
	MethodCheckReviewReady: {params: ReadyRequest{}, result: ReadyResponse{}},
	MethodStartReview:      {params: StartReviewRequest{}, result: StartReviewResponse{}},
	NotifyRepoChanged:      {params: ChangedNotification{}},
}

func reflectSchema(v any) (json.RawMessage, error) {
	r := jsonschema.Reflector{}
	schema, err := r.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(schema)
}

// Schema returns a JSON document mapping every method to the schemas of
// its params and result.
func Schema() ([]byte, error) {
	type entry struct {
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result,omitempty"`
	}
	out := make(map[string]entry, len(methodSchemas))
	for method, ms := range methodSchemas {
		var e entry
		var err error
		if e.Params, err = reflectSchema(ms.params); err != nil {
			return nil, fmt.Errorf("schema for %s params: %w", method, err)
		}
		if ms.result != nil {
			if e.Result, err = reflectSchema(ms.result); err != nil {
				return nil, fmt.Errorf("schema for %s result: %w", method, err)
			}
		}
		out[method] = e
	}
	return json.MarshalIndent(out, "", "  ")
}
