package experience

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/*.json
var schemaFS embed.FS

// ErrInvalidPayload is returned when generated JSON does not match the schema for its mode.
var ErrInvalidPayload = errors.New("invalid experience payload")

var (
	schemasOnce sync.Once
	schemas     map[Mode]*gojsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	schemas = make(map[Mode]*gojsonschema.Schema, 2)
	for _, mode := range []Mode{ModeGame, ModeLearn} {
		raw, err := schemaFS.ReadFile("schema/" + string(mode) + ".json")
		if err != nil {
			schemasErr = fmt.Errorf("read %s schema: %w", mode, err)
			return
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			schemasErr = fmt.Errorf("compile %s schema: %w", mode, err)
			return
		}
		schemas[mode] = s
	}
}

// Decode validates raw generated JSON against the schema for mode and decodes it.
func Decode(mode Mode, raw []byte) (*Experience, error) {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[mode]
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(msgs, "; "))
	}

	var exp Experience
	if err := json.Unmarshal(raw, &exp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &exp, nil
}

// ExtractJSON returns the outermost JSON object in model output, dropping
// markdown code fences and any chatter around it.
func ExtractJSON(output string) ([]byte, error) {
	s := strings.TrimSpace(output)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrInvalidPayload)
	}
	return []byte(s[start : end+1]), nil
}
