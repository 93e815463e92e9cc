package narrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrContract matches every *ContractError via errors.Is.
var ErrContract = errors.New("narrator contract violation")

type ContractError struct {
	Field  string
	Reason string
	Raw    string
}

func (e *ContractError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("narrator contract violation: %s", e.Reason)
	}
	return fmt.Sprintf("narrator contract violation: %s: %s", e.Field, e.Reason)
}

func (e *ContractError) Is(target error) bool { return target == ErrContract }

// Parse validates a story_response payload.
func Parse(raw string) (Response, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return Response{}, &ContractError{Reason: "payload is not a JSON object", Raw: raw}
	}

	var r Response
	fields := []struct {
		name string
		dst  *string
	}{
		{"narration", &r.Narration},
		{"outcome", &r.Outcome},
		{"situation", &r.Situation},
	}
	for _, f := range fields {
		v, ok := obj[f.name]
		if !ok {
			return Response{}, &ContractError{Field: f.name, Reason: "missing", Raw: raw}
		}
		if err := json.Unmarshal(v, f.dst); err != nil || isNull(v) {
			return Response{}, &ContractError{Field: f.name, Reason: "must be a string", Raw: raw}
		}
	}

	v, ok := obj["choices"]
	if !ok {
		return Response{}, &ContractError{Field: "choices", Reason: "missing", Raw: raw}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil || isNull(v) {
		return Response{}, &ContractError{Field: "choices", Reason: "must be an array of strings", Raw: raw}
	}
	r.Choices = make([]string, 0, len(items))
	for i, item := range items {
		var c string
		if err := json.Unmarshal(item, &c); err != nil || isNull(item) {
			return Response{}, &ContractError{Field: fmt.Sprintf("choices[%d]", i), Reason: "must be a string", Raw: raw}
		}
		r.Choices = append(r.Choices, c)
	}
	if n := len(r.Choices); n < MinChoices || n > MaxChoices {
		return Response{}, &ContractError{
			Field:  "choices",
			Reason: fmt.Sprintf("expected %d to %d items, got %d", MinChoices, MaxChoices, n),
			Raw:    raw,
		}
	}

	if v, ok := obj["is_over"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &r.IsOver); err != nil {
			return Response{}, &ContractError{Field: "is_over", Reason: "must be a boolean", Raw: raw}
		}
	}
	return r, nil
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}
