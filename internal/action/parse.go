package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrPlanParse marks a model reply that is not exactly one valid action.
var ErrPlanParse = errors.New("plan parse error")

// ParseError carries the reason a reply was rejected. The reason is shown to
// the model when the request is repeated.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPlanParse, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrPlanParse
}

func parseErrorf(raw, format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

type navigateWire struct {
	Type      string  `json:"type"`
	URL       *string `json:"url"`
	Reasoning string  `json:"reasoning"`
}

type clickWire struct {
	Type      string          `json:"type"`
	Target    json.RawMessage `json:"target"`
	Reasoning string          `json:"reasoning"`
}

type typeWire struct {
	Type      string          `json:"type"`
	Target    json.RawMessage `json:"target"`
	Text      *string         `json:"text"`
	Reasoning string          `json:"reasoning"`
}

type waitWire struct {
	Type         string `json:"type"`
	Milliseconds *int   `json:"milliseconds"`
	Reasoning    string `json:"reasoning"`
}

type doneWire struct {
	Type      string  `json:"type"`
	Result    *string `json:"result"`
	Success   *bool   `json:"success"`
	Reasoning string  `json:"reasoning"`
}

// Parse validates a raw model reply against the action vocabulary. The reply
// may be wrapped in a markdown code fence; the object inside must match
// exactly one variant with no extra fields besides "reasoning".
func Parse(raw string) (Action, error) {
	body := unfence(raw)
	if body == "" {
		return nil, parseErrorf(raw, "empty reply")
	}

	var envelope map[string]json.RawMessage
	if err := decodeStrict(body, &envelope, false); err != nil {
		return nil, parseErrorf(raw, "reply is not a single JSON object: %v", err)
	}
	tagRaw, ok := envelope["type"]
	if !ok {
		return nil, parseErrorf(raw, `missing required field "type"`)
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return nil, parseErrorf(raw, `field "type" must be a string`)
	}

	switch Type(tag) {
	case TypeNavigate:
		var w navigateWire
		if err := decodeStrict(body, &w, true); err != nil {
			return nil, parseErrorf(raw, "navigate: %v", err)
		}
		if w.URL == nil || strings.TrimSpace(*w.URL) == "" {
			return nil, parseErrorf(raw, `navigate: missing required field "url"`)
		}
		return Navigate{URL: strings.TrimSpace(*w.URL), Reasoning: w.Reasoning}, nil

	case TypeClick:
		var w clickWire
		if err := decodeStrict(body, &w, true); err != nil {
			return nil, parseErrorf(raw, "click: %v", err)
		}
		target, err := parseTarget(w.Target)
		if err != nil {
			return nil, parseErrorf(raw, "click: %v", err)
		}
		return Click{Target: target, Reasoning: w.Reasoning}, nil

	case TypeType:
		var w typeWire
		if err := decodeStrict(body, &w, true); err != nil {
			return nil, parseErrorf(raw, "type: %v", err)
		}
		target, err := parseTarget(w.Target)
		if err != nil {
			return nil, parseErrorf(raw, "type: %v", err)
		}
		if w.Text == nil {
			return nil, parseErrorf(raw, `type: missing required field "text"`)
		}
		return TypeText{Target: target, Text: *w.Text, Reasoning: w.Reasoning}, nil

	case TypeWait:
		var w waitWire
		if err := decodeStrict(body, &w, true); err != nil {
			return nil, parseErrorf(raw, "wait: %v", err)
		}
		if w.Milliseconds == nil {
			return nil, parseErrorf(raw, `wait: missing required field "milliseconds"`)
		}
		if *w.Milliseconds < 0 {
			return nil, parseErrorf(raw, "wait: milliseconds must not be negative")
		}
		return Wait{Milliseconds: *w.Milliseconds, Reasoning: w.Reasoning}, nil

	case TypeDone:
		var w doneWire
		if err := decodeStrict(body, &w, true); err != nil {
			return nil, parseErrorf(raw, "done: %v", err)
		}
		if w.Result == nil {
			return nil, parseErrorf(raw, `done: missing required field "result"`)
		}
		if w.Success == nil {
			return nil, parseErrorf(raw, `done: missing required field "success"`)
		}
		return Finish{Result: *w.Result, Success: *w.Success, Reasoning: w.Reasoning}, nil

	default:
		return nil, parseErrorf(raw, "unknown action type %q", tag)
	}
}

func decodeStrict(body string, v any, disallowUnknown bool) error {
	dec := json.NewDecoder(strings.NewReader(body))
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after the JSON object")
	}
	return nil
}

func parseTarget(raw json.RawMessage) (Target, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Target{}, errors.New(`missing required field "target"`)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Target{}, fmt.Errorf("invalid target: %v", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return Target{}, errors.New("target must not be empty")
		}
		if n, err := strconv.Atoi(s); err == nil {
			return indexTarget(n)
		}
		return NameTarget("", s), nil

	case '{':
		var obj struct {
			Index *int   `json:"index"`
			Role  string `json:"role"`
			Name  string `json:"name"`
		}
		if err := decodeStrict(string(raw), &obj, true); err != nil {
			return Target{}, fmt.Errorf("invalid target object: %v", err)
		}
		if obj.Index != nil {
			return indexTarget(*obj.Index)
		}
		if strings.TrimSpace(obj.Name) == "" {
			return Target{}, errors.New(`target object needs "index" or "name"`)
		}
		return NameTarget(strings.TrimSpace(obj.Role), strings.TrimSpace(obj.Name)), nil

	default:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return Target{}, fmt.Errorf("target must be an element index, a name, or {role, name}")
		}
		return indexTarget(n)
	}
}

func indexTarget(n int) (Target, error) {
	if n < 0 {
		return Target{}, fmt.Errorf("target index %d is negative", n)
	}
	return IndexTarget(n), nil
}

// unfence strips a surrounding ```json ... ``` block if present.
func unfence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
