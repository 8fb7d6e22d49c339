package action

// Param describes one field of an action on the wire.
type Param struct {
	Name        string
	Kind        string
	Description string
}

// Spec describes one member of the action vocabulary.
type Spec struct {
	Type        Type
	Description string
	Params      []Param
	Example     string
}

var targetParam = Param{
	Name:        "target",
	Kind:        `integer | string | {"role": string, "name": string}`,
	Description: "element index from the current element list, or its role and accessible name",
}

// Vocabulary lists every action the model may request, in prompt order.
func Vocabulary() []Spec {
	return []Spec{
		{
			Type:        TypeNavigate,
			Description: "Load a URL in the current tab.",
			Params:      []Param{{Name: "url", Kind: "string", Description: "absolute URL to load"}},
			Example:     `{"type": "navigate", "url": "https://example.com", "reasoning": "start on the site"}`,
		},
		{
			Type:        TypeClick,
			Description: "Click an element from the current element list.",
			Params:      []Param{targetParam},
			Example:     `{"type": "click", "target": 3, "reasoning": "open the search results"}`,
		},
		{
			Type:        TypeType,
			Description: "Replace the contents of an input with text.",
			Params:      []Param{targetParam, {Name: "text", Kind: "string", Description: "text to enter"}},
			Example:     `{"type": "type", "target": {"role": "textbox", "name": "Search"}, "text": "wireless mouse"}`,
		},
		{
			Type:        TypeWait,
			Description: "Pause before looking at the page again.",
			Params:      []Param{{Name: "milliseconds", Kind: "integer", Description: "how long to wait, capped by the runner"}},
			Example:     `{"type": "wait", "milliseconds": 1000}`,
		},
		{
			Type:        TypeDone,
			Description: "Stop and report the outcome of the goal.",
			Params: []Param{
				{Name: "result", Kind: "string", Description: "answer or summary for the user"},
				{Name: "success", Kind: "boolean", Description: "whether the goal was achieved"},
			},
			Example: `{"type": "done", "result": "Example Domain", "success": true}`,
		},
	}
}
