package action

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type is the wire tag of an action.
type Type string

const (
	TypeNavigate Type = "navigate"
	TypeClick    Type = "click"
	TypeType     Type = "type"
	TypeWait     Type = "wait"
	TypeDone     Type = "done"
)

// Action is one browser operation proposed by the model. The set of
// implementations is closed to the types in this package.
type Action interface {
	Kind() Type
	Why() string
	fmt.Stringer
	isAction()
}

type Navigate struct {
	URL       string
	Reasoning string
}

type Click struct {
	Target    Target
	Reasoning string
}

type TypeText struct {
	Target    Target
	Text      string
	Reasoning string
}

type Wait struct {
	Milliseconds int
	Reasoning    string
}

// Finish ends the run with the model's verdict.
type Finish struct {
	Result    string
	Success   bool
	Reasoning string
}

func (Navigate) Kind() Type { return TypeNavigate }
func (Click) Kind() Type    { return TypeClick }
func (TypeText) Kind() Type { return TypeType }
func (Wait) Kind() Type     { return TypeWait }
func (Finish) Kind() Type   { return TypeDone }

func (a Navigate) Why() string { return a.Reasoning }
func (a Click) Why() string    { return a.Reasoning }
func (a TypeText) Why() string { return a.Reasoning }
func (a Wait) Why() string     { return a.Reasoning }
func (a Finish) Why() string   { return a.Reasoning }

func (Navigate) isAction() {}
func (Click) isAction()    {}
func (TypeText) isAction() {}
func (Wait) isAction()     {}
func (Finish) isAction()   {}

func (a Navigate) String() string { return fmt.Sprintf("navigate %s", a.URL) }
func (a Click) String() string    { return fmt.Sprintf("click %s", a.Target) }
func (a TypeText) String() string {
	return fmt.Sprintf("type %q into %s", a.Text, a.Target)
}
func (a Wait) String() string { return fmt.Sprintf("wait %dms", a.Milliseconds) }
func (a Finish) String() string {
	return fmt.Sprintf("done success=%t result=%q", a.Success, a.Result)
}

// Target references an element of the most recent page snapshot, either by
// its index or by role and accessible name.
type Target struct {
	Index   int
	ByIndex bool
	Role    string
	Name    string
}

func IndexTarget(i int) Target {
	return Target{Index: i, ByIndex: true}
}

func NameTarget(role, name string) Target {
	return Target{Role: role, Name: name}
}

func (t Target) String() string {
	if t.ByIndex {
		return "[" + strconv.Itoa(t.Index) + "]"
	}
	if t.Role == "" {
		return strconv.Quote(t.Name)
	}
	return t.Role + " " + strconv.Quote(t.Name)
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.ByIndex {
		return json.Marshal(t.Index)
	}
	return json.Marshal(struct {
		Role string `json:"role,omitempty"`
		Name string `json:"name"`
	}{t.Role, t.Name})
}

// The MarshalJSON methods below emit the wire shape the model is asked to produce.

func (a Navigate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type   `json:"type"`
		URL       string `json:"url"`
		Reasoning string `json:"reasoning,omitempty"`
	}{TypeNavigate, a.URL, a.Reasoning})
}

func (a Click) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type   `json:"type"`
		Target    Target `json:"target"`
		Reasoning string `json:"reasoning,omitempty"`
	}{TypeClick, a.Target, a.Reasoning})
}

func (a TypeText) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type   `json:"type"`
		Target    Target `json:"target"`
		Text      string `json:"text"`
		Reasoning string `json:"reasoning,omitempty"`
	}{TypeType, a.Target, a.Text, a.Reasoning})
}

func (a Wait) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         Type   `json:"type"`
		Milliseconds int    `json:"milliseconds"`
		Reasoning    string `json:"reasoning,omitempty"`
	}{TypeWait, a.Milliseconds, a.Reasoning})
}

func (a Finish) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type   `json:"type"`
		Result    string `json:"result"`
		Success   bool   `json:"success"`
		Reasoning string `json:"reasoning,omitempty"`
	}{TypeDone, a.Result, a.Success, a.Reasoning})
}
