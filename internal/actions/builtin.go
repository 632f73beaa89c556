package actions

import "github.com/rendis/deskbot/pkg/schema"

// RegisterBuiltins registers every built-in action kind in the given registry.
func RegisterBuiltins(reg *Registry) error {
	builtins := []struct {
		kind   Kind
		desc   string
		decode Decoder
	}{
		{KindClick, "Click at screen coordinates", decodeClick(false)},
		{KindDoubleClick, "Double-click at screen coordinates", decodeClick(true)},
		{KindTypeText, "Paste text with {code}/{quantity} placeholders", decodeTypeText},
		{KindPressKey, "Press a key or a +-joined chord", decodePressKey},
		{KindWait, "Wait a number of seconds", decodeWait},
		{KindClearInput, "Select all and delete in the focused input", decodeClearInput},
	}

	for _, b := range builtins {
		if err := reg.Register(b.kind, b.desc, b.decode); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a registry with the built-in kinds.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		panic(err) // built-in kinds are unique
	}
	return reg
}

func decodeClick(double bool) Decoder {
	return func(def schema.StepDefinition, c Common) Action {
		return Click{Common: c, X: copyInt(def.X), Y: copyInt(def.Y), Double: double}
	}
}

func decodeTypeText(def schema.StepDefinition, c Common) Action {
	return TypeText{Common: c, Template: def.Text, ClearFirst: def.ClearFirst}
}

func decodePressKey(def schema.StepDefinition, c Common) Action {
	return PressKey{Common: c, KeySpec: def.Key}
}

func decodeWait(def schema.StepDefinition, c Common) Action {
	d := DefaultWait
	if def.Seconds.Valid {
		d = secondsToDuration(def.Seconds.Value)
	}
	// wait_after never applies to wait steps.
	c.WaitAfter = 0
	return Wait{Common: c, Duration: d}
}

func decodeClearInput(_ schema.StepDefinition, c Common) Action {
	return ClearInput{Common: c}
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
