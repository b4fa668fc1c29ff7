// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package vartype

import "testing"

func TestNewVariable(t *testing.T) {
	t.Run("a new variable is set", func(t *testing.T) {
		v := NewVariable(42)
		if !v.IsSet() {
			t.Fatal("expected variable to be set")
		}
		if v.Value() != 42 {
			t.Errorf("expected value to be 42, got %d", v.Value())
		}
	})
	t.Run("a zero value is still set", func(t *testing.T) {
		v := NewVariable(0)
		val, ok := v.Get()
		if !ok {
			t.Fatal("expected variable to be set")
		}
		if val != 0 {
			t.Errorf("expected value to be 0, got %d", val)
		}
	})
}

func TestNone(t *testing.T) {
	t.Run("none is not set", func(t *testing.T) {
		v := None[[]string]()
		if v.IsSet() {
			t.Fatal("expected variable to not be set")
		}
		if _, ok := v.Get(); ok {
			t.Error("expected Get to report an unset variable")
		}
		if v.String() != "<none>" {
			t.Errorf("expected string representation to be <none>, got %q", v.String())
		}
	})
}

func TestVariable_SetReset(t *testing.T) {
	t.Run("set and reset toggle the state", func(t *testing.T) {
		var v Variable[string]
		v.Set("paris")
		if !v.IsSet() || v.Value() != "paris" {
			t.Fatalf("expected variable to hold paris, got %q", v.String())
		}
		v.Reset()
		if v.IsSet() {
			t.Error("expected variable to be unset after reset")
		}
		if v.Value() != "" {
			t.Errorf("expected zero value after reset, got %q", v.Value())
		}
	})
}
