package hotkey

import "testing"

func TestParseAccelerator(t *testing.T) {
	tests := []struct {
		in      string
		want    Accelerator
		wantErr bool
	}{
		{in: "Alt+Space", want: Accelerator{Mods: ModAlt, Key: "Space"}},
		{in: "ctrl+shift+b", want: Accelerator{Mods: ModCtrl | ModShift, Key: "B"}},
		{in: "Cmd + F5", want: Accelerator{Mods: ModSuper, Key: "F5"}},
		{in: "F12", want: Accelerator{Key: "F12"}},
		{in: "Control+Option+Enter", want: Accelerator{Mods: ModCtrl | ModAlt, Key: "Return"}},
		{in: "", wantErr: true},
		{in: "Alt+", wantErr: true},
		{in: "Alt", wantErr: true},
		{in: "Hyper+Space", wantErr: true},
		{in: "Ctrl+F13", wantErr: true},
		{in: "Ctrl+F01", wantErr: true},
		{in: "Ctrl+PageUp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAccelerator(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAccelerator: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestAcceleratorString(t *testing.T) {
	acc, err := ParseAccelerator("shift+alt+ctrl+space")
	if err != nil {
		t.Fatal(err)
	}
	if acc.String() != "Ctrl+Alt+Shift+Space" {
		t.Errorf("unexpected canonical form %q", acc.String())
	}
}

func TestPlatformCodes(t *testing.T) {
	acc := Accelerator{Mods: ModCtrl | ModAlt, Key: "Space"}

	if acc.X11KeySym() != "space" {
		t.Errorf("unexpected keysym %q", acc.X11KeySym())
	}
	if acc.X11Modifiers() != x11ControlMask|x11Mod1Mask {
		t.Errorf("unexpected X11 modifiers %d", acc.X11Modifiers())
	}

	code, ok := acc.MacKeyCode()
	if !ok || code != 49 {
		t.Errorf("expected Space key code 49, got %d (%v)", code, ok)
	}
	if acc.MacModifiers() != macControlKey|macOptionKey {
		t.Errorf("unexpected mac modifiers %#x", acc.MacModifiers())
	}

	if (Accelerator{Key: "Q"}).X11KeySym() != "q" {
		t.Error("letters should map to lowercase keysyms")
	}
}
