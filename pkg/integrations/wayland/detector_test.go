package wayland

import (
	"context"
	"errors"
	"testing"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/rs/zerolog"
)

const swayTree = `{
  "id": 1, "type": "root", "focused": false,
  "nodes": [
    {"id": 3, "type": "output", "focused": false, "nodes": [
      {"id": 4, "type": "workspace", "focused": false, "nodes": [
        {"id": 10, "type": "con", "focused": false, "app_id": "kitty", "pid": 900, "nodes": []},
        {"id": 11, "type": "con", "focused": true, "app_id": null, "pid": 1201, "name": "Mozilla Firefox",
         "window_properties": {"class": "firefox", "instance": "Navigator"}, "nodes": []}
      ], "floating_nodes": []}
    ]}
  ]
}`

func TestDetectCompositor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"sway", map[string]string{"SWAYSOCK": "/run/user/1000/sway-ipc.sock"}, compositorSway},
		{"hyprland", map[string]string{"HYPRLAND_INSTANCE_SIGNATURE": "abc"}, compositorHyprland},
		{"none", map[string]string{}, compositorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectCompositor(func(k string) string { return tt.env[k] })
			if got != tt.want {
				t.Errorf("detectCompositor() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseSwayTree(t *testing.T) {
	s, err := parseSwayTree([]byte(swayTree))
	if err != nil {
		t.Fatalf("parseSwayTree() error: %v", err)
	}
	if s == nil {
		t.Fatal("parseSwayTree() returned nil sample")
	}
	if s.MatchKey != "Navigator" || s.DisplayName != "firefox" || s.PID != 1201 {
		t.Errorf("parseSwayTree() = %+v", s)
	}
}

func TestParseSwayTreeNoFocus(t *testing.T) {
	s, err := parseSwayTree([]byte(`{"focused": false, "nodes": []}`))
	if err != nil {
		t.Fatalf("parseSwayTree() error: %v", err)
	}
	if s != nil {
		t.Errorf("parseSwayTree() = %+v, want nil", s)
	}
}

func TestParseHyprlandWindow(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantNil bool
		wantErr bool
	}{
		{"class", `{"class": "code", "title": "main.go", "pid": 42}`, "code", false, false},
		{"initial class", `{"class": "", "initialClass": "Slack", "pid": 7}`, "Slack", false, false},
		{"empty object", `{}`, "", true, false},
		{"invalid", `not json`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseHyprlandWindow([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if s != nil {
					t.Errorf("got %+v, want nil", s)
				}
				return
			}
			if s == nil || s.MatchKey != tt.wantKey {
				t.Errorf("got %+v, want key %s", s, tt.wantKey)
			}
		})
	}
}

func TestSampleIPCFailure(t *testing.T) {
	d := NewDetector(zerolog.Nop())
	d.compositor = compositorHyprland
	d.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	_, err := d.Sample(context.Background())
	if !errors.Is(err, focus.ErrProbeUnavailable) {
		t.Errorf("error = %v, want ErrProbeUnavailable", err)
	}
}

func TestUnknownCompositorUnavailable(t *testing.T) {
	d := NewDetector(zerolog.Nop())
	d.compositor = compositorUnknown
	if d.IsAvailable() {
		t.Error("IsAvailable() = true for unknown compositor")
	}
}
