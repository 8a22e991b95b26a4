package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/snapcam/internal/platform"
)

type testConfig struct {
	Config string `help:"Config file path"`

	StringField string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField   bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int           `toml:"test.int_field" env:"INT_FIELD"`
	UintField   uint32        `toml:"test.uint_field" env:"UINT_FIELD"`
	SliceField  []string      `toml:"test.slice_field" env:"SLICE_FIELD"`
	WaitField   time.Duration `toml:"test.wait" env:"WAIT"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeFile(t, "snapcam.toml", `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
uint_field = 7
slice_field = ["item1", "item2", "item3"]
wait = "250ms"

[nested]
value = "nested value"
`)

	cfg := &testConfig{Config: path}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.StringField != "hello world" {
		t.Errorf("StringField = %q", cfg.StringField)
	}
	if !cfg.BoolField {
		t.Error("BoolField = false")
	}
	if cfg.IntField != 42 {
		t.Errorf("IntField = %d", cfg.IntField)
	}
	if cfg.UintField != 7 {
		t.Errorf("UintField = %d", cfg.UintField)
	}
	if want := []string{"item1", "item2", "item3"}; !reflect.DeepEqual(cfg.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", cfg.SliceField, want)
	}
	if cfg.WaitField != 250*time.Millisecond {
		t.Errorf("WaitField = %v", cfg.WaitField)
	}
	if cfg.NestedString != "nested value" {
		t.Errorf("NestedString = %q", cfg.NestedString)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("SNAPCAM_STRING_FIELD", "env string")
	t.Setenv("SNAPCAM_BOOL_FIELD", "true")
	t.Setenv("SNAPCAM_INT_FIELD", "123")
	t.Setenv("SNAPCAM_SLICE_FIELD", "a, b,c")
	t.Setenv("SNAPCAM_WAIT", "2s")

	cfg := &testConfig{}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.StringField != "env string" || !cfg.BoolField || cfg.IntField != 123 {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(cfg.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", cfg.SliceField, want)
	}
	if cfg.WaitField != 2*time.Second {
		t.Errorf("WaitField = %v", cfg.WaitField)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, "snapcam.toml", `
[test]
string_field = "from file"
int_field = 1
bool_field = true
`)
	t.Setenv("SNAPCAM_STRING_FIELD", "from env")
	t.Setenv("SNAPCAM_INT_FIELD", "2")

	cfg := &testConfig{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&cfg.IntField, "int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "3"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(cfg, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.StringField != "from env" {
		t.Errorf("StringField = %q, want env to override file", cfg.StringField)
	}
	if cfg.IntField != 3 {
		t.Errorf("IntField = %d, want flag to win", cfg.IntField)
	}
	if !cfg.BoolField {
		t.Error("BoolField from file lost")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		env  map[string]string
	}{
		{name: "invalid toml", toml: "[test\ninvalid"},
		{name: "wrong type", toml: "[test]\nint_field = \"many\""},
		{name: "negative uint", toml: "[test]\nuint_field = -1"},
		{name: "bad env int", env: map[string]string{"SNAPCAM_INT_FIELD": "lots"}},
		{name: "bad env duration", env: map[string]string{"SNAPCAM_WAIT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &testConfig{}
			if tt.toml != "" {
				cfg.Config = writeFile(t, "bad.toml", tt.toml)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if err := LoadConfig(cfg, nil); err == nil {
				t.Error("LoadConfig() error = nil, want failure")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg := &testConfig{Config: filepath.Join(t.TempDir(), "absent.toml")}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil for missing file", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "SNAPCAM_DOTENV_PROBE=from-dotenv\nSNAPCAM_DOTENV_KEEP=from-dotenv\n")
	t.Setenv("SNAPCAM_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("SNAPCAM_DOTENV_PROBE") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SNAPCAM_DOTENV_PROBE"); got != "from-dotenv" {
		t.Errorf("SNAPCAM_DOTENV_PROBE = %q", got)
	}
	if got := os.Getenv("SNAPCAM_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("SNAPCAM_DOTENV_KEEP = %q, want existing value kept", got)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":             "port",
		"CameraWidth":      "camera-width",
		"CaptureTimeoutMs": "capture-timeout-ms",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	doc := map[string]any{
		"camera": map[string]any{"width": int64(640)},
		"flat":   "x",
	}
	if got := getNestedValue(doc, "camera.width"); got != int64(640) {
		t.Errorf("camera.width = %v", got)
	}
	if got := getNestedValue(doc, "flat.deeper"); got != nil {
		t.Errorf("flat.deeper = %v, want nil", got)
	}
	if got := getNestedValue(doc, "missing.key"); got != nil {
		t.Errorf("missing.key = %v, want nil", got)
	}
}

func TestOptionsFromFile(t *testing.T) {
	path := writeFile(t, "snapcam.toml", `
[camera]
device_id = "/dev/video2"
width = 640
height = 480
pixel_format = "yuyv"
role = "viewfinder"
strict_format = true

[capture]
timeout_ms = 250

[logging]
level = "debug"
camera = "warn"

[logging.file]
path = "/tmp/snapcam.log"
`)
	opts := &Options{Config: path, CameraWidth: 480, CameraHeight: 480, CameraBufferCount: 4, CameraPixelFormat: "BGR888", LoggingLevel: "info"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	sc, err := opts.StreamConfig()
	if err != nil {
		t.Fatalf("StreamConfig() error = %v", err)
	}
	if sc.Width != 640 || sc.Height != 480 || sc.PixelFormat != platform.FormatYUYV || sc.Role != platform.RoleViewfinder || sc.BufferCount != 4 {
		t.Errorf("StreamConfig() = %+v", sc)
	}
	if opts.CameraDeviceID != "/dev/video2" || !opts.CameraStrict {
		t.Errorf("camera options = %+v", opts)
	}
	if got := opts.CaptureTimeout(); got != 250*time.Millisecond {
		t.Errorf("CaptureTimeout() = %v", got)
	}

	lc := opts.LoggingConfig()
	if lc.Level != "debug" || lc.Modules["camera"] != "warn" || lc.File.Path != "/tmp/snapcam.log" {
		t.Errorf("LoggingConfig() = %+v", lc)
	}
	if _, ok := lc.Modules["api"]; ok {
		t.Error("unset module level present")
	}
}

func TestApplyDefaults(t *testing.T) {
	opts := &Options{}
	if err := ApplyDefaults(opts); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	if opts.Config != "snapcam.toml" || opts.Port != ":8090" {
		t.Errorf("Config = %q, Port = %q", opts.Config, opts.Port)
	}
	if opts.CameraWidth != 480 || opts.CameraHeight != 480 || opts.CameraPixelFormat != "BGR888" {
		t.Errorf("camera defaults = %dx%d %s", opts.CameraWidth, opts.CameraHeight, opts.CameraPixelFormat)
	}
	if opts.CaptureTimeoutMs != 1000 || opts.CaptureCycles != 1 {
		t.Errorf("capture defaults = %d ms, %d cycles", opts.CaptureTimeoutMs, opts.CaptureCycles)
	}
	if opts.CameraDeviceID != "" || opts.LoggingCamera != "" {
		t.Error("empty defaults were set")
	}

	var bad struct {
		Count int `default:"many"`
	}
	if err := ApplyDefaults(&bad); err == nil {
		t.Error("ApplyDefaults() accepted a non-numeric int default")
	}
}

func TestOptionsStreamConfigRejectsBadValues(t *testing.T) {
	tests := []Options{
		{CameraPixelFormat: "H264"},
		{CameraRole: "thermal"},
		{CameraWidth: -1},
	}
	for _, opts := range tests {
		if _, err := opts.StreamConfig(); err == nil {
			t.Errorf("StreamConfig(%+v) error = nil", opts)
		}
	}
}

func TestLoadRuntime(t *testing.T) {
	path := writeFile(t, "snapcam.toml", `
[logging]
level = "warn"
format = "json"
api = "debug"

[logging.file]
path = "snapcam.log"
max_size_mb = 5

[capture]
timeout_ms = 1500
`)
	rt, err := LoadRuntime(path)
	if err != nil {
		t.Fatalf("LoadRuntime() error = %v", err)
	}
	if rt.CaptureTimeout != 1500*time.Millisecond {
		t.Errorf("CaptureTimeout = %v", rt.CaptureTimeout)
	}
	if rt.Logging.Level != "warn" || rt.Logging.Format != "json" || rt.Logging.Modules["api"] != "debug" {
		t.Errorf("Logging = %+v", rt.Logging)
	}
	if rt.Logging.File.Path != "snapcam.log" || rt.Logging.File.MaxSizeMB != 5 {
		t.Errorf("Logging.File = %+v", rt.Logging.File)
	}
	if _, ok := rt.Logging.Modules["file"]; ok {
		t.Error("file table treated as a module")
	}

	if got := LoadLoggingConfig(filepath.Join(t.TempDir(), "absent.toml")); got.Level != "info" || got.Format != "text" {
		t.Errorf("LoadLoggingConfig(missing) = %+v, want defaults", got)
	}
}
