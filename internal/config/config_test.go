package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
}

func TestInitWithDefaults(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	s, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if !s.Autoplay {
		t.Error("autoplay default should be true")
	}
	if s.Mix {
		t.Error("mix default should be false")
	}
	if !s.ShowRemote {
		t.Error("show_remote default should be true")
	}
	if s.GridLength != defaultGridLength {
		t.Errorf("grid_length default = %d, want %d", s.GridLength, defaultGridLength)
	}
	if s.AudioBufferLen != defaultAudioBufferLen {
		t.Errorf("audio_buffer_len default = %d, want %d", s.AudioBufferLen, defaultAudioBufferLen)
	}
	if !s.StopDeviceWhenConnecting {
		t.Error("stop_device_when_connecting default should be true")
	}
}

func TestInitCreatesConfigWhenMissing(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdgconf"))

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configFile := filepath.Join(tmpDir, "xdgconf", AppName, "config.yaml")
	if _, err := os.Stat(configFile); err != nil {
		t.Fatalf("expected config file to be created at %s: %v", configFile, err)
	}
}

func TestValidateGridLengthRange(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{"below minimum", 1, true},
		{"minimum", 2, false},
		{"default", 16, false},
		{"maximum", 64, false},
		{"above maximum", 65, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.GridLength = tt.length
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAudioBufferLenRange(t *testing.T) {
	tests := []struct {
		name      string
		bufferLen int
		wantErr   bool
	}{
		{"below minimum", 255, true},
		{"minimum", 256, false},
		{"maximum", 4096, false},
		{"above maximum", 4097, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.AudioBufferLen = tt.bufferLen
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	s := validSettings()
	s.GridLength = 0
	s.AudioBufferLen = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected Validate() to report both out-of-range fields")
	}
}

func validSettings() Settings {
	return Settings{
		GridLength:     defaultGridLength,
		AudioBufferLen: defaultAudioBufferLen,
	}
}

func TestDefaultAudioUseFloatIsDeterministic(t *testing.T) {
	// defaultAudioUseFloat must not read any global/random state; calling
	// it twice must agree.
	if defaultAudioUseFloat() != defaultAudioUseFloat() {
		t.Error("defaultAudioUseFloat() is not stable across calls")
	}
}
