// Package config implements the preferences store: a viper-backed
// key->value provider with a fixed, documented key set and no hidden
// keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	AppName    = "elektroid"
	ConfigType = "yaml"

	defaultGridLength    = 16
	defaultAudioBufferLen = 256
)

// DefaultConfig seeds a freshly created config file; every key here
// must match a Settings field 1:1.
var DefaultConfig = fmt.Sprintf(`# Elektroid configuration

autoplay: true
mix: false
show_remote: true
local_dir: %q
remote_dir: %q
show_grid: false
grid_length: %d
play_while_loading: true
audio_buffer_len: %d
audio_use_float: %v
stop_device_when_connecting: true
elektron_load_sound_tags: false
show_playback_cursor: false

# Comma-separated tag vocabularies offered by the sample tagger.
tags_type: "kick,snare,hat,clap,tom,cymbal,perc,fx"
tags_category: "drum,bass,lead,pad,pluck,vocal,fx,noise"
tags_genre: "techno,house,electro,idm,ambient,dnb,hiphop,experimental"
tags_mood: "dark,bright,warm,harsh,soft,aggressive,calm,weird"
tags_other: ""
`, defaultDir(), defaultDir(), defaultGridLength, defaultAudioBufferLen, defaultAudioUseFloat())

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// defaultAudioUseFloat picks the platform default: malgo's
// float32 format is uniformly supported, but Linux's most common ALSA
// configurations still default to integer PCM, so float is opted into
// everywhere except Linux.
func defaultAudioUseFloat() bool {
	return runtime.GOOS != "linux"
}

// Settings holds the full preferences store. There are no hidden
// keys beyond these.
type Settings struct {
	Autoplay   bool `mapstructure:"autoplay"`
	Mix        bool `mapstructure:"mix"`
	ShowRemote bool `mapstructure:"show_remote"`

	LocalDir  string `mapstructure:"local_dir"`
	RemoteDir string `mapstructure:"remote_dir"`

	ShowGrid   bool `mapstructure:"show_grid"`
	GridLength int  `mapstructure:"grid_length"`

	PlayWhileLoading bool `mapstructure:"play_while_loading"`

	AudioBufferLen int  `mapstructure:"audio_buffer_len"`
	AudioUseFloat  bool `mapstructure:"audio_use_float"`

	StopDeviceWhenConnecting bool `mapstructure:"stop_device_when_connecting"`
	ElektronLoadSoundTags    bool `mapstructure:"elektron_load_sound_tags"`
	ShowPlaybackCursor       bool `mapstructure:"show_playback_cursor"`

	TagsType     string `mapstructure:"tags_type"`
	TagsCategory string `mapstructure:"tags_category"`
	TagsGenre    string `mapstructure:"tags_genre"`
	TagsMood     string `mapstructure:"tags_mood"`
	TagsOther    string `mapstructure:"tags_other"`
}

// Init initializes viper with defaults and config file. Config file
// search order: current directory, then ~/.config/elektroid/.
func Init() error {
	home, _ := os.UserHomeDir()

	viper.SetDefault("autoplay", true)
	viper.SetDefault("mix", false)
	viper.SetDefault("show_remote", true)
	viper.SetDefault("local_dir", home)
	viper.SetDefault("remote_dir", home)
	viper.SetDefault("show_grid", false)
	viper.SetDefault("grid_length", defaultGridLength)
	viper.SetDefault("play_while_loading", true)
	viper.SetDefault("audio_buffer_len", defaultAudioBufferLen)
	viper.SetDefault("audio_use_float", defaultAudioUseFloat())
	viper.SetDefault("stop_device_when_connecting", true)
	viper.SetDefault("elektron_load_sound_tags", false)
	viper.SetDefault("show_playback_cursor", false)
	viper.SetDefault("tags_type", "")
	viper.SetDefault("tags_category", "")
	viper.SetDefault("tags_genre", "")
	viper.SetDefault("tags_mood", "")
	viper.SetDefault("tags_other", "")

	viper.SetConfigType(ConfigType)
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(home, ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within their documented
// ranges.
func (s *Settings) Validate() error {
	var errs []error

	if s.GridLength < 2 || s.GridLength > 64 {
		errs = append(errs, fmt.Errorf("grid_length must be between 2 and 64, got %d", s.GridLength))
	}
	if s.AudioBufferLen < 256 || s.AudioBufferLen > 4096 {
		errs = append(errs, fmt.Errorf("audio_buffer_len must be between 256 and 4096, got %d", s.AudioBufferLen))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
