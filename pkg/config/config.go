// Package config loads the YAML configuration shared by the telescope
// binaries.  Defaults reproduce the speedlink pad driving motor 1.
package config

import (
	"io/ioutil"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tigerbot-team/telescope/pkg/hardware"
	"github.com/tigerbot-team/telescope/pkg/interp"
	"github.com/tigerbot-team/telescope/pkg/joystick"
	"github.com/tigerbot-team/telescope/pkg/logging"
	"github.com/tigerbot-team/telescope/pkg/messenger"
	"github.com/tigerbot-team/telescope/pkg/motor"
)

const (
	ActionToggle   = "toggle_active_state"
	ActionSetSpeed = "set_speed"
	ActionFineTune = "fine_tune_speed"
	ActionStop     = "stop"
	ActionLog      = "log"

	UnboundIgnore = "ignore"
	UnboundLog    = "log"
)

var actions = map[string]bool{
	ActionToggle:   true,
	ActionSetSpeed: true,
	ActionFineTune: true,
	ActionStop:     true,
	ActionLog:      true,
}

// RemapPresets are button renames for pads whose face buttons report
// unexpected names.
var RemapPresets = map[string]map[string]string{
	"none": {},
	"speedlink": {
		"BTN_NORTH": "BTN_X",
		"BTN_WEST":  "BTN_Y",
	},
}

type Config struct {
	Joystick  JoystickConfig  `yaml:"joystick"`
	Speed     SpeedConfig     `yaml:"speed"`
	Motor     MotorConfig     `yaml:"motor"`
	Messenger MessengerConfig `yaml:"messenger"`
	Display   DisplayConfig   `yaml:"display"`
	Sound     SoundConfig     `yaml:"sound"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type JoystickConfig struct {
	Index         int                `yaml:"index"`
	DeviceGlob    string             `yaml:"device_glob"`
	ReadTimeoutMS int                `yaml:"read_timeout_ms"`
	RemapPreset   string             `yaml:"remap_preset"`
	Remap         map[string]string  `yaml:"remap,omitempty"`
	Bindings      map[string]Binding `yaml:"bindings"`
	// Unbound is what happens to events with no binding: ignore or log.
	Unbound string `yaml:"unbound"`
}

// Binding attaches an action to an input.  Axis values are multiplied by
// Scale before use; zero means 1.
type Binding struct {
	Action string  `yaml:"action"`
	Scale  float64 `yaml:"scale,omitempty"`
}

func (b Binding) Factor() float64 {
	if b.Scale == 0 {
		return 1
	}
	return b.Scale
}

type SpeedConfig struct {
	// AxisBreakpoints are the raw axis readings for full reverse, centre and
	// full forward.
	AxisBreakpoints []float64 `yaml:"axis_breakpoints"`
}

type PinsConfig struct {
	Enable     int   `yaml:"enable"`
	Direction  int   `yaml:"direction"`
	Mode       []int `yaml:"mode"`
	PWMChannel int   `yaml:"pwm_channel"`
}

type MotorConfig struct {
	ID             int         `yaml:"id"`
	MaxFrequency   int         `yaml:"max_frequency"`
	DutyCycle      float64     `yaml:"duty_cycle"`
	GPIOBackend    string      `yaml:"gpio_backend"`
	PWMBackend     string      `yaml:"pwm_backend"`
	GPIOChip       string      `yaml:"gpio_chip,omitempty"`
	I2CBus         string      `yaml:"i2c_bus,omitempty"`
	PCA9685Channel int         `yaml:"pca9685_channel,omitempty"`
	Pins           *PinsConfig `yaml:"pins,omitempty"`
}

type MessengerConfig struct {
	QueueSize  int    `yaml:"queue_size"`
	SocketPath string `yaml:"socket_path"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
}

type SoundConfig struct {
	Enabled    bool   `yaml:"enabled"`
	EnableCue  string `yaml:"enable_cue"`
	DisableCue string `yaml:"disable_cue"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Joystick: JoystickConfig{
			Index:         0,
			DeviceGlob:    joystick.DefaultGlob,
			ReadTimeoutMS: 50,
			RemapPreset:   "speedlink",
			Bindings: map[string]Binding{
				"BTN_A":     {Action: ActionToggle},
				"ABS_X":     {Action: ActionSetSpeed},
				"ABS_RX":    {Action: ActionSetSpeed, Scale: 1.0 / 1250},
				"ABS_HAT0X": {Action: ActionFineTune},
			},
			Unbound: UnboundIgnore,
		},
		Speed: SpeedConfig{
			AxisBreakpoints: append([]float64(nil), interp.DefaultAxisBreakpoints...),
		},
		Motor: MotorConfig{
			ID:           1,
			MaxFrequency: motor.DefaultMaxFrequency,
			DutyCycle:    motor.DefaultDutyCycle,
			GPIOBackend:  hardware.BackendPeriph,
			PWMBackend:   hardware.BackendPeriph,
		},
		Messenger: MessengerConfig{
			QueueSize:  messenger.DefaultQueueSize,
			SocketPath: messenger.DefaultSocketPath,
		},
		Display: DisplayConfig{
			Device: "/dev/fb1",
		},
		Sound: SoundConfig{
			EnableCue:  "/sounds/armed.wav",
			DisableCue: "/sounds/disarmed.wav",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults.  Unknown keys are rejected.  An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping values the document does not set.
// A document that sets joystick.bindings replaces the default bindings.
func Parse(data []byte, cfg *Config) error {
	var probe struct {
		Joystick struct {
			Bindings map[string]Binding `yaml:"bindings"`
		} `yaml:"joystick"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return errors.Wrap(err, "decode config yaml")
	}
	if probe.Joystick.Bindings != nil {
		cfg.Joystick.Bindings = nil
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return errors.Wrap(err, "decode config yaml")
	}
	return nil
}

// Overrides are command-line values applied over the file.  Nil fields are
// left alone.
type Overrides struct {
	JoystickIndex *int
	SocketPath    *string
	LogLevel      *string
	Dummy         *bool
}

func (o Overrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.JoystickIndex != nil {
		cfg.Joystick.Index = *o.JoystickIndex
	}
	if o.SocketPath != nil {
		cfg.Messenger.SocketPath = *o.SocketPath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.Dummy != nil && *o.Dummy {
		cfg.Motor.GPIOBackend = hardware.BackendDummy
		cfg.Motor.PWMBackend = hardware.BackendDummy
	}
}

func (c *Config) Validate() error {
	j := c.Joystick
	if j.Index < 0 {
		return errors.Errorf("joystick.index must not be negative, got %d", j.Index)
	}
	if j.DeviceGlob == "" {
		return errors.New("joystick.device_glob must not be empty")
	}
	if j.ReadTimeoutMS <= 0 {
		return errors.Errorf("joystick.read_timeout_ms must be positive, got %d", j.ReadTimeoutMS)
	}
	if _, ok := RemapPresets[j.RemapPreset]; !ok && j.RemapPreset != "" {
		return errors.Errorf("joystick.remap_preset: unknown preset %q (known: %v)", j.RemapPreset, presetNames())
	}
	for id, b := range j.Bindings {
		if !actions[b.Action] {
			return errors.Errorf("joystick.bindings.%s: unknown action %q", id, b.Action)
		}
		if math.IsNaN(b.Scale) || math.IsInf(b.Scale, 0) {
			return errors.Errorf("joystick.bindings.%s: scale must be finite", id)
		}
	}
	if j.Unbound != UnboundIgnore && j.Unbound != UnboundLog {
		return errors.Errorf("joystick.unbound must be %q or %q, got %q", UnboundIgnore, UnboundLog, j.Unbound)
	}

	if len(c.Speed.AxisBreakpoints) != 3 {
		return errors.Errorf("speed.axis_breakpoints needs 3 values, got %d", len(c.Speed.AxisBreakpoints))
	}
	if _, err := interp.AxisToSpeed(c.Speed.AxisBreakpoints); err != nil {
		return errors.Wrap(err, "speed.axis_breakpoints")
	}

	m := c.Motor
	if _, ok := hardware.Presets[m.ID]; !ok && m.Pins == nil {
		return errors.Errorf("motor.id %d has no preset wiring; set motor.pins", m.ID)
	}
	if m.MaxFrequency < interp.MinFrequency {
		return errors.Errorf("motor.max_frequency must be at least %d, got %d", interp.MinFrequency, m.MaxFrequency)
	}
	if m.DutyCycle <= 0 || m.DutyCycle > 100 {
		return errors.Errorf("motor.duty_cycle must be in (0, 100], got %v", m.DutyCycle)
	}

	if c.Messenger.QueueSize <= 0 {
		return errors.Errorf("messenger.queue_size must be positive, got %d", c.Messenger.QueueSize)
	}
	if c.Messenger.SocketPath == "" {
		return errors.New("messenger.socket_path must not be empty")
	}
	if c.Display.Enabled && c.Display.Device == "" {
		return errors.New("display.device must be set when the display is enabled")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	return nil
}

func presetNames() []string {
	var names []string
	for n := range RemapPresets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Joystick.ReadTimeoutMS) * time.Millisecond
}

// ButtonRemap merges the preset with the explicit remap entries.
func (c *Config) ButtonRemap() map[string]string {
	pairs := map[string]string{}
	for k, v := range RemapPresets[c.Joystick.RemapPreset] {
		pairs[k] = v
	}
	for k, v := range c.Joystick.Remap {
		pairs[k] = v
	}
	return pairs
}

// Hardware resolves the motor wiring and backends.
func (c *Config) Hardware() hardware.Config {
	pins := hardware.Presets[c.Motor.ID]
	if p := c.Motor.Pins; p != nil {
		pins = hardware.Pins{
			Enable:     p.Enable,
			Direction:  p.Direction,
			Mode:       p.Mode,
			PWMChannel: p.PWMChannel,
		}
	}
	return hardware.Config{
		Pins:           pins,
		GPIO:           c.Motor.GPIOBackend,
		PWM:            c.Motor.PWMBackend,
		GPIOChip:       c.Motor.GPIOChip,
		I2CBus:         c.Motor.I2CBus,
		PCA9685Channel: c.Motor.PCA9685Channel,
	}
}

func (c *Config) MotorConfig() motor.Config {
	return motor.Config{
		MaxFrequency: c.Motor.MaxFrequency,
		DutyCycle:    c.Motor.DutyCycle,
	}
}
