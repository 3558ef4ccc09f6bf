package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the example rig description shipped with
// the repository.
const DefaultConfigPath = "config/rig.example.json"

// Defaults applied by the Get* accessors when a field is omitted.
const (
	DefaultReferenceFrame  = "world"
	DefaultBroadcastPeriod = time.Second
	DefaultLookupDelay     = 500 * time.Millisecond
	DefaultLookupWait      = time.Second
	DefaultJointStorePath  = "joints.db"
)

// RigConfig describes a calibration rig: the reference frame, lookup and
// broadcast timing, the joint store location and one entry per transform
// interface.
type RigConfig struct {
	ReferenceFrame *string `json:"reference_frame,omitempty"`

	// Durations are strings like "500ms".
	BroadcastPeriod   *string `json:"broadcast_period,omitempty"`
	LookupDelay       *string `json:"lookup_delay,omitempty"`
	LookupWait        *string `json:"lookup_wait,omitempty"`
	LookupMaxAttempts *int    `json:"lookup_max_attempts,omitempty"`

	JointStorePath *string `json:"joint_store_path,omitempty"`
	LaunchFilePath *string `json:"launch_file_path,omitempty"`

	// Joints seeds the joint store with values for joints it does not hold yet.
	Joints map[string]float64 `json:"joints,omitempty"`

	// StaticTransforms are fixed edges loaded into the frame graph before
	// any interface is built.
	StaticTransforms []StaticTransformConfig `json:"static_transforms,omitempty"`

	Interfaces []InterfaceConfig `json:"interfaces"`
}

// StaticTransformConfig is a fixed pose of Child expressed in Parent.
type StaticTransformConfig struct {
	Parent string     `json:"parent"`
	Child  string     `json:"child"`
	Pose   PoseConfig `json:"pose"`
}

// InterfaceConfig is one transform interface entry.
type InterfaceConfig struct {
	Kind           string      `json:"kind"`
	TransformFrame string      `json:"transform_frame"`
	HousingFrame   string      `json:"housing_frame,omitempty"`
	MountingFrame  string      `json:"mounting_frame,omitempty"`
	ParentFrame    string      `json:"parent_frame,omitempty"`
	InitialPose    *PoseConfig `json:"initial_pose,omitempty"`
}

// PoseConfig is a translation in metres plus Z-Y-X Euler angles in radians.
type PoseConfig struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	EZ float64 `json:"ez"`
	EY float64 `json:"ey"`
	EX float64 `json:"ex"`
}

// LoadRigConfig loads a RigConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadRigConfig(path string) (*RigConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseRigConfig(data)
}

// ParseRigConfig decodes and validates a RigConfig. Unknown fields are
// rejected so that misspelt frame keys do not silently fall back to defaults.
func ParseRigConfig(data []byte) (*RigConfig, error) {
	cfg := &RigConfig{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RigConfig) Validate() error {
	if c.ReferenceFrame != nil && *c.ReferenceFrame == "" {
		return fmt.Errorf("reference_frame must not be empty")
	}
	for name, v := range map[string]*string{
		"broadcast_period": c.BroadcastPeriod,
		"lookup_delay":     c.LookupDelay,
		"lookup_wait":      c.LookupWait,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.LookupMaxAttempts != nil && *c.LookupMaxAttempts < 0 {
		return fmt.Errorf("lookup_max_attempts must be non-negative, got %d", *c.LookupMaxAttempts)
	}

	seen := make(map[string]bool, len(c.Interfaces))
	for i, ic := range c.Interfaces {
		if ic.Kind == "" {
			return fmt.Errorf("interfaces[%d]: kind is required", i)
		}
		if ic.TransformFrame == "" {
			return fmt.Errorf("interfaces[%d]: transform_frame is required", i)
		}
		if seen[ic.TransformFrame] {
			return fmt.Errorf("interfaces[%d]: duplicate transform_frame %q", i, ic.TransformFrame)
		}
		seen[ic.TransformFrame] = true
	}
	for i, st := range c.StaticTransforms {
		if st.Parent == "" || st.Child == "" {
			return fmt.Errorf("static_transforms[%d]: parent and child are required", i)
		}
		if st.Parent == st.Child {
			return fmt.Errorf("static_transforms[%d]: parent and child must differ, got %q", i, st.Parent)
		}
	}
	return nil
}

// GetReferenceFrame returns the reference frame or DefaultReferenceFrame.
func (c *RigConfig) GetReferenceFrame() string {
	if c.ReferenceFrame == nil || *c.ReferenceFrame == "" {
		return DefaultReferenceFrame
	}
	return *c.ReferenceFrame
}

// GetBroadcastPeriod returns the broadcast period or DefaultBroadcastPeriod.
func (c *RigConfig) GetBroadcastPeriod() time.Duration {
	return durationOr(c.BroadcastPeriod, DefaultBroadcastPeriod)
}

// GetLookupDelay returns the lookup stamp delay or DefaultLookupDelay.
func (c *RigConfig) GetLookupDelay() time.Duration {
	return durationOr(c.LookupDelay, DefaultLookupDelay)
}

// GetLookupWait returns the per-attempt lookup wait or DefaultLookupWait.
func (c *RigConfig) GetLookupWait() time.Duration {
	return durationOr(c.LookupWait, DefaultLookupWait)
}

// GetLookupMaxAttempts returns the lookup attempt cap; zero means unbounded.
func (c *RigConfig) GetLookupMaxAttempts() int {
	if c.LookupMaxAttempts == nil {
		return 0
	}
	return *c.LookupMaxAttempts
}

// GetJointStorePath returns the joint store path or DefaultJointStorePath.
func (c *RigConfig) GetJointStorePath() string {
	if c.JointStorePath == nil || *c.JointStorePath == "" {
		return DefaultJointStorePath
	}
	return *c.JointStorePath
}

// GetLaunchFilePath returns the launch file path, or "" when unset.
func (c *RigConfig) GetLaunchFilePath() string {
	if c.LaunchFilePath == nil {
		return ""
	}
	return *c.LaunchFilePath
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
