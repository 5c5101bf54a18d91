package camera

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// rigFile is the YAML schema for a rig calibration file:
//
//	label: front-rig
//	cameras:
//	  - label: cam0
//	    width: 752
//	    height: 480
//	    intrinsics: {fx: 458.6, fy: 457.3, cx: 367.2, cy: 248.4}
//	    distortion: {k1: -0.28, k2: 0.07, p1: 0.0002, p2: 0.00002}
type rigFile struct {
	Label   string       `yaml:"label"`
	Cameras []cameraFile `yaml:"cameras"`
}

type cameraFile struct {
	Label      string `yaml:"label"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Intrinsics struct {
		Fx float64 `yaml:"fx"`
		Fy float64 `yaml:"fy"`
		Cx float64 `yaml:"cx"`
		Cy float64 `yaml:"cy"`
	} `yaml:"intrinsics"`
	Distortion struct {
		K1 float64 `yaml:"k1"`
		K2 float64 `yaml:"k2"`
		P1 float64 `yaml:"p1"`
		P2 float64 `yaml:"p2"`
	} `yaml:"distortion"`
}

// ParseRig parses a YAML rig calibration document.
func ParseRig(data []byte) (*Rig, error) {
	var file rigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rig calibration: %w", err)
	}

	cameras := make([]*Camera, 0, len(file.Cameras))
	for i, cf := range file.Cameras {
		label := cf.Label
		if label == "" {
			label = fmt.Sprintf("cam%d", i)
		}
		cam, err := New(label, cf.Width, cf.Height,
			cf.Intrinsics.Fx, cf.Intrinsics.Fy, cf.Intrinsics.Cx, cf.Intrinsics.Cy,
			Distortion{K1: cf.Distortion.K1, K2: cf.Distortion.K2, P1: cf.Distortion.P1, P2: cf.Distortion.P2})
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, cam)
	}

	return NewRig(file.Label, cameras)
}

// LoadRig reads and parses a YAML rig calibration file.
func LoadRig(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rig calibration %s: %w", path, err)
	}
	return ParseRig(data)
}
