package layout

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Params are the layout design parameters. They tune spacing only; the
// no-overlap guarantee holds for any positive values.
type Params struct {
	// BaseWidth is the horizontal span reserved for a single turn card.
	BaseWidth float64 `yaml:"base_width"`
	// MinSpacing is the gap kept between adjacent sibling subtrees.
	MinSpacing float64 `yaml:"min_spacing"`
	// BaseVertical is the base distance between a node and its children.
	BaseVertical float64 `yaml:"base_vertical"`
	// LevelFactor grows vertical spacing mildly with depth.
	LevelFactor float64 `yaml:"level_factor"`
	// ChildFactor grows vertical spacing with fan-out, capped by ChildCap.
	ChildFactor float64 `yaml:"child_factor"`
	ChildCap    float64 `yaml:"child_cap"`
}

// LoadParams reads the embedded parameter file.
func LoadParams() (*Params, error) {
	data, err := configFiles.ReadFile("config/params.yaml")
	if err != nil {
		return nil, fmt.Errorf("read layout params: %w", err)
	}

	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal layout params: %w", err)
	}

	if p.BaseWidth <= 0 || p.MinSpacing < 0 || p.BaseVertical <= 0 {
		return nil, fmt.Errorf("layout params out of range: %+v", p)
	}

	return &p, nil
}
