package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	ParticleCount   int     `yaml:"particle_count"`
	TileCount       int     `yaml:"tile_count"`
	HoleProbability float64 `yaml:"hole_probability"`

	RoundRateHz         int    `yaml:"round_rate_hz"`
	SnapshotEveryRounds int    `yaml:"snapshot_every_rounds"`
	MaxRounds           uint64 `yaml:"max_rounds"`

	DebugConnectivity bool `yaml:"debug_connectivity"`
	PullChildren      bool `yaml:"pull_children"`
}

func Defaults() Tuning {
	return Tuning{
		ParticleCount:       30,
		TileCount:           60,
		HoleProbability:     0.1,
		RoundRateHz:         20,
		SnapshotEveryRounds: 1000,
	}
}

// Load reads a tuning file. Keys missing from the file keep their Defaults values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := validate(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

var schema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tuning.schema.json", strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("tuning.schema.json")
}()

func validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees plain JSON types.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
