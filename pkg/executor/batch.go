package executor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trungdtbk/pss1830/pkg/session"
)

// Batch is a command file: the commands to send and, optionally, the
// conditionals to wait for.
type Batch struct {
	Commands []session.Command `yaml:"commands"`
	WaitFor  []string          `yaml:"wait_for,omitempty"`
	Match    string            `yaml:"match,omitempty"`
	Retries  int               `yaml:"retries,omitempty"`
	Interval time.Duration     `yaml:"interval,omitempty"`
}

// LoadBatch reads a YAML command file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch %s: %w", path, err)
	}
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing batch %s: %w", path, err)
	}
	if len(b.Commands) == 0 {
		return nil, fmt.Errorf("batch %s has no commands", path)
	}
	return &b, nil
}
