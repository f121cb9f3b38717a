package report

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/density-cli/internal/density"
)

// Document is the YAML run summary.
type Document struct {
	ID          string         `yaml:"id,omitempty"`
	Source      string         `yaml:"source"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Params      density.Params `yaml:"params"`
	Extent      density.Extent `yaml:"extent"`
	Summary     Summary        `yaml:"summary"`
	Top         []Row          `yaml:"top"`
}

// WriteYAML encodes doc with two-space indentation.
func WriteYAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: close yaml encoder")
	}
	return nil
}
