package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML document shape accepted by [LoadYAML]:
//
//	poems:
//	  - id: tang-001        # optional; generated from the index when empty
//	    title: 静夜思
//	    author: 李白
//	    content: 床前明月光，疑是地上霜。举头望明月，低头思故乡。
type seedFile struct {
	Poems []Poem `yaml:"poems"`
}

// LoadYAML decodes a poem seed file from r. Poems without an ID get a
// generated one based on their position. A poem without content is a
// validation error — verses are derived from content, so an empty poem can
// never participate in the game.
func LoadYAML(r io.Reader) ([]Poem, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("corpus: decode seed yaml: %w", err)
	}

	var errs []error
	for i := range f.Poems {
		if f.Poems[i].Content == "" {
			errs = append(errs, fmt.Errorf("poems[%d]: content is required", i))
			continue
		}
		if f.Poems[i].ID == "" {
			f.Poems[i].ID = fmt.Sprintf("poem-%04d", i+1)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("corpus: invalid seed file: %w", err)
	}
	return f.Poems, nil
}

// LoadYAMLFile opens path and decodes it via [LoadYAML].
func LoadYAMLFile(path string) ([]Poem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open seed file %q: %w", path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}
