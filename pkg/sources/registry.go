package sources

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"gopkg.in/yaml.v3"

	"harvester/pkg/runner"
)

// Source kinds.
const (
	KindFeed    = "feed"
	KindCommand = "command"
)

var ErrInvalidSource = errors.New("invalid source definition")

// Registry is the parsed sources file, in declaration order.
type Registry struct {
	Sources []Definition `yaml:"sources"`
}

// Definition describes one collection job.
type Definition struct {
	Name          string        `yaml:"name"`
	Kind          string        `yaml:"kind"`
	Target        string        `yaml:"target"`
	FeedURL       string        `yaml:"feed_url"`
	BaseURL       string        `yaml:"base_url"`
	ItemsKey      string        `yaml:"items_key"`
	Source        string        `yaml:"source"`
	Category      string        `yaml:"category"`
	Fields        Fields        `yaml:"fields"`
	DateLayout    string        `yaml:"date_layout"`
	OnlyYesterday bool          `yaml:"only_yesterday"`
	Timeout       time.Duration `yaml:"timeout"`
	Disabled      bool          `yaml:"disabled"`

	// command sources
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir"`
	Env     []string `yaml:"env"`
}

// LoadRegistry reads and validates a sources file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates YAML source definitions.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	for i := range reg.Sources {
		if err := reg.Sources[i].normalize(); err != nil {
			return nil, fmt.Errorf("source %d: %w", i+1, err)
		}
	}
	return &reg, nil
}

func (d *Definition) normalize() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSource)
	}
	if d.Kind == "" {
		d.Kind = KindFeed
	}
	switch d.Kind {
	case KindFeed:
	case KindCommand:
		if len(d.Command) == 0 || strings.TrimSpace(d.Command[0]) == "" {
			return fmt.Errorf("%w: %s: command is required", ErrInvalidSource, d.Name)
		}
		if d.Target == "" {
			d.Target = strings.Join(d.Command, " ")
		}
		return nil
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSource, d.Name, d.Kind)
	}
	if d.FeedURL == "" {
		return fmt.Errorf("%w: %s: feed_url is required", ErrInvalidSource, d.Name)
	}
	if d.ItemsKey != "" {
		if _, err := jmespath.Compile(d.ItemsKey); err != nil {
			return fmt.Errorf("%w: %s: items_key: %v", ErrInvalidSource, d.Name, err)
		}
	}
	if d.Fields.Title == "" {
		d.Fields.Title = "title"
	}
	if d.Fields.URL == "" {
		d.Fields.URL = "url"
	}
	if d.Source == "" {
		d.Source = d.Name
	}
	if d.Target == "" {
		d.Target = d.FeedURL
	}
	return nil
}

// Register adds every enabled source to r, in file order.
func (reg *Registry) Register(r *runner.Runner, saver Saver, loc *time.Location) error {
	for _, d := range reg.Sources {
		if d.Disabled {
			continue
		}
		if err := r.Register(d.Name, d.contract(saver, loc), d.Target); err != nil {
			return err
		}
	}
	return nil
}

func (d Definition) contract(saver Saver, loc *time.Location) runner.Contract {
	timeout := d.Timeout
	if d.Kind == KindCommand {
		if timeout <= 0 {
			timeout = DefaultCommandTimeout
		}
		return &Command{
			Path:    d.Command[0],
			Args:    d.Command[1:],
			Dir:     d.Dir,
			Env:     d.Env,
			Timeout: timeout,
		}
	}

	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	return &Feed{
		Source:        d.Source,
		URL:           d.FeedURL,
		BaseURL:       d.BaseURL,
		ItemsKey:      d.ItemsKey,
		Fields:        d.Fields,
		DateLayout:    d.DateLayout,
		Category:      d.Category,
		OnlyYesterday: d.OnlyYesterday,
		Location:      loc,
		Client:        &http.Client{Timeout: timeout},
		Saver:         saver,
	}
}
