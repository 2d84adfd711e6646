package pricing

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"wattline/pkg/confkit"
)

// LoadConfig reads a pricing schedule from disk.
func LoadConfig(path string) (*Schedule, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pricing config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads the pricing schedule from the default project location
// and panics on error.
func MustLoad() *Schedule {
	path := confkit.MustProjectPath("etc/pricing.yaml")
	s, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadConfigFromReader constructs a Schedule from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Schedule, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pricing config: %w", err)
	}

	var s Schedule
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal pricing config: %w", err)
	}
	s.normalise()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schedule) normalise() {
	s.Currency = strings.TrimSpace(os.ExpandEnv(s.Currency))
}

// Validate ensures the schedule is structurally sound.
func (s *Schedule) Validate() error {
	if s.ProducingPrice < 0 {
		return fmt.Errorf("pricing config: producing_price must be non-negative, got %v", s.ProducingPrice)
	}
	for i, p := range s.Periods {
		if p.StartMinute < 0 || p.StartMinute > 1439 {
			return fmt.Errorf("pricing config: period %d start_minute %d outside 0-1439", i, p.StartMinute)
		}
		if p.EndMinute < 0 || p.EndMinute > 1439 {
			return fmt.Errorf("pricing config: period %d end_minute %d outside 0-1439", i, p.EndMinute)
		}
		if p.Price < 0 {
			return fmt.Errorf("pricing config: period %d price must be non-negative, got %v", i, p.Price)
		}
	}
	return nil
}
