package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"load-tester/internal/domain"
)

// Catalog is the in-memory scenario registry: built-ins, plus anything
// loaded from a scenario directory, plus runtime registrations.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	items map[string]domain.Scenario
}

func NewCatalog() *Catalog {
	c := &Catalog{items: make(map[string]domain.Scenario)}
	for _, sc := range builtinScenarios() {
		_ = c.PutScenario(sc)
	}
	return c
}

func (c *Catalog) GetScenario(name string) (domain.Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.items[name]
	return sc, ok
}

func (c *Catalog) ListScenarios() []domain.Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Scenario, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.items[name])
	}
	return out
}

// PutScenario registers a scenario, replacing any previous one of the same
// name while keeping its position in the listing order.
func (c *Catalog) PutScenario(sc domain.Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[sc.Name]; !exists {
		c.order = append(c.order, sc.Name)
	}
	c.items[sc.Name] = sc
	return nil
}

// LoadDir reads every *.yaml / *.yml file in dir into the catalog. A file
// that fails to parse or validate aborts the load so a broken catalog is
// caught at startup rather than at test start.
func (c *Catalog) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read scenario dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		sc, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, err
		}
		if err := c.PutScenario(sc); err != nil {
			return n, fmt.Errorf("%s: %w", e.Name(), err)
		}
		n++
	}
	return n, nil
}

// YAML documents mirror the JSON scenario schema.
type scenarioDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Actions     []actionDoc `yaml:"actions"`
}

type actionDoc struct {
	Name           string            `yaml:"name"`
	Method         string            `yaml:"method"`
	Endpoint       string            `yaml:"endpoint"`
	Payload        map[string]any    `yaml:"payload"`
	Headers        map[string]string `yaml:"headers"`
	Delay          float64           `yaml:"delay"`
	ExpectedStatus any               `yaml:"expected_status"`
	Extract        map[string]string `yaml:"extract"`
}

func loadFile(path string) (domain.Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("read %s: %w", path, err)
	}
	var doc scenarioDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return domain.Scenario{}, fmt.Errorf("parse %s: %w", path, err)
	}
	sc := domain.Scenario{Name: doc.Name, Description: doc.Description}
	for _, a := range doc.Actions {
		status, err := coerceStatusSet(a.ExpectedStatus)
		if err != nil {
			return domain.Scenario{}, fmt.Errorf("%s: action %q: %w", path, a.Name, err)
		}
		sc.Actions = append(sc.Actions, domain.Action{
			Name:           a.Name,
			Method:         a.Method,
			Endpoint:       a.Endpoint,
			Payload:        a.Payload,
			Headers:        a.Headers,
			Delay:          a.Delay,
			ExpectedStatus: status,
			Extract:        a.Extract,
		})
	}
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return domain.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func coerceStatusSet(v any) (domain.StatusSet, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int:
		return domain.StatusSet{t}, nil
	case []any:
		out := make(domain.StatusSet, 0, len(t))
		for _, e := range t {
			n, ok := e.(int)
			if !ok {
				return nil, fmt.Errorf("expected_status entries must be numbers")
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected_status must be a number or a list of numbers")
	}
}
