package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dyluth/sortie/internal/grid"
	"gopkg.in/yaml.v3"
)

// RedisURLEnv overrides blackboard.redis_url when set.
const RedisURLEnv = "SORTIE_REDIS_URL"

const (
	defaultBudget        = 1000.0
	defaultBaseMargin    = 20.0
	defaultLineCost      = grid.LineCost
	defaultDiagCost      = grid.DiagCost
	defaultReadCost      = 2.0
	defaultFeatureOffset = 1
	defaultClustersDir   = "clusters"
	defaultInstance      = "sortie"
	defaultMaxTicks      = 10000
)

// Role names accepted in sortie.yml.
const (
	RoleExplorerLeader    = "explorer_leader"
	RoleExplorerFollower  = "explorer_follower"
	RoleAllocatorLeader   = "allocator_leader"
	RoleAllocatorFollower = "allocator_follower"
)

// Sector kinds.
const (
	SectorAll       = "all"
	SectorHalfPlane = "half_plane"
	SectorQuadrant  = "quadrant"
)

// MissionConfig represents the top-level sortie.yml configuration
type MissionConfig struct {
	Version    string                    `yaml:"version"`
	Seed       *int64                    `yaml:"seed,omitempty"`
	MaxTicks   *int                      `yaml:"max_ticks,omitempty"`
	Grid       GridConfig                `yaml:"grid"`
	Base       grid.Position             `yaml:"base"`
	Costs      *CostsConfig              `yaml:"costs,omitempty"`
	Explorers  map[string]ExplorerConfig `yaml:"explorers"`
	Rescuers   map[string]RescuerConfig  `yaml:"rescuers,omitempty"`
	Targets    []TargetConfig            `yaml:"targets,omitempty"`
	Classifier *ClassifierConfig         `yaml:"classifier,omitempty"`
	Output     *OutputConfig             `yaml:"output,omitempty"`
	Blackboard *BlackboardConfig         `yaml:"blackboard,omitempty"`
	Metrics    *MetricsConfig            `yaml:"metrics,omitempty"`
}

// GridConfig describes the physical world
type GridConfig struct {
	Width  int             `yaml:"width"`
	Height int             `yaml:"height"`
	Walls  []grid.Position `yaml:"walls,omitempty"`
}

// CostsConfig sets action costs and the explorers' budget
type CostsConfig struct {
	Line       *float64 `yaml:"line,omitempty"`
	Diag       *float64 `yaml:"diag,omitempty"`
	Read       *float64 `yaml:"read,omitempty"`
	Budget     *float64 `yaml:"budget,omitempty"`
	BaseMargin *float64 `yaml:"base_margin,omitempty"`
}

// ExplorerConfig declares one explorer: {home, sector, goal}
type ExplorerConfig struct {
	Role   string         `yaml:"role"`
	Home   *grid.Position `yaml:"home,omitempty"` // Defaults to base
	Sector SectorConfig   `yaml:"sector"`
	Goal   *grid.Position `yaml:"goal,omitempty"`   // Defaults to the far edge or corner of the sector
	Budget *float64       `yaml:"budget,omitempty"` // Overrides costs.budget
}

// SectorConfig is a declarative sector predicate relative to home
type SectorConfig struct {
	Kind     string `yaml:"kind"`
	Side     string `yaml:"side,omitempty"`     // half_plane: north, south, east or west
	Quadrant string `yaml:"quadrant,omitempty"` // quadrant: north_east, south_east, south_west or north_west
}

// RescuerConfig declares one downstream agent
type RescuerConfig struct {
	Role  string `yaml:"role"`
	Order int    `yaml:"order"` // 1-based slot; group n goes to the rescuer with order n
}

// TargetConfig places one target in the world
type TargetConfig struct {
	ID       string        `yaml:"id"`
	Position grid.Position `yaml:"position"`
	Signals  []float64     `yaml:"signals"`
}

// ClassifierConfig points at a decision-tree model file
type ClassifierConfig struct {
	Model         string `yaml:"model,omitempty"`
	FeatureOffset *int   `yaml:"feature_offset,omitempty"`
}

// OutputConfig controls where cluster files are written
type OutputConfig struct {
	ClustersDir string `yaml:"clusters_dir,omitempty"`
}

// BlackboardConfig enables the Redis journal
type BlackboardConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
	Instance string `yaml:"instance,omitempty"`
}

// MetricsConfig enables the /metrics and /healthz endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Bounds returns the grid bounds.
func (c *MissionConfig) Bounds() grid.Bounds {
	return grid.Bounds{Width: c.Grid.Width, Height: c.Grid.Height}
}

// ExplorerNames returns explorer names sorted so the leader comes first.
func (c *MissionConfig) ExplorerNames() []string {
	names := make([]string, 0, len(c.Explorers))
	for name := range c.Explorers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		li := c.Explorers[names[i]].Role == RoleExplorerLeader
		lj := c.Explorers[names[j]].Role == RoleExplorerLeader
		if li != lj {
			return li
		}
		return names[i] < names[j]
	})
	return names
}

// RescuerNames returns rescuer names ordered by slot.
func (c *MissionConfig) RescuerNames() []string {
	names := make([]string, 0, len(c.Rescuers))
	for name := range c.Rescuers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c.Rescuers[names[i]].Order < c.Rescuers[names[j]].Order
	})
	return names
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *MissionConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Grid.Width < 1 || c.Grid.Height < 1 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", c.Grid.Width, c.Grid.Height)
	}
	bounds := c.Bounds()

	walls := make(map[grid.Position]bool, len(c.Grid.Walls))
	for _, w := range c.Grid.Walls {
		if !bounds.Contains(w) {
			return fmt.Errorf("wall %s is outside the grid", w)
		}
		walls[w] = true
	}

	if !bounds.Contains(c.Base) || walls[c.Base] {
		return fmt.Errorf("base %s must be a free cell inside the grid", c.Base)
	}

	if err := c.applyCostDefaults(); err != nil {
		return err
	}

	if len(c.Explorers) == 0 {
		return fmt.Errorf("no explorers defined")
	}
	leaders := 0
	for name, e := range c.Explorers {
		if err := e.validate(name, bounds, walls); err != nil {
			return err
		}
		if e.Role == RoleExplorerLeader {
			leaders++
		}
		if e.Home == nil {
			home := c.Base
			e.Home = &home
		}
		if e.Goal == nil {
			goal := defaultGoal(e.Sector, *e.Home, bounds)
			e.Goal = &goal
		}
		c.Explorers[name] = e
	}
	if leaders != 1 {
		return fmt.Errorf("exactly one explorer must have role %s, found %d", RoleExplorerLeader, leaders)
	}

	if err := c.validateRescuers(); err != nil {
		return err
	}

	ids := make(map[string]bool)
	cells := make(map[grid.Position]string)
	for i, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("target %d: id is required", i)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate target id '%s'", t.ID)
		}
		ids[t.ID] = true
		if !bounds.Contains(t.Position) || walls[t.Position] {
			return fmt.Errorf("target '%s': position %s must be a free cell inside the grid", t.ID, t.Position)
		}
		if other, taken := cells[t.Position]; taken {
			return fmt.Errorf("targets '%s' and '%s' share position %s", other, t.ID, t.Position)
		}
		cells[t.Position] = t.ID
	}

	if c.Classifier == nil {
		c.Classifier = &ClassifierConfig{}
	}
	if c.Classifier.FeatureOffset == nil {
		offset := defaultFeatureOffset
		c.Classifier.FeatureOffset = &offset
	}
	if *c.Classifier.FeatureOffset < 0 {
		return fmt.Errorf("classifier.feature_offset must be >= 0, got %d", *c.Classifier.FeatureOffset)
	}

	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
	if c.Output.ClustersDir == "" {
		c.Output.ClustersDir = defaultClustersDir
	}

	if c.Blackboard == nil {
		c.Blackboard = &BlackboardConfig{}
	}
	if c.Blackboard.Instance == "" {
		c.Blackboard.Instance = defaultInstance
	}
	if err := ValidateInstanceName(c.Blackboard.Instance); err != nil {
		return err
	}
	if c.Blackboard.RedisURL != "" && !strings.HasPrefix(c.Blackboard.RedisURL, "redis://") && !strings.HasPrefix(c.Blackboard.RedisURL, "rediss://") {
		return fmt.Errorf("blackboard.redis_url must start with redis:// or rediss://")
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}

	if c.MaxTicks == nil {
		ticks := defaultMaxTicks
		c.MaxTicks = &ticks
	}
	if *c.MaxTicks < 1 {
		return fmt.Errorf("max_ticks must be >= 1, got %d", *c.MaxTicks)
	}

	if c.Seed == nil {
		var seed int64 = 1
		c.Seed = &seed
	}

	return nil
}

func (c *MissionConfig) applyCostDefaults() error {
	if c.Costs == nil {
		c.Costs = &CostsConfig{}
	}
	fields := []struct {
		name  string
		value **float64
		def   float64
	}{
		{"line", &c.Costs.Line, defaultLineCost},
		{"diag", &c.Costs.Diag, defaultDiagCost},
		{"read", &c.Costs.Read, defaultReadCost},
		{"budget", &c.Costs.Budget, defaultBudget},
		{"base_margin", &c.Costs.BaseMargin, defaultBaseMargin},
	}
	for _, f := range fields {
		if *f.value == nil {
			v := f.def
			*f.value = &v
		}
		if **f.value < 0 {
			return fmt.Errorf("costs.%s must be >= 0, got %g", f.name, **f.value)
		}
	}
	return nil
}

func (c *MissionConfig) validateRescuers() error {
	if len(c.Rescuers) == 0 {
		return nil
	}

	leaders := 0
	orders := make(map[int]string)
	for name, r := range c.Rescuers {
		switch r.Role {
		case RoleAllocatorLeader:
			leaders++
		case RoleAllocatorFollower:
		default:
			return fmt.Errorf("rescuer '%s': invalid role: %s (must be '%s' or '%s')", name, r.Role, RoleAllocatorLeader, RoleAllocatorFollower)
		}
		if r.Order < 1 {
			return fmt.Errorf("rescuer '%s': order must be >= 1", name)
		}
		if other, dup := orders[r.Order]; dup {
			return fmt.Errorf("rescuers '%s' and '%s' share order %d", other, name, r.Order)
		}
		orders[r.Order] = name
	}
	if leaders != 1 {
		return fmt.Errorf("exactly one rescuer must have role %s, found %d", RoleAllocatorLeader, leaders)
	}
	for name := range c.Rescuers {
		if _, clash := c.Explorers[name]; clash {
			return fmt.Errorf("'%s' is declared as both explorer and rescuer", name)
		}
	}
	return nil
}

func (e *ExplorerConfig) validate(name string, bounds grid.Bounds, walls map[grid.Position]bool) error {
	if e.Role != RoleExplorerLeader && e.Role != RoleExplorerFollower {
		return fmt.Errorf("explorer '%s': invalid role: %s (must be '%s' or '%s')", name, e.Role, RoleExplorerLeader, RoleExplorerFollower)
	}
	if e.Home != nil && (!bounds.Contains(*e.Home) || walls[*e.Home]) {
		return fmt.Errorf("explorer '%s': home %s must be a free cell inside the grid", name, *e.Home)
	}
	if e.Goal != nil && !bounds.Contains(*e.Goal) {
		return fmt.Errorf("explorer '%s': goal %s is outside the grid", name, *e.Goal)
	}
	if e.Budget != nil && *e.Budget < 0 {
		return fmt.Errorf("explorer '%s': budget must be >= 0", name)
	}
	if err := e.Sector.validate(); err != nil {
		return fmt.Errorf("explorer '%s': %w", name, err)
	}
	return nil
}

func (s SectorConfig) validate() error {
	switch s.Kind {
	case SectorAll:
		return nil
	case SectorHalfPlane:
		switch s.Side {
		case "north", "south", "east", "west":
			return nil
		}
		return fmt.Errorf("invalid half_plane side: %q (must be north, south, east or west)", s.Side)
	case SectorQuadrant:
		if _, _, ok := s.QuadrantSides(); ok {
			return nil
		}
		return fmt.Errorf("invalid quadrant: %q (must be north_east, south_east, south_west or north_west)", s.Quadrant)
	default:
		return fmt.Errorf("invalid sector kind: %q (must be all, half_plane or quadrant)", s.Kind)
	}
}

// QuadrantSides splits a quadrant name into its vertical and horizontal sides.
func (s SectorConfig) QuadrantSides() (vertical, horizontal string, ok bool) {
	parts := strings.Split(s.Quadrant, "_")
	if len(parts) != 2 {
		return "", "", false
	}
	if parts[0] != "north" && parts[0] != "south" {
		return "", "", false
	}
	if parts[1] != "east" && parts[1] != "west" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// defaultGoal is the sector's far edge straight ahead of home, or its
// corner for a quadrant.
func defaultGoal(s SectorConfig, home grid.Position, b grid.Bounds) grid.Position {
	edgeX := func(side string) int {
		if side == "east" {
			return b.Width - 1
		}
		return 0
	}
	edgeY := func(side string) int {
		if side == "south" {
			return b.Height - 1
		}
		return 0
	}

	switch s.Kind {
	case SectorHalfPlane:
		switch s.Side {
		case "north", "south":
			return grid.Pos(home.X, edgeY(s.Side))
		default:
			return grid.Pos(edgeX(s.Side), home.Y)
		}
	case SectorQuadrant:
		v, h, _ := s.QuadrantSides()
		return grid.Pos(edgeX(h), edgeY(v))
	default:
		return home
	}
}

// instanceNamePattern is DNS-compatible: lowercase alphanumerics, inner hyphens.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

const maxInstanceNameLength = 63

// ValidateInstanceName checks a blackboard namespace.
func ValidateInstanceName(name string) error {
	if len(name) > maxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), maxInstanceNameLength)
	}
	if !instanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}

// Load reads and validates sortie.yml from the specified path
func Load(path string) (*MissionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config MissionConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if url := os.Getenv(RedisURLEnv); url != "" {
		if config.Blackboard == nil {
			config.Blackboard = &BlackboardConfig{}
		}
		config.Blackboard.RedisURL = url
	}

	// Model paths are relative to the mission file
	if config.Classifier != nil && config.Classifier.Model != "" && !filepath.IsAbs(config.Classifier.Model) {
		config.Classifier.Model = filepath.Join(filepath.Dir(path), config.Classifier.Model)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
