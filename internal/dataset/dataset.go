// Package dataset reads and writes the tournament seasons consumed by the
// batch command, and generates synthetic ones. Seasons are YAML, or TOML when
// the file name ends in .toml.
package dataset

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	service "github.com/okian/pinrank/internal/app"
	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/internal/domain/points"
)

// ErrInvalid reports a dataset that cannot be turned into finalizations.
var ErrInvalid = errors.New("invalid dataset")

const (
	// DateLayout is the layout used for generated dates.
	DateLayout = "2006-01-02"

	filePermission = 0o600
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", DateLayout}

// Season is a file of finished tournaments.
type Season struct {
	Tournaments []Tournament `yaml:"tournaments" toml:"tournaments"`
}

// Tournament is one finished event.
type Tournament struct {
	ID        string     `yaml:"id,omitempty" toml:"id,omitempty"`
	Date      string     `yaml:"date" toml:"date"`
	Booster   string     `yaml:"booster,omitempty" toml:"booster,omitempty"`
	TGP       float64    `yaml:"tgp,omitempty" toml:"tgp,omitempty"`
	Standings []Standing `yaml:"standings" toml:"standings"`
	// Games lists the group games played. When empty the final standings
	// are rated as one game.
	Games [][]GameEntry `yaml:"games,omitempty" toml:"games,omitempty"`
}

// Standing is one entrant's final position.
type Standing struct {
	Player   string `yaml:"player" toml:"player"`
	Position int    `yaml:"position" toml:"position"`
	OptedOut bool   `yaml:"opted_out,omitempty" toml:"opted_out,omitempty"`
}

// GameEntry is one player's finish in a group game.
type GameEntry struct {
	Player   string `yaml:"player" toml:"player"`
	Position int    `yaml:"position" toml:"position"`
}

// Load reads a season file.
func Load(path string) (Season, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Season{}, fmt.Errorf("read dataset: %w", err)
	}
	if isTOML(path) {
		return ParseTOML(raw)
	}
	return Parse(raw)
}

// Parse decodes a YAML season.
func Parse(raw []byte) (Season, error) {
	var s Season
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Season{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return s.check()
}

// ParseTOML decodes a TOML season. Dates must be quoted strings.
func ParseTOML(raw []byte) (Season, error) {
	var s Season
	if err := toml.Unmarshal(raw, &s); err != nil {
		return Season{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return s.check()
}

// Write encodes the season into path, as TOML when path ends in .toml and
// as YAML otherwise.
func Write(path string, s Season) error {
	var (
		raw []byte
		err error
	)
	if isTOML(path) {
		raw, err = toml.Marshal(s)
	} else {
		raw, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.WriteFile(path, raw, filePermission); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

func (s Season) check() (Season, error) {
	if len(s.Tournaments) == 0 {
		return Season{}, fmt.Errorf("%w: no tournaments", ErrInvalid)
	}
	return s, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Finalizations converts the season into finalization requests ordered by
// date, then id. Tournaments without an id get a generated one.
func (s Season) Finalizations() ([]service.Finalization, error) {
	out := make([]service.Finalization, 0, len(s.Tournaments))
	for i, rec := range s.Tournaments {
		f, err := rec.finalization()
		if err != nil {
			return nil, fmt.Errorf("tournament %d: %w", i+1, err)
		}
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b service.Finalization) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.TournamentID, b.TournamentID)
	})
	return out, nil
}

func (rec Tournament) finalization() (service.Finalization, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewString()
	}
	date, err := parseDate(rec.Date)
	if err != nil {
		return service.Finalization{}, err
	}
	booster, err := model.ParseBooster(rec.Booster)
	if err != nil {
		return service.Finalization{}, err
	}
	tgp := rec.TGP
	if tgp == 0 {
		tgp = 1
	}

	f := service.Finalization{
		TournamentID: id,
		Date:         date,
		Booster:      booster,
		TGP:          tgp,
		Entrants:     make([]points.Entrant, len(rec.Standings)),
	}
	for i, s := range rec.Standings {
		f.Entrants[i] = points.Entrant{PlayerID: s.Player, Position: s.Position, OptedOut: s.OptedOut}
	}

	for _, g := range rec.Games {
		game := make([]model.GameEntry, len(g))
		for i, e := range g {
			game[i] = model.GameEntry{PlayerID: e.Player, Position: e.Position}
		}
		f.Games = append(f.Games, game)
	}
	if len(f.Games) == 0 {
		var game []model.GameEntry
		for _, s := range rec.Standings {
			if !s.OptedOut {
				game = append(game, model.GameEntry{PlayerID: s.Player, Position: s.Position})
			}
		}
		if len(game) >= 2 {
			f.Games = [][]model.GameEntry{game}
		}
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrInvalid, s)
}
