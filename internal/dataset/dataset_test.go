package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pinrank/internal/domain/model"
	"github.com/okian/pinrank/pkg/logger"
)

const leagueYAML = `
tournaments:
  - id: fall-finals
    date: 2025-10-04
    booster: major
    tgp: 0.75
    standings:
      - {player: ann, position: 1}
      - {player: ben, position: 2}
      - {player: cat, position: 3, opted_out: true}
  - id: fall-league
    date: 2025-10-04
    standings:
      - {player: ben, position: 1}
      - {player: ann, position: 2}
    games:
      - [{player: ben, position: 1}, {player: ann, position: 2}]
`

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestParse(t *testing.T) {
	Convey("Given a league file", t, func() {
		season, err := Parse([]byte(leagueYAML))
		So(err, ShouldBeNil)
		So(season.Tournaments, ShouldHaveLength, 2)

		Convey("Finalizations are ordered by date then id", func() {
			fins, err := season.Finalizations()
			So(err, ShouldBeNil)
			So(fins, ShouldHaveLength, 2)
			So(fins[0].TournamentID, ShouldEqual, "fall-finals")
			So(fins[1].TournamentID, ShouldEqual, "fall-league")
			So(fins[0].Date.Equal(time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Boosters and TGP are carried over", func() {
			fins, err := season.Finalizations()
			So(err, ShouldBeNil)
			So(fins[0].Booster, ShouldEqual, model.BoosterMajor)
			So(fins[0].TGP, ShouldEqual, 0.75)
			So(fins[1].Booster, ShouldEqual, model.BoosterNone)
			So(fins[1].TGP, ShouldEqual, 1.0)
		})

		Convey("Standings without games become one game of rated players", func() {
			fins, err := season.Finalizations()
			So(err, ShouldBeNil)
			So(fins[0].Games, ShouldHaveLength, 1)
			So(fins[0].Games[0], ShouldResemble, []model.GameEntry{
				{PlayerID: "ann", Position: 1},
				{PlayerID: "ben", Position: 2},
			})
			So(fins[0].Entrants, ShouldHaveLength, 3)
			So(fins[0].Entrants[2].OptedOut, ShouldBeTrue)
		})

		Convey("Explicit games are kept", func() {
			fins, err := season.Finalizations()
			So(err, ShouldBeNil)
			So(fins[1].Games, ShouldResemble, [][]model.GameEntry{{
				{PlayerID: "ben", Position: 1},
				{PlayerID: "ann", Position: 2},
			}})
		})
	})

	Convey("Invalid files are rejected", t, func() {
		cases := []struct {
			name string
			yaml string
		}{
			{"malformed", "tournaments: ["},
			{"empty", "tournaments: []"},
		}
		for _, tc := range cases {
			Convey(tc.name, func() {
				_, err := Parse([]byte(tc.yaml))
				So(errors.Is(err, ErrInvalid), ShouldBeTrue)
			})
		}
	})

	Convey("Bad dates and boosters fail conversion", t, func() {
		season, err := Parse([]byte("tournaments:\n  - date: someday\n    standings: [{player: a, position: 1}]"))
		So(err, ShouldBeNil)
		_, err = season.Finalizations()
		So(errors.Is(err, ErrInvalid), ShouldBeTrue)

		season, err = Parse([]byte("tournaments:\n  - date: 2025-01-01\n    booster: gold\n    standings: [{player: a, position: 1}]"))
		So(err, ShouldBeNil)
		_, err = season.Finalizations()
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
	})
}

const leagueTOML = `
[[tournaments]]
id = "fall-league"
date = "2025-10-04"
booster = "certified-plus"

[[tournaments.standings]]
player = "ben"
position = 1

[[tournaments.standings]]
player = "ann"
position = 2
opted_out = true
`

func TestParseTOML(t *testing.T) {
	Convey("Given a TOML league file", t, func() {
		season, err := ParseTOML([]byte(leagueTOML))
		So(err, ShouldBeNil)
		So(season.Tournaments, ShouldHaveLength, 1)
		So(season.Tournaments[0].Standings, ShouldResemble, []Standing{
			{Player: "ben", Position: 1},
			{Player: "ann", Position: 2, OptedOut: true},
		})

		Convey("It converts like a YAML season", func() {
			fins, err := season.Finalizations()
			So(err, ShouldBeNil)
			So(fins[0].Booster, ShouldEqual, model.BoosterCertifiedPlus)
			So(fins[0].Games, ShouldBeEmpty)
		})
	})

	Convey("Malformed TOML is rejected", t, func() {
		_, err := ParseTOML([]byte("[[tournaments]\nid ="))
		So(errors.Is(err, ErrInvalid), ShouldBeTrue)
	})
}

func TestWriteAndLoad(t *testing.T) {
	Convey("A written season loads back unchanged", t, func() {
		season, err := Parse([]byte(leagueYAML))
		So(err, ShouldBeNil)

		path := filepath.Join(t.TempDir(), "league.yaml")
		So(Write(path, season), ShouldBeNil)

		loaded, err := Load(path)
		So(err, ShouldBeNil)
		So(loaded, ShouldResemble, season)
	})

	Convey("A .toml path is written and read as TOML", t, func() {
		season, err := ParseTOML([]byte(leagueTOML))
		So(err, ShouldBeNil)

		path := filepath.Join(t.TempDir(), "league.toml")
		So(Write(path, season), ShouldBeNil)
		raw, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(raw), ShouldContainSubstring, "[[tournaments]]")

		loaded, err := Load(path)
		So(err, ShouldBeNil)
		So(loaded, ShouldResemble, season)
	})

	Convey("Loading a missing file fails", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	cfg := GeneratorConfig{
		Players:     30,
		Tournaments: 9,
		MinField:    4,
		MaxField:    12,
		Start:       time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC),
		SpanDays:    80,
		OptOutRate:  0.1,
		GroupSize:   4,
		Seed:        42,
		Workers:     3,
	}

	Convey("Given a generator config", t, func() {
		season, err := Generate(ctx, cfg)
		So(err, ShouldBeNil)
		So(season.Tournaments, ShouldHaveLength, 9)

		Convey("The same seed yields the same season", func() {
			again, err := Generate(ctx, cfg)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, season)
		})

		Convey("A different seed yields a different season", func() {
			other := cfg
			other.Seed = 7
			again, err := Generate(ctx, other)
			So(err, ShouldBeNil)
			So(again.Tournaments[0].ID, ShouldNotEqual, season.Tournaments[0].ID)
			So(again.Tournaments[0].Standings, ShouldNotResemble, season.Tournaments[0].Standings)
		})

		Convey("Dates span the configured window", func() {
			So(season.Tournaments[0].Date, ShouldEqual, "2025-01-04")
			So(season.Tournaments[8].Date, ShouldEqual, "2025-03-25")
		})

		Convey("Every tournament is well formed", func() {
			for _, tr := range season.Tournaments {
				So(len(tr.Standings), ShouldBeBetweenOrEqual, 4, 12)
				So(tr.TGP, ShouldBeBetweenOrEqual, 0.5, 1.0)
				for i, s := range tr.Standings {
					So(s.Position, ShouldEqual, i+1)
				}
				for _, g := range tr.Games {
					So(len(g), ShouldBeBetweenOrEqual, 2, 4)
				}
			}
		})

		Convey("The season converts into finalizations", func() {
			fins, err := season.Finalizations()
			So(err, ShouldBeNil)
			So(fins, ShouldHaveLength, 9)
		})
	})

	Convey("Invalid configs are rejected", t, func() {
		bad := cfg
		bad.Players = 1
		_, err := Generate(ctx, bad)
		So(errors.Is(err, ErrInvalid), ShouldBeTrue)

		bad = cfg
		bad.MaxField = 2
		_, err = Generate(ctx, bad)
		So(errors.Is(err, ErrInvalid), ShouldBeTrue)
	})

	Convey("A cancelled context stops generation", t, func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		big := cfg
		big.Tournaments = 500
		big.Workers = 1
		_, err := Generate(cancelled, big)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
