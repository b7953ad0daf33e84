package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/pinrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRankEntryJSON(t *testing.T) {
	Convey("Given a rank entry", t, func() {
		entry := types.RankEntry{
			Rank:          1,
			PlayerID:      "p-1",
			Points:        412.5,
			EventCount:    9,
			LastEventDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		}

		Convey("When encoding it", func() {
			raw, err := json.Marshal(entry)

			Convey("Then snake_case keys are used", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, `"player_id":"p-1"`)
				So(string(raw), ShouldContainSubstring, `"last_event_date":"2026-05-01T00:00:00Z"`)
			})
		})
	})
}

func TestRatingEntryJSON(t *testing.T) {
	Convey("Given a rating entry", t, func() {
		entry := types.RatingEntry{Position: 2, PlayerID: "p-2", Rating: 1712.4, RatingDeviation: 48.1}

		Convey("When encoding it", func() {
			raw, err := json.Marshal(entry)

			Convey("Then the deviation key is present", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, `"rating_deviation":48.1`)
			})
		})
	})
}
