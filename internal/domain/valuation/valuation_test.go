package valuation_test

import (
	"errors"
	"testing"

	"github.com/okian/pinrank/internal/domain/model"
	valuation "github.com/okian/pinrank/internal/domain/valuation"
	. "github.com/smartystreets/goconvey/convey"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ranks(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for r := from; r <= to; r++ {
		out = append(out, r)
	}
	return out
}

func TestCalculator_Compute(t *testing.T) {
	Convey("Given a calculator with a ranking curve steep enough to saturate", t, func() {
		calc, err := valuation.New(valuation.WithRankingCurve(-0.211675054, 3.0, 250, 50))
		So(err, ShouldBeNil)

		Convey("When a 20 rated player major hits both TVA caps", func() {
			v, err := calc.Compute(valuation.Input{
				RatedPlayerCount: 20,
				TotalPlayerCount: 25,
				Ratings:          valuation.RatingSummary{Ratings: repeat(4000, 20)},
				Rankings:         valuation.RankingSummary{Rankings: ranks(1, 20)},
				TGP:              1.0,
				Booster:          model.BoosterMajor,
			})

			Convey("Then base is 10.00 and the first place value is 170.00", func() {
				So(err, ShouldBeNil)
				So(v.BaseValue, ShouldEqual, 10.00)
				So(v.RatingTVA, ShouldEqual, 25.0)
				So(v.RankingTVA, ShouldEqual, 50.0)
				So(v.TotalTVA, ShouldEqual, 75.0)
				So(v.RawValue, ShouldEqual, 85.0)
				So(v.BoosterMultiplier, ShouldEqual, 2.00)
				So(v.FirstPlaceValue, ShouldEqual, 170.00)
			})
		})
	})

	Convey("Given the default calculator", t, func() {
		calc, err := valuation.New()
		So(err, ShouldBeNil)

		Convey("When 100 rated players attend", func() {
			v, err := calc.Compute(valuation.Input{RatedPlayerCount: 100, TotalPlayerCount: 120, TGP: 1, Booster: model.BoosterNone})

			Convey("Then the base value is capped at 32.00", func() {
				So(err, ShouldBeNil)
				So(v.BaseValue, ShouldEqual, 32.00)
				So(v.FirstPlaceValue, ShouldEqual, 32.00)
			})
		})

		Convey("When comparing NONE and CERTIFIED boosters", func() {
			in := valuation.Input{RatedPlayerCount: 20, TotalPlayerCount: 20, TGP: 1}
			in.Booster = model.BoosterNone
			none, err1 := calc.Compute(in)
			in.Booster = model.BoosterCertified
			certified, err2 := calc.Compute(in)

			Convey("Then the multipliers are 1.00 and 1.25", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(none.BoosterMultiplier, ShouldEqual, 1.00)
				So(none.FirstPlaceValue, ShouldEqual, 10.00)
				So(certified.BoosterMultiplier, ShouldEqual, 1.25)
				So(certified.FirstPlaceValue, ShouldEqual, 12.50)
			})
		})

		Convey("When the booster tiers are ordered", func() {
			prev := 0.0
			for _, b := range model.Boosters() {
				m, err := calc.BoosterMultiplier(b)
				So(err, ShouldBeNil)
				So(m, ShouldBeGreaterThan, prev)
				prev = m
			}

			Convey("Then MAJOR is 2.00", func() {
				So(prev, ShouldEqual, 2.00)
			})
		})

		Convey("When the grading percentage is applied", func() {
			v, err := calc.Compute(valuation.Input{RatedPlayerCount: 30, TotalPlayerCount: 40, TGP: 0.5, Booster: model.BoosterNone})

			Convey("Then the raw value is scaled by it", func() {
				So(err, ShouldBeNil)
				So(v.RawValue, ShouldEqual, 15.0)
				So(v.AfterTGP, ShouldEqual, 7.5)
				So(v.FirstPlaceValue, ShouldEqual, 7.5)
			})
		})

		Convey("When weak ratings and deep rankings are present", func() {
			v, err := calc.Compute(valuation.Input{
				RatedPlayerCount: 4,
				TotalPlayerCount: 4,
				Ratings:          valuation.RatingSummary{Ratings: []float64{1000, 1200, 1285}},
				Rankings:         valuation.RankingSummary{Rankings: []int{251, 5000}},
				TGP:              1,
				Booster:          model.BoosterNone,
			})

			Convey("Then they contribute nothing", func() {
				So(err, ShouldBeNil)
				So(v.RatingTVA, ShouldEqual, 0.0)
				So(v.RankingTVA, ShouldEqual, 0.0)
			})
		})

		Convey("When the world number one attends", func() {
			tva := calc.RankingTVA(valuation.RankingSummary{Rankings: []int{1}})

			Convey("Then the contribution is the curve intercept", func() {
				So(tva, ShouldAlmostEqual, 1.459827968, 1e-9)
			})
		})

		Convey("When the same input is computed twice", func() {
			in := valuation.Input{
				RatedPlayerCount: 37,
				TotalPlayerCount: 52,
				Ratings:          valuation.RatingSummary{Ratings: []float64{1850.2, 1733.9, 1999.1, 1612}},
				Rankings:         valuation.RankingSummary{Rankings: []int{3, 17, 120}},
				TGP:              0.88,
				Booster:          model.BoosterChampionshipSeries,
			}
			a, errA := calc.Compute(in)
			b, errB := calc.Compute(in)

			Convey("Then the results are identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a, ShouldResemble, b)
			})
		})
	})
}

func TestCalculator_TotalTVACap(t *testing.T) {
	Convey("Given component caps whose sum exceeds the total cap", t, func() {
		calc, err := valuation.New(
			valuation.WithTVACaps(60, 60, 75),
			valuation.WithRankingCurve(-0.1, 10, 250, 60),
		)
		So(err, ShouldBeNil)

		Convey("When both components saturate", func() {
			v, err := calc.Compute(valuation.Input{
				RatedPlayerCount: 64,
				TotalPlayerCount: 64,
				Ratings:          valuation.RatingSummary{Ratings: repeat(9000, 64)},
				Rankings:         valuation.RankingSummary{Rankings: ranks(1, 64)},
				TGP:              1,
				Booster:          model.BoosterNone,
			})

			Convey("Then the total TVA never exceeds 75", func() {
				So(err, ShouldBeNil)
				So(v.RatingTVA, ShouldEqual, 60.0)
				So(v.RankingTVA, ShouldEqual, 60.0)
				So(v.TotalTVA, ShouldEqual, 75.0)
				So(v.FirstPlaceValue, ShouldEqual, 107.0)
			})
		})
	})
}

func TestCalculator_Monotonic(t *testing.T) {
	calc, err := valuation.New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range model.Boosters() {
		for _, tgp := range []float64{0.01, 0.33, 0.5, 0.8, 1} {
			prevRaw, prevFPV := -1.0, -1.0
			for rated := 0; rated <= 80; rated++ {
				v, err := calc.Compute(valuation.Input{
					RatedPlayerCount: rated,
					TotalPlayerCount: 80,
					Ratings:          valuation.RatingSummary{Ratings: repeat(1900, rated)},
					TGP:              tgp,
					Booster:          b,
				})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if v.FirstPlaceValue < 0 {
					t.Fatalf("negative first place value %v", v.FirstPlaceValue)
				}
				if v.RawValue >= prevRaw && v.FirstPlaceValue < prevFPV {
					t.Fatalf("%s tgp=%v rated=%d: fpv %v dropped below %v while raw grew", b, tgp, rated, v.FirstPlaceValue, prevFPV)
				}
				prevRaw, prevFPV = v.RawValue, v.FirstPlaceValue
			}
		}
	}
}

func TestCalculator_Validation(t *testing.T) {
	Convey("Given the default calculator", t, func() {
		calc, err := valuation.New()
		So(err, ShouldBeNil)
		base := valuation.Input{RatedPlayerCount: 10, TotalPlayerCount: 10, TGP: 1, Booster: model.BoosterNone}

		Convey("When the grading percentage is out of range", func() {
			for _, tgp := range []float64{0, -0.2, 1.01} {
				in := base
				in.TGP = tgp
				_, err := calc.Compute(in)

				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			}
		})

		Convey("When the booster is unknown", func() {
			in := base
			in.Booster = model.Booster("PLATINUM")
			_, err := calc.Compute(in)

			Convey("Then it fails validation instead of defaulting", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "PLATINUM")
			})
		})

		Convey("When counts are inconsistent", func() {
			in := base
			in.RatedPlayerCount = 11
			_, err1 := calc.Compute(in)
			in = base
			in.TotalPlayerCount = 0
			in.RatedPlayerCount = 0
			_, err2 := calc.Compute(in)
			in = base
			in.Rankings = valuation.RankingSummary{Rankings: []int{0}}
			_, err3 := calc.Compute(in)

			Convey("Then each is rejected", func() {
				So(errors.Is(err1, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(err2, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(err3, model.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestCalculator_Configuration(t *testing.T) {
	Convey("Given invalid policy tables", t, func() {
		tables := []struct {
			name  string
			table map[model.Booster]float64
		}{
			{"non-increasing", map[model.Booster]float64{
				model.BoosterNone: 1, model.BoosterCertified: 1.25, model.BoosterCertifiedPlus: 1.2,
				model.BoosterChampionshipSeries: 1.75, model.BoosterMajor: 2,
			}},
			{"missing tier", map[model.Booster]float64{
				model.BoosterNone: 1, model.BoosterCertified: 1.25, model.BoosterMajor: 2,
			}},
			{"none not unity", map[model.Booster]float64{
				model.BoosterNone: 1.1, model.BoosterCertified: 1.25, model.BoosterCertifiedPlus: 1.5,
				model.BoosterChampionshipSeries: 1.75, model.BoosterMajor: 2,
			}},
			{"unknown tier", map[model.Booster]float64{
				model.BoosterNone: 1, model.BoosterCertified: 1.25, model.BoosterCertifiedPlus: 1.5,
				model.BoosterChampionshipSeries: 1.75, model.BoosterMajor: 2, model.Booster("LEGENDARY"): 3,
			}},
		}

		for _, tc := range tables {
			Convey("When the table is "+tc.name, func() {
				calc, err := valuation.New(valuation.WithBoosterMultipliers(tc.table))

				Convey("Then construction fails with a configuration error", func() {
					So(calc, ShouldBeNil)
					So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
				})
			})
		}

		Convey("When the base cap is not positive", func() {
			_, err := valuation.New(valuation.WithBaseValue(0.5, 0))

			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})
	})
}
