package store

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateRecords(t *testing.T) {
	Convey("Given a date and record sets", t, func() {
		d := model.NewDate(2024, 3, 4)
		rec := func(id string, st model.Status) model.Record {
			return model.Record{StudentID: id, Date: d, Status: st}
		}

		Convey("Then a clean set passes", func() {
			So(ValidateRecords(d, []model.Record{rec("s1", model.StatusPresent), rec("s2", model.StatusAbsent)}), ShouldBeNil)
			So(ValidateRecords(d, nil), ShouldBeNil)
		})

		Convey("Then unmarked, duplicate, misdated and anonymous records fail", func() {
			cases := [][]model.Record{
				{rec("s1", model.StatusUnmarked)},
				{rec("s1", model.StatusPresent), rec("s1", model.StatusAbsent)},
				{{StudentID: "s1", Date: d.AddDays(1), Status: model.StatusPresent}},
				{rec("", model.StatusPresent)},
			}
			for _, c := range cases {
				So(errors.Is(ValidateRecords(d, c), ErrInvalidRecords), ShouldBeTrue)
			}
		})
	})
}

func TestUnavailableError(t *testing.T) {
	Convey("Given a wrapped network failure", t, func() {
		cause := context.DeadlineExceeded
		err := Unavailable("create", cause)

		Convey("Then it matches both the class and the cause", func() {
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "create")

			var ue *UnavailableError
			So(errors.As(err, &ue), ShouldBeTrue)
			So(ue.Op, ShouldEqual, "create")
		})

		Convey("Then wrapping twice keeps the first op", func() {
			again := Unavailable("submit", err)
			var ue *UnavailableError
			So(errors.As(again, &ue), ShouldBeTrue)
			So(ue.Op, ShouldEqual, "create")
		})

		Convey("Then nil stays nil", func() {
			So(Unavailable("x", nil), ShouldBeNil)
		})
	})
}
