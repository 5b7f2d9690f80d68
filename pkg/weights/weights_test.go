package weights_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/weights"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeightConfig(t *testing.T) {
	Convey("Given a weight config for merged PRs and reviews", t, func() {
		wc, err := weights.NewWeightConfig(map[string]int64{
			"pr_merged":        8000,
			"review_submitted": 2000,
		})
		So(err, ShouldBeNil)

		Convey("When looking up a configured event type", func() {
			w, err := wc.Weight("pr_merged")

			Convey("Then the configured weight is returned", func() {
				So(err, ShouldBeNil)
				So(w, ShouldEqual, 8000)
			})
		})

		Convey("When looking up an event type that is not configured", func() {
			_, err := wc.Weight("issue_opened")

			Convey("Then a configuration error is returned", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ledgerErrors.ErrUnknownEventType), ShouldBeTrue)
				So(ledgerErrors.KindOf(err), ShouldEqual, ledgerErrors.Kind_Configuration)
			})
		})

		Convey("When the source map is modified after construction", func() {
			m := wc.ToMap()
			m["pr_merged"] = 1

			Convey("Then the config is unaffected", func() {
				w, _ := wc.Weight("pr_merged")
				So(w, ShouldEqual, 8000)
			})
		})

		Convey("Then event types are listed in sorted order", func() {
			So(wc.EventTypes(), ShouldResemble, []string{"pr_merged", "review_submitted"})
			So(wc.String(), ShouldEqual, "pr_merged=8000,review_submitted=2000")
		})
	})

	Convey("Given invalid weight maps", t, func() {
		Convey("An empty map is rejected", func() {
			_, err := weights.NewWeightConfig(map[string]int64{})
			So(errors.Is(err, ledgerErrors.ErrInvalidWeightConfig), ShouldBeTrue)
		})
		Convey("A negative weight is rejected", func() {
			_, err := weights.NewWeightConfig(map[string]int64{"pr_merged": -1})
			So(ledgerErrors.KindOf(err), ShouldEqual, ledgerErrors.Kind_Validation)
		})
		Convey("A blank event type is rejected", func() {
			_, err := weights.NewWeightConfig(map[string]int64{" ": 1})
			So(err, ShouldNotBeNil)
		})
		Convey("A zero weight is allowed", func() {
			wc, err := weights.NewWeightConfig(map[string]int64{"comment": 0})
			So(err, ShouldBeNil)
			w, err := wc.Weight("comment")
			So(err, ShouldBeNil)
			So(w, ShouldEqual, 0)
		})
	})

	Convey("Given a weight config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "weights.yaml")
		contents := "weights:\n  github.pr_merged: 8000\n  review_submitted: 2000\n"
		So(os.WriteFile(path, []byte(contents), 0o600), ShouldBeNil)

		Convey("When it is loaded", func() {
			wc, err := weights.LoadWeightConfigFile(path)

			Convey("Then dotted event types are kept intact", func() {
				So(err, ShouldBeNil)
				w, err := wc.Weight("github.pr_merged")
				So(err, ShouldBeNil)
				So(w, ShouldEqual, 8000)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := weights.LoadWeightConfigFile(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
