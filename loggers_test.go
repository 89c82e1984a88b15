package mongorest

import (
	"path/filepath"
	"testing"

	"github.com/mongodb/grip/level"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGetSender(t *testing.T) {
	Convey("With logger settings", t, func() {
		settings := &Settings{}
		So(settings.Validate(), ShouldBeNil)

		Convey("the default sender logs to standard output at the configured levels", func() {
			settings.LoggerConfig.ThresholdLevel = "warning"
			sender, err := settings.GetSender()
			So(err, ShouldBeNil)
			defer sender.Close()

			So(sender.Level().Threshold, ShouldEqual, level.Warning)
			So(sender.Level().Default, ShouldEqual, level.Info)
		})

		Convey("a log path produces a file sender", func() {
			settings.LogPath = filepath.Join(t.TempDir(), "mongorest.log")
			sender, err := settings.GetSender()
			So(err, ShouldBeNil)
			So(sender.Close(), ShouldBeNil)
			So(sender.Name(), ShouldEqual, "mongorest")
		})
	})
}
