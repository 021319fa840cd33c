package domain

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestArchiveFilename(t *testing.T) {
	Convey("Given the archive naming scheme", t, func() {
		Convey("ArchiveFilename", func() {
			date := time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC)

			Convey("It should embed host, ISO date and the auto marker", func() {
				name := ArchiveFilename("router1", date, ".tar.gz")
				So(name, ShouldEqual, "backup-router1-2024-01-05-auto.tar.gz")
			})
		})

		Convey("ParseArchiveFilename", func() {
			Convey("When parsing a well-formed name", func() {
				archive, ok := ParseArchiveFilename("backup-router1-2024-01-05-auto.tar.gz")

				Convey("It should return host and date", func() {
					So(ok, ShouldBeTrue)
					So(archive.Host, ShouldEqual, "router1")
					So(archive.Date.Format("2006-01-02"), ShouldEqual, "2024-01-05")
					So(archive.Filename, ShouldEqual, "backup-router1-2024-01-05-auto.tar.gz")
				})
			})

			Convey("When the hostname itself contains dashes", func() {
				archive, ok := ParseArchiveFilename("backup-nas-01-lab-2024-02-29-auto.export.gz")

				Convey("It should keep the full hostname", func() {
					So(ok, ShouldBeTrue)
					So(archive.Host, ShouldEqual, "nas-01-lab")
					So(archive.Date.Format("2006-01-02"), ShouldEqual, "2024-02-29")
				})
			})

			Convey("When the name does not match the scheme", func() {
				for _, name := range []string{
					"backup-router1-2024-01-05.tar.gz",
					"router1-2024-01-05-auto.tar.gz",
					"backup-router1-20240105-auto.tar.gz",
					"backup.log",
				} {
					_, ok := ParseArchiveFilename(name)
					So(ok, ShouldBeFalse)
				}
			})

			Convey("When the date digits are not a real date", func() {
				_, ok := ParseArchiveFilename("backup-router1-2024-13-40-auto.tar.gz")

				Convey("It should reject the name", func() {
					So(ok, ShouldBeFalse)
				})
			})
		})
	})
}
