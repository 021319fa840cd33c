package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/confkeep/confkeep/internal/adapter/journal"
	"github.com/confkeep/confkeep/internal/domain"
)

type fakeMounter struct {
	mountCalls   int
	unmountCalls int
	mountErr     error
}

func (f *fakeMounter) Mount(ctx context.Context) error {
	f.mountCalls++
	return f.mountErr
}

func (f *fakeMounter) Unmount(ctx context.Context) {
	f.unmountCalls++
}

type fakeExporter struct {
	host      string
	content   string
	exportErr error
	calls     int
}

func (f *fakeExporter) Export(ctx context.Context, outputPath string) error {
	f.calls++
	if f.exportErr != nil {
		return f.exportErr
	}
	return os.WriteFile(outputPath, []byte(f.content), 0644)
}

func (f *fakeExporter) Host() string { return f.host }
func (f *fakeExporter) Ext() string  { return ".tar.gz" }

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

// backupDay is the first Friday of January 2024.
var backupDay = time.Date(2024, 1, 5, 2, 30, 0, 0, time.UTC)

func newTestRun(t *testing.T, mounter *fakeMounter, exporter *fakeExporter, notifier *fakeNotifier) (*Run, string) {
	t.Helper()
	shareDir := filepath.Join(t.TempDir(), "share", "router")

	log := &testLogger{}
	jnl := journal.New(filepath.Join(shareDir, "backup.log"))
	retention := NewRetention(jnl, log, 3)

	// Avoid wrapping a typed nil *fakeNotifier in the domain.Notifier
	// interface, which would defeat the nil check in Run.notify.
	var n domain.Notifier
	if notifier != nil {
		n = notifier
	}

	uc := NewRun(mounter, exporter, jnl, retention, nil, n, log, time.Friday, shareDir)
	uc.now = func() time.Time { return backupDay }
	return uc, shareDir
}

func TestRunExecute(t *testing.T) {
	Convey("Given a backup run", t, func() {
		ctx := context.Background()

		Convey("On a backup day with no prior archive", func() {
			mounter := &fakeMounter{}
			exporter := &fakeExporter{host: "router1", content: "config"}
			notifier := &fakeNotifier{}
			uc, shareDir := newTestRun(t, mounter, exporter, notifier)

			err := uc.Execute(ctx)

			Convey("It should create today's archive on the share", func() {
				So(err, ShouldBeNil)

				data, err := os.ReadFile(filepath.Join(shareDir, "backup-router1-2024-01-05-auto.tar.gz"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "config")
			})

			Convey("It should journal the attempt", func() {
				So(err, ShouldBeNil)

				data, err := os.ReadFile(filepath.Join(shareDir, "backup.log"))
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring,
					"backup-router1-2024-01-05-auto.tar.gz\tBackup created successfully")
			})

			Convey("It should mount and tear down exactly once", func() {
				So(err, ShouldBeNil)
				So(mounter.mountCalls, ShouldEqual, 1)
				So(mounter.unmountCalls, ShouldEqual, 1)
			})

			Convey("It should notify success", func() {
				So(err, ShouldBeNil)
				So(len(notifier.messages), ShouldEqual, 1)
				So(notifier.messages[0], ShouldContainSubstring, "✅")
			})
		})

		Convey("On a day that is not the first configured weekday", func() {
			mounter := &fakeMounter{}
			exporter := &fakeExporter{host: "router1", content: "config"}
			uc, shareDir := newTestRun(t, mounter, exporter, nil)
			// Third Friday of January 2024.
			uc.now = func() time.Time { return time.Date(2024, 1, 19, 2, 30, 0, 0, time.UTC) }

			err := uc.Execute(ctx)

			Convey("It should skip without touching the filesystem", func() {
				So(err, ShouldBeNil)
				So(mounter.mountCalls, ShouldEqual, 0)
				So(mounter.unmountCalls, ShouldEqual, 0)
				So(exporter.calls, ShouldEqual, 0)

				_, statErr := os.Stat(shareDir)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When today's archive already exists", func() {
			mounter := &fakeMounter{}
			exporter := &fakeExporter{host: "router1", content: "config"}
			uc, shareDir := newTestRun(t, mounter, exporter, nil)

			So(os.MkdirAll(shareDir, 0755), ShouldBeNil)
			existing := filepath.Join(shareDir, "backup-router1-2024-01-05-auto.tar.gz")
			So(os.WriteFile(existing, []byte("earlier run"), 0644), ShouldBeNil)

			// Old archives that would be pruned on a normal run.
			for _, date := range []string{"2023-12-01", "2023-12-08", "2023-12-15", "2023-12-22"} {
				name := fmt.Sprintf("backup-router1-%s-auto.tar.gz", date)
				So(os.WriteFile(filepath.Join(shareDir, name), []byte("old"), 0644), ShouldBeNil)
			}

			err := uc.Execute(ctx)

			Convey("It should journal a duplicate skip and not export", func() {
				So(err, ShouldBeNil)
				So(exporter.calls, ShouldEqual, 0)

				data, readErr := os.ReadFile(filepath.Join(shareDir, "backup.log"))
				So(readErr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "Backup already exists, skipped")
			})

			Convey("It should not prune on the skip path", func() {
				So(err, ShouldBeNil)

				entries, readErr := os.ReadDir(shareDir)
				So(readErr, ShouldBeNil)
				So(len(entries), ShouldEqual, 6) // 5 archives + journal
			})

			Convey("Teardown should still run exactly once", func() {
				So(err, ShouldBeNil)
				So(mounter.unmountCalls, ShouldEqual, 1)
			})
		})

		Convey("When the mount fails", func() {
			mounter := &fakeMounter{mountErr: fmt.Errorf("mount error(13)")}
			exporter := &fakeExporter{host: "router1"}
			notifier := &fakeNotifier{}
			uc, _ := newTestRun(t, mounter, exporter, notifier)

			err := uc.Execute(ctx)

			Convey("It should fail without exporting", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "mount share")
				So(exporter.calls, ShouldEqual, 0)
			})

			Convey("Teardown should still be invoked once, as a no-op", func() {
				So(mounter.unmountCalls, ShouldEqual, 1)
			})

			Convey("It should notify the failure", func() {
				So(len(notifier.messages), ShouldEqual, 1)
				So(notifier.messages[0], ShouldContainSubstring, "❌")
			})
		})

		Convey("When the export fails", func() {
			mounter := &fakeMounter{}
			exporter := &fakeExporter{host: "router1", exportErr: fmt.Errorf("device unreachable")}
			uc, shareDir := newTestRun(t, mounter, exporter, nil)

			err := uc.Execute(ctx)

			Convey("It should fail with a warning journal line", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "export configuration")

				data, readErr := os.ReadFile(filepath.Join(shareDir, "backup.log"))
				So(readErr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "[Warning] Backup failed")
			})

			Convey("Teardown should still run exactly once", func() {
				So(mounter.unmountCalls, ShouldEqual, 1)
			})
		})

		Convey("When old archives exceed the retain count", func() {
			mounter := &fakeMounter{}
			exporter := &fakeExporter{host: "router1", content: "config"}
			uc, shareDir := newTestRun(t, mounter, exporter, nil)

			So(os.MkdirAll(shareDir, 0755), ShouldBeNil)
			for _, date := range []string{"2023-12-01", "2023-12-08", "2023-12-15", "2023-12-22"} {
				name := fmt.Sprintf("backup-router1-%s-auto.tar.gz", date)
				So(os.WriteFile(filepath.Join(shareDir, name), []byte("old"), 0644), ShouldBeNil)
			}

			err := uc.Execute(ctx)

			Convey("Pruning should keep only the three newest archives", func() {
				So(err, ShouldBeNil)

				entries, readErr := os.ReadDir(shareDir)
				So(readErr, ShouldBeNil)

				var archives []string
				for _, entry := range entries {
					if entry.Name() != "backup.log" {
						archives = append(archives, entry.Name())
					}
				}
				So(len(archives), ShouldEqual, 3)
				So(archives, ShouldContain, "backup-router1-2024-01-05-auto.tar.gz")
				So(archives, ShouldContain, "backup-router1-2023-12-22-auto.tar.gz")
				So(archives, ShouldContain, "backup-router1-2023-12-15-auto.tar.gz")
			})
		})

		Convey("With an offsite target", func() {
			mounter := &fakeMounter{}
			exporter := &fakeExporter{host: "router1", content: "config"}
			uc, _ := newTestRun(t, mounter, exporter, nil)

			store := newFakeStorage(
				"backup-router1-2023-12-01-auto.tar.gz",
				"backup-router1-2023-12-08-auto.tar.gz",
				"backup-router1-2023-12-15-auto.tar.gz",
			)
			uc.offsiteTargets = []OffsiteTarget{{Name: "s3", Storage: store}}

			err := uc.Execute(ctx)

			Convey("The archive should be replicated and the replica pruned", func() {
				So(err, ShouldBeNil)
				So(store.objects, ShouldContainKey, "backup-router1-2024-01-05-auto.tar.gz")
				So(len(store.objects), ShouldEqual, 3)
				So(store.deleted, ShouldResemble, []string{"backup-router1-2023-12-01-auto.tar.gz"})
			})
		})
	})
}
