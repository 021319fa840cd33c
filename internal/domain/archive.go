package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Archive is a single configuration backup on the share, identified by
// the hostname and date embedded in its filename.
type Archive struct {
	Filename string
	Host     string
	Date     time.Time
}

const archiveDateLayout = "2006-01-02"

var archivePattern = regexp.MustCompile(`^backup-(.+)-(\d{4}-\d{2}-\d{2})-auto(\..+)$`)

// ArchiveFilename builds the canonical archive name for a host and date.
func ArchiveFilename(host string, date time.Time, ext string) string {
	return fmt.Sprintf("backup-%s-%s-auto%s", host, date.Format(archiveDateLayout), ext)
}

// ParseArchiveFilename extracts host and date from an archive name.
// Returns false for names that do not follow the backup naming scheme.
func ParseArchiveFilename(name string) (Archive, bool) {
	m := archivePattern.FindStringSubmatch(name)
	if m == nil {
		return Archive{}, false
	}

	date, err := time.Parse(archiveDateLayout, m[2])
	if err != nil {
		return Archive{}, false
	}

	return Archive{Filename: name, Host: m[1], Date: date}, true
}
