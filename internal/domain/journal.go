package domain

// Journal is the append-only per-share log of backup attempts.
// Each archive filename has at most one primary line, which may later
// be annotated when the archive is auto-deleted.
type Journal interface {
	Append(filename, status string) error
	MarkDeleted(filename string) (bool, error)
}
