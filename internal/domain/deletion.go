package domain

import "time"

// Deletion is the soft-delete state of a row: either active or deleted at a
// point in time. The zero value is active.
type Deletion struct {
	at      time.Time
	deleted bool
}

// DeletedAt returns the deleted state stamped with t.
func DeletedAt(t time.Time) Deletion { return Deletion{at: t, deleted: true} }

// DeletionFromColumn converts the nullable deleted_at column.
func DeletionFromColumn(col *time.Time) Deletion {
	if col == nil {
		return Deletion{}
	}
	return DeletedAt(*col)
}

// IsDeleted reports whether the row is soft-deleted.
func (d Deletion) IsDeleted() bool { return d.deleted }

// At returns the deletion time and whether the row is deleted.
func (d Deletion) At() (time.Time, bool) { return d.at, d.deleted }

// Column converts back to the nullable deleted_at column.
func (d Deletion) Column() *time.Time {
	if !d.deleted {
		return nil
	}
	t := d.at
	return &t
}
