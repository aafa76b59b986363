package domain

// SoftDeletable is implemented by rows that carry a Deletion state.
type SoftDeletable interface {
	DeletionState() Deletion
}

// SeesDeleted reports whether reads for this role include soft-deleted rows.
func (r Role) SeesDeleted() bool { return r.Privileged() }

// IsVisible decides whether row may be returned to a caller with role.
func IsVisible(row SoftDeletable, role Role) bool {
	if role.SeesDeleted() {
		return true
	}
	return !row.DeletionState().IsDeleted()
}

// FilterVisible keeps the rows visible to role, preserving order.
func FilterVisible[T SoftDeletable](rows []T, role Role) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if IsVisible(row, role) {
			out = append(out, row)
		}
	}
	return out
}
