package model

// Names of record accessors. A field cannot use one of these names, with the exception
// of the identifier field, which may be called "id".
const (
	ReservedID       = "id"
	ReservedCreated  = "created"
	ReservedDeadline = "deadline"
	ReservedExpired  = "expired"
	ReservedDeleted  = "deleted"
	ReservedSchema   = "schema"
	ReservedStore    = "store"
	ReservedOwner    = "owner"
	ReservedFields   = "fields"
	ReservedData     = "data"
	ReservedNext     = "next"
	ReservedPrevious = "previous"
	ReservedUndo     = "undo"
	ReservedRedo     = "redo"
	ReservedClone    = "clone"
	ReservedRemove   = "remove"
	ReservedRestore  = "restore"
)

// IsReserved reports whether name collides with a record accessor
func IsReserved(name string) bool {
	switch name {
	case ReservedID, ReservedCreated, ReservedDeadline, ReservedExpired, ReservedDeleted,
		ReservedSchema, ReservedStore, ReservedOwner, ReservedFields, ReservedData,
		ReservedNext, ReservedPrevious, ReservedUndo, ReservedRedo, ReservedClone,
		ReservedRemove, ReservedRestore:
		return true
	}
	return false
}
