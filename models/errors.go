package models

import "fmt"

// UnmappedFieldError is diagnostic only: the field is dropped from the
// canonical record and the rest of the listing proceeds.
type UnmappedFieldError struct {
	Namespace Namespace
	Label     string
}

func (e *UnmappedFieldError) Error() string {
	return fmt.Sprintf("unmapped field %q in namespace %s", e.Label, e.Namespace)
}

// MappingTableConflictError means the table itself declares two distinct
// canonical keys for the same (namespace, label) pair. Fatal at load time.
type MappingTableConflictError struct {
	Namespace   Namespace
	Label       string
	ExistingKey string
	NewKey      string
}

func (e *MappingTableConflictError) Error() string {
	return fmt.Sprintf("mapping table conflict: (%s, %q) declared as both %q and %q",
		e.Namespace, e.Label, e.ExistingKey, e.NewKey)
}

// SourceFormatError means one raw listing is malformed. The listing is
// skipped and the batch continues.
type SourceFormatError struct {
	OfferID string
	Reason  string
}

func (e *SourceFormatError) Error() string {
	id := e.OfferID
	if id == "" {
		id = "<missing id>"
	}
	return fmt.Sprintf("malformed raw listing %s: %s", id, e.Reason)
}

// StoreWriteConflictError means two writers raced on the same listing id.
// The pipeline's keyed lock keeps this from happening; the error exists so
// a store can refuse rather than silently lose an update.
type StoreWriteConflictError struct {
	ListingID string
}

func (e *StoreWriteConflictError) Error() string {
	return fmt.Sprintf("concurrent write on listing %s without serialization", e.ListingID)
}
