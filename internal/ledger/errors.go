package ledger

import "fmt"

// SchemaMismatchError means a required property is missing from the record entirely.
type SchemaMismatchError struct {
	Field    string
	Property string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("missing property %q for field %s", e.Property, e.Field)
}

// MalformedRecordError explains why a record was dropped from the batch.
type MalformedRecordError struct {
	RecordID string
	Field    string
	Err      error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %s: invalid %s: %v", e.RecordID, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
