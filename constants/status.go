package constants

// DocumentStatus is the canonical processing status stored on documents rows.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded   DocumentStatus = "uploaded"   // set at upload time
	StatusProcessing DocumentStatus = "processing" // an attempt is in flight
	StatusProcessed  DocumentStatus = "processed"  // terminal success
	StatusError      DocumentStatus = "error"      // terminal failure
)

// DocumentStatuses lists every valid status, in lifecycle order.
var DocumentStatuses = []string{
	string(StatusUploaded),
	string(StatusProcessing),
	string(StatusProcessed),
	string(StatusError),
}

// IsTerminal reports whether an attempt has finished with s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusError
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusError:
		return true
	}
	return false
}
