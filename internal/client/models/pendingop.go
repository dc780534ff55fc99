package models

import "fmt"

// PendingOp is the local intent not yet confirmed by the remote.
type PendingOp int

const (
	PendingNone PendingOp = iota
	PendingUpsert
	PendingDelete
)

func (p PendingOp) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingUpsert:
		return "upsert"
	case PendingDelete:
		return "delete"
	default:
		return fmt.Sprintf("PendingOp(%d)", int(p))
	}
}

// ParsePendingOp is the inverse of String.
func ParsePendingOp(s string) (PendingOp, error) {
	switch s {
	case "none", "":
		return PendingNone, nil
	case "upsert":
		return PendingUpsert, nil
	case "delete":
		return PendingDelete, nil
	default:
		return PendingNone, fmt.Errorf("unknown pending op %q", s)
	}
}
