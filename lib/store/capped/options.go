package capped

import (
	"fmt"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/lockmgr"
	"github.com/ValentinKolb/dCap/lib/oplog"
)

// DefaultMaxBytes is the byte capacity used when Options.MaxBytes is 0
const DefaultMaxBytes int64 = 4096

// --------------------------------------------------------------------------
// Delete notification
// --------------------------------------------------------------------------

// DeleteNotifier is called synchronously before every delete the store performs.
// Returning an error vetoes the delete.
type DeleteNotifier interface {
	AboutToDelete(id db.RecordID) error
}

// DeleteNotifierFunc adapts a function to the DeleteNotifier interface
type DeleteNotifierFunc func(id db.RecordID) error

func (f DeleteNotifierFunc) AboutToDelete(id db.RecordID) error { return f(id) }

type noopNotifier struct{}

func (noopNotifier) AboutToDelete(db.RecordID) error { return nil }

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a capped store
type Options struct {
	Name              string           // Store name, "local.oplog.*" selects log-ordered mode
	MaxBytes          int64            // Byte capacity (0 = DefaultMaxBytes)
	MaxDocs           int64            // Record capacity (<= 0 = unbounded)
	LogOrdered        bool             // Derive ids from the payload's ordering token
	KeyDeriver        oplog.KeyDeriver // Used in log-ordered mode (nil = JSON "ts" field)
	DeleteNotifier    DeleteNotifier   // Called before every delete (nil = no-op)
	Permit            lockmgr.IPermit  // Eviction permit (nil = new local permit)
	DisableVisibility bool             // Make every record visible immediately
}

// withDefaults validates the options and fills in defaults
func (o Options) withDefaults() (Options, error) {
	if o.MaxBytes < 0 {
		return o, fmt.Errorf("max bytes must not be negative (got %d)", o.MaxBytes)
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxDocs < 0 {
		o.MaxDocs = 0
	}
	if oplog.IsOplogNamespace(o.Name) {
		o.LogOrdered = true
	}
	if o.KeyDeriver == nil {
		o.KeyDeriver = oplog.NewJSONKeyDeriver()
	}
	if o.DeleteNotifier == nil {
		o.DeleteNotifier = noopNotifier{}
	}
	if o.Permit == nil {
		o.Permit = lockmgr.NewLocalPermit()
	}
	return o, nil
}
