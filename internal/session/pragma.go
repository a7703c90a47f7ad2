package session

import (
	"fmt"
	"strings"
)

// Connection tuning constants.
const (
	// busyTimeoutMS is how long a statement waits on a locked database before failing.
	busyTimeoutMS = 5000

	// cipherPageSize, cipherKDFIterations and cipherCompatibility pin the
	// SQLCipher file format. Changing any of them makes existing files unreadable.
	cipherPageSize      = 4096
	cipherKDFIterations = 64000
	cipherCompatibility = 4
)

// Accepted values for the tuning pragmas, keyed in lower case.
var (
	tempStoreModes   = map[string]bool{"default": true, "file": true, "memory": true}
	synchronousModes = map[string]bool{"off": true, "normal": true, "full": true, "extra": true}
)

// validateOptions rejects tuning values that are not valid pragma arguments.
// They are spliced into the init script, so nothing else may pass.
func validateOptions(opts Options) error {
	if opts.Path == "" {
		return fmt.Errorf("path is required")
	}
	if opts.TempStore != "" && !tempStoreModes[strings.ToLower(opts.TempStore)] {
		return fmt.Errorf("invalid temp_store %q", opts.TempStore)
	}
	if opts.Synchronous != "" && !synchronousModes[strings.ToLower(opts.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode %q", opts.Synchronous)
	}
	return nil
}

// initScript assembles the connection initialisation batch.
//
// Order matters: with a password, the cipher pragmas must come first.
// Any other pragma before PRAGMA key reads the file unkeyed.
func initScript(opts Options) string {
	var b strings.Builder

	if opts.Password != "" {
		fmt.Fprintf(&b, "PRAGMA key = %s;", quoteLiteral(opts.Password))
		fmt.Fprintf(&b, "PRAGMA cipher_page_size = %d;", cipherPageSize)
		fmt.Fprintf(&b, "PRAGMA kdf_iter = %d;", cipherKDFIterations)
		b.WriteString("PRAGMA cipher_memory_security = ON;")
		b.WriteString("PRAGMA cipher_default_use_hmac = ON;")
		fmt.Fprintf(&b, "PRAGMA cipher_compatibility = %d;", cipherCompatibility)
	}

	if opts.TempStore != "" {
		fmt.Fprintf(&b, "pragma temp_store = %s;", opts.TempStore)
	}
	if opts.Synchronous != "" {
		fmt.Fprintf(&b, "pragma synchronous = %s;", opts.Synchronous)
	}

	b.WriteString("pragma journal_mode = WAL;")
	fmt.Fprintf(&b, "pragma busy_timeout = %d;", busyTimeoutMS)

	if opts.ExclusiveLocking {
		b.WriteString("pragma locking_mode = EXCLUSIVE;")
	}

	return b.String()
}

// quoteLiteral returns s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
