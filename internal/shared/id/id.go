// Package id provides centralized ID generation for the guard.
//
// IDs are prefixed ULIDs so they sort by creation time and read well in logs:
//   - op_*    tracked network operations
//   - modal_* modal lifecycle controllers
//   - inc_*   orphan-state incidents
//   - rec_*   recovery passes
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// OperationID identifies a pending operation in the request watchdog
type OperationID string

// ModalID identifies a modal lifecycle controller
type ModalID string

// IncidentID identifies one orphan-state incident
type IncidentID string

// RecoveryID identifies one soft or hard recovery pass
type RecoveryID string

const (
	OperationPrefix = "op"
	ModalPrefix     = "modal"
	IncidentPrefix  = "inc"
	RecoveryPrefix  = "rec"
	TracePrefix     = "trc"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewOperationID generates a new operation ID
func NewOperationID() OperationID {
	return OperationID(Default().GenerateWithPrefix(OperationPrefix))
}

// NewModalID generates a new modal ID
func NewModalID() ModalID {
	return ModalID(Default().GenerateWithPrefix(ModalPrefix))
}

// NewIncidentID generates a new incident ID
func NewIncidentID() IncidentID {
	return IncidentID(Default().GenerateWithPrefix(IncidentPrefix))
}

// NewRecoveryID generates a new recovery ID
func NewRecoveryID() RecoveryID {
	return RecoveryID(Default().GenerateWithPrefix(RecoveryPrefix))
}

func (id OperationID) String() string { return string(id) }
func (id ModalID) String() string     { return string(id) }
func (id IncidentID) String() string  { return string(id) }
func (id RecoveryID) String() string  { return string(id) }

// IsValid checks if an ID string is a ULID, with or without a known prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a prefix when present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
