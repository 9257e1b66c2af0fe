package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := gen.Generate().String()
		require.False(t, seen[s], "duplicate ULID %s", s)
		seen[s] = true
	}
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		prefix string
	}{
		{"operation", NewOperationID().String(), OperationPrefix},
		{"modal", NewModalID().String(), ModalPrefix},
		{"incident", NewIncidentID().String(), IncidentPrefix},
		{"recovery", NewRecoveryID().String(), RecoveryPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.value, tt.prefix+"_"), tt.value)
			assert.True(t, IsValid(tt.value))
		})
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	opID := NewOperationID()

	ts, err := Timestamp(opID.String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("op_not-a-ulid")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool)
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := gen.GenerateWithPrefix(OperationPrefix)
				mu.Lock()
				ids[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 800)
}
