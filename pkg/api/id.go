package api

import (
	"strings"

	"github.com/google/uuid"
)

const runIDPrefix = "run_"

// NewRunID generates an identifier for one pipeline run.
func NewRunID() string {
	return runIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateRunID checks whether id was produced by NewRunID.
func ValidateRunID(id string) bool {
	raw, ok := strings.CutPrefix(id, runIDPrefix)
	if !ok || len(raw) != 32 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
