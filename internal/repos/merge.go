package repos

import (
	"time"

	"gorm.io/datatypes"

	"github.com/gramlytics/gramlytics-backend/internal/types"
)

// setCounter applies the counter merge policy: the provider is the source
// of truth when it sent a value (clamped at zero), an unresolved counter
// never regresses the stored one.
func setCounter(updates map[string]any, col string, v int64) {
	if v == types.CountUnknown {
		return
	}
	if v < 0 {
		v = 0
	}
	updates[col] = v
}

// setString only overwrites when the incoming value is non-empty, so a
// partial payload cannot blank out previously collected data.
func setString(updates map[string]any, col, v string) {
	if v == "" {
		return
	}
	updates[col] = v
}

func setStringPtr(updates map[string]any, col string, v *string) {
	if v == nil || *v == "" {
		return
	}
	updates[col] = *v
}

func setTime(updates map[string]any, col string, v *time.Time) {
	if v == nil || v.IsZero() {
		return
	}
	updates[col] = *v
}

func setFloat(updates map[string]any, col string, v float64) {
	if v == 0 {
		return
	}
	updates[col] = v
}

func setJSON(updates map[string]any, col string, v datatypes.JSON) {
	if len(v) == 0 {
		return
	}
	updates[col] = v
}

// insertCount sanitizes a counter for first insert.
func insertCount(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
