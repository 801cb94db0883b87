package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const defaultStoreTimeout = 3 * time.Second

// storeCtx bounds a single store call.
func storeCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// jsonColumn encodes v for a JSON column. Nil and empty values map to NULL.
func jsonColumn(v any) datatypes.JSON {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]string:
		if len(t) == 0 {
			return nil
		}
	case map[string][]string:
		if len(t) == 0 {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func utcNow() time.Time { return time.Now().UTC() }
