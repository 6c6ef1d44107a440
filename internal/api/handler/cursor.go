package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/file-processor/internal/api/domain"
	"github.com/cuongbtq/file-processor/internal/api/storage"
)

// DecodeOutcomeCursor parses a cursor produced by EncodeOutcomeCursor.
// An empty string means the first page.
func DecodeOutcomeCursor(cursorStr string) (*storage.OutcomeCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}

	finishedAt, jobID, ok := strings.Cut(string(decoded), "|")
	if !ok || jobID == "" {
		return nil, fmt.Errorf("%w: missing job id", domain.ErrInvalidCursor)
	}

	var nanos int64
	if _, err := fmt.Sscanf(finishedAt, "%d", &nanos); err != nil {
		return nil, fmt.Errorf("%w: finished_at: %v", domain.ErrInvalidCursor, err)
	}

	return &storage.OutcomeCursor{
		FinishedAt: time.Unix(0, nanos).UTC(),
		JobID:      jobID,
	}, nil
}

func EncodeOutcomeCursor(cursor *storage.OutcomeCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.FinishedAt.UnixNano(), cursor.JobID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
