package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexanderramin/noise/internal/domain"
)

func encodeRecord(rec *domain.MemberRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encoding member record: %w", err)
	}
	return string(data), nil
}

func decodeRecord(doc string) (*domain.MemberRecord, error) {
	rec := domain.NewMemberRecord()
	if err := json.Unmarshal([]byte(doc), rec); err != nil {
		return nil, fmt.Errorf("decoding member record: %w", err)
	}
	return rec, nil
}

// nowUTC returns the current UTC time formatted as RFC3339.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
