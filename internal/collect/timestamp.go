package collect

import (
	"context"
	"encoding/json"
	"time"
)

// TimestampSource records the collection time.
type TimestampSource struct {
	name      string
	essential bool
	now       func() time.Time
}

func (s *TimestampSource) Name() string    { return s.name }
func (s *TimestampSource) Essential() bool { return s.essential }

func (s *TimestampSource) Fetch(context.Context) ([]byte, error) {
	now := s.now().UTC()
	return json.Marshal(struct {
		Time string `json:"time"`
		Unix int64  `json:"unix"`
	}{
		Time: now.Format(time.RFC3339Nano),
		Unix: now.Unix(),
	})
}
