package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/winhacks/hackbot/pkg/storage"
)

// ObjectReader fetches an object, returning nil when etag is still current.
type ObjectReader interface {
	Read(ctx context.Context, bucket, key, etag string) (*storage.Object, error)
}

// CSV finds registrants in a CSV export stored in S3. The export must have
// a header row naming email, first_name and last_name columns. The object
// is re-read only when its ETag changes.
type CSV struct {
	objects ObjectReader
	bucket  string
	key     string
	logger  *zap.Logger

	mu    sync.Mutex
	etag  string
	index map[string]Registrant
}

// NewCSV returns a roster reading bucket/key.
func NewCSV(objects ObjectReader, bucket, key string, logger *zap.Logger) *CSV {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSV{objects: objects, bucket: bucket, key: key, logger: logger}
}

// Find implements Lookup.
func (c *CSV) Find(ctx context.Context, email string) (*Registrant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, err := c.objects.Read(ctx, c.bucket, c.key, c.etag)
	if err != nil {
		return nil, fmt.Errorf("read roster export: %w", err)
	}
	if obj != nil {
		index, err := parseRoster(bytes.NewReader(obj.Body))
		if err != nil {
			return nil, fmt.Errorf("parse roster export: %w", err)
		}
		c.index, c.etag = index, obj.ETag
		c.logger.Info("roster export loaded", zap.String("key", c.key), zap.Int("registrants", len(index)))
	}
	r, ok := c.index[normalize(email)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// parseRoster indexes rows by normalized email; later rows win.
func parseRoster(r io.Reader) (map[string]Registrant, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	emailCol, ok1 := cols["email"]
	firstCol, ok2 := cols["first_name"]
	lastCol, ok3 := cols["last_name"]
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("header must name email, first_name and last_name")
	}

	index := map[string]Registrant{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		email := normalize(field(emailCol))
		if email == "" {
			continue
		}
		index[email] = Registrant{FirstName: field(firstCol), LastName: field(lastCol), Email: email}
	}
	return index, nil
}
