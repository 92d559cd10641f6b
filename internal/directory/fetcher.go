package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// ErrFetchFailure marks every error that prevents obtaining the server list.
// Callers must not scan when they see it.
var ErrFetchFailure = errors.New("directory fetch failed")

// maxPayload caps the directory response size.
const maxPayload = 16 << 20

// Fetcher returns the current list of servers to check.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.ServerDescriptor, error)
}

type HTTPFetcher struct {
	URL    string
	Client *http.Client
	Logger *zap.Logger
}

func NewHTTPFetcher(url string, timeout time.Duration, log *zap.Logger) *HTTPFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Logger: log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (servers []domain.ServerDescriptor, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, f.fail(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, f.fail(err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(resp.Body))

	if resp.StatusCode/100 != 2 {
		return nil, f.fail(fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, f.fail(fmt.Errorf("read body: %w", err))
	}

	recs, err := decode(body)
	if err != nil {
		return nil, f.fail(fmt.Errorf("decode: %w", err))
	}

	servers = make([]domain.ServerDescriptor, 0, len(recs))
	for i, r := range recs {
		if strings.TrimSpace(r.Address) == "" {
			f.Logger.Warn("directory_record_skipped",
				zap.Int("index", i),
				zap.String("server_id", r.ID),
				zap.String("reason", "empty address"),
			)
			continue
		}
		servers = append(servers, domain.ServerDescriptor{
			ID:      r.ID,
			Country: strings.TrimSpace(r.Country),
			Address: strings.TrimSpace(r.Address),
		})
	}

	f.Logger.Info("directory_fetched",
		zap.String("url", f.URL),
		zap.Int("records", len(recs)),
		zap.Int("servers", len(servers)),
	)
	return servers, nil
}

func (f *HTTPFetcher) fail(err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFetchFailure, f.URL, err)
}

type record struct {
	ID      string
	Country string
	Address string
}

// wireRecord accepts ids encoded as JSON strings or numbers.
type wireRecord struct {
	ID      json.RawMessage `json:"id"`
	Country string          `json:"country"`
	Address string          `json:"address"`
}

func (w wireRecord) toRecord(fallbackID string) (record, error) {
	id := fallbackID
	if raw := bytes.TrimSpace(w.ID); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			id = s
		} else {
			var n json.Number
			if err := json.Unmarshal(raw, &n); err != nil {
				return record{}, fmt.Errorf("id %s is neither string nor number", raw)
			}
			id = n.String()
		}
	}
	return record{ID: id, Country: w.Country, Address: w.Address}, nil
}

// decode accepts either an array of records or an object keyed by server id.
// Object form keeps document order.
func decode(body []byte) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("expected array or object, got %v", tok)
	}

	var out []record
	switch delim {
	case '[':
		for i := 0; dec.More(); i++ {
			var w wireRecord
			if err := dec.Decode(&w); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			r, err := w.toRecord("")
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			out = append(out, r)
		}
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)
			var w wireRecord
			if err := dec.Decode(&w); err != nil {
				return nil, fmt.Errorf("record %q: %w", key, err)
			}
			r, err := w.toRecord(key)
			if err != nil {
				return nil, fmt.Errorf("record %q: %w", key, err)
			}
			out = append(out, r)
		}
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after payload")
	}
	return out, nil
}
