package starfish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultPollInterval is how often AsyncQuery.Wait checks for completion.
const DefaultPollInterval = 3 * time.Second

// DefaultQueryFormat is the column list requested when QueryOptions.Format is empty.
const DefaultQueryFormat = "parent_path fn type size blck ct mt at uid gid mode"

// QueryOptions are the parameters of an asynchronous query.
type QueryOptions struct {
	Query           string
	VolumesAndPaths string
	GroupBy         string
	Format          string
	SortBy          string // defaults to GroupBy
	Limit           int
	ForceTagInherit bool
	OutputFormat    string
	Delimiter       string
	EscapePaths     bool
	PrintHeaders    *bool // nil means true
	SizeUnit        string
	HumanizeNested  bool
	MountAgent      string // "" is sent as None
	// SubmitOnce sends the submit without an idempotency key, so a server
	// fault or dropped connection on it is reported instead of retried.
	SubmitOnce bool
}

// params returns the query parameters in the order the server documents them.
func (q QueryOptions) params() []Param {
	format := q.Format
	if format == "" {
		format = DefaultQueryFormat
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = q.GroupBy
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100000
	}
	outputFormat := q.OutputFormat
	if outputFormat == "" {
		outputFormat = "json"
	}
	delimiter := q.Delimiter
	if delimiter == "" {
		delimiter = ","
	}
	printHeaders := true
	if q.PrintHeaders != nil {
		printHeaders = *q.PrintHeaders
	}
	sizeUnit := q.SizeUnit
	if sizeUnit == "" {
		sizeUnit = "B"
	}
	mountAgent := q.MountAgent
	if mountAgent == "" {
		mountAgent = "None"
	}

	return []Param{
		{"volumes_and_paths", q.VolumesAndPaths},
		{"queries", q.Query},
		{"format", format},
		{"sort_by", sortBy},
		{"group_by", q.GroupBy},
		{"limit", strconv.Itoa(limit)},
		{"force_tag_inherit", strconv.FormatBool(q.ForceTagInherit)},
		{"output_format", outputFormat},
		{"delimiter", delimiter},
		{"escape_paths", strconv.FormatBool(q.EscapePaths)},
		{"print_headers", strconv.FormatBool(printHeaders)},
		{"size_unit", sizeUnit},
		{"humanize_nested", strconv.FormatBool(q.HumanizeNested)},
		{"mount_agent", mountAgent},
	}
}

// SubmitQuery posts a new asynchronous query.
//
// Unless q.SubmitOnce is set, the submit carries an Idempotency-Key header and
// a server fault on it is retried like a read. Starfish is not known to
// deduplicate on that header, so a retry after a fault the server actually
// survived can start the same query twice.
func (c *Client) SubmitQuery(ctx context.Context, q QueryOptions) (*AsyncQuery, error) {
	if q.VolumesAndPaths == "" {
		return nil, fmt.Errorf("volumes and paths are required")
	}

	req := Request{
		Method: http.MethodPost,
		Path:   "async/query/",
		Query:  q.params(),
	}
	if !q.SubmitOnce {
		req.IdempotencyKey = NewIdempotencyKey()
	}

	c.logger.Info().Str("volumes_and_paths", q.VolumesAndPaths).Msg("Submitting new API query")
	resp, err := c.SendRaw(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit query: %w", err)
	}

	id := gjson.GetBytes(resp.Body, "query_id")
	if !id.Exists() || id.String() == "" {
		return nil, &Error{
			Kind:       KindServerFault,
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			Message:    "query response carries no query_id",
			Body:       resp.Body,
		}
	}

	c.logger.Debug().Str("query_id", id.String()).Msg("Query submitted")
	return &AsyncQuery{client: c, id: id.String()}, nil
}

// AsyncQuery is a query submitted to the server whose result is prepared in
// the background.
type AsyncQuery struct {
	client *Client
	id     string

	mu     sync.Mutex
	result json.RawMessage
}

// NewAsyncQuery attaches to an already submitted query by ID.
func (c *Client) NewAsyncQuery(id string) *AsyncQuery {
	return &AsyncQuery{client: c, id: id}
}

// ID returns the ID of the submitted query
func (q *AsyncQuery) ID() string {
	return q.id
}

// Ready checks whether the result can be fetched. A status without a
// boolean is_done is a server fault.
func (q *AsyncQuery) Ready(ctx context.Context) (bool, error) {
	req := Get("async/query/" + q.id)
	resp, err := q.client.SendRaw(ctx, req)
	if err != nil {
		return false, fmt.Errorf("failed to poll query %s: %w", q.id, err)
	}

	done := gjson.GetBytes(resp.Body, "is_done")
	if done.Type != gjson.True && done.Type != gjson.False {
		return false, &Error{
			Kind:       KindServerFault,
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			Message:    "query status carries no is_done flag",
			Body:       resp.Body,
		}
	}
	return done.Bool(), nil
}

// Result fetches the result without checking Ready first. Results are cached.
func (q *AsyncQuery) Result(ctx context.Context) (json.RawMessage, error) {
	if cached := q.cached(); cached != nil {
		return cached, nil
	}

	var out json.RawMessage
	if err := q.client.Send(ctx, Get("async/query_result/"+q.id), &out); err != nil {
		return nil, fmt.Errorf("failed to fetch result of query %s: %w", q.id, err)
	}

	q.mu.Lock()
	q.result = out
	q.mu.Unlock()
	return out, nil
}

// Wait polls every interval until the query is done and returns its result.
// A non-positive interval means DefaultPollInterval.
func (q *AsyncQuery) Wait(ctx context.Context, interval time.Duration) (json.RawMessage, error) {
	if cached := q.cached(); cached != nil {
		q.client.logger.Debug().Str("query_id", q.id).Msg("Query result is already cached")
		return cached, nil
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := q.Ready(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			q.client.logger.Debug().Str("query_id", q.id).Msg("Query is ready")
			return q.Result(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, classifyFault(ctx, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Rows decodes a JSON query result into one map per row.
func Rows(result json.RawMessage) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(result, &rows); err != nil {
		return nil, fmt.Errorf("query result is not a list of rows: %w", err)
	}
	return rows, nil
}

func (q *AsyncQuery) cached() json.RawMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result
}
