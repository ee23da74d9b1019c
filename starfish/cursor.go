package starfish

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"

	"github.com/tidwall/gjson"
)

// Page is one server page of a collection.
type Page[T any] struct {
	Items []T
	// NextCursor is empty on the final page.
	NextCursor string
}

// FetchPage requests a single page of req starting at cursor ("" for the first page).
func FetchPage[T any](ctx context.Context, c *Client, req Request, cursor string) (*Page[T], error) {
	r := req.WithParam(c.opts.pageSizeParam, strconv.Itoa(c.opts.pageSize))
	if cursor != "" {
		r = r.WithParam(c.opts.cursorParam, cursor)
	}

	resp, err := c.SendRaw(ctx, r)
	if err != nil {
		return nil, err
	}

	page, err := decodePage[T](resp.Body, c.opts)
	if err != nil {
		return nil, annotate(err, &req)
	}

	c.logger.Debug().
		Str("path", req.Path).
		Int("count", len(page.Items)).
		Bool("last", page.NextCursor == "").
		Msg("Retrieved page from Starfish")
	return page, nil
}

func decodePage[T any](body []byte, opts clientOptions) (*Page[T], error) {
	if !gjson.ValidBytes(body) {
		return nil, malformedPage("page body is not valid JSON", body, nil)
	}

	items := gjson.GetBytes(body, opts.itemsField)
	if !items.IsArray() {
		return nil, malformedPage(fmt.Sprintf("page body has no %q array", opts.itemsField), body, nil)
	}

	raw := items.Array()
	page := &Page[T]{Items: make([]T, 0, len(raw))}
	for i, r := range raw {
		var item T
		if err := json.Unmarshal([]byte(r.Raw), &item); err != nil {
			return nil, malformedPage(fmt.Sprintf("failed to decode page item %d", i), body, err)
		}
		page.Items = append(page.Items, item)
	}

	next := gjson.GetBytes(body, opts.nextCursorField)
	switch next.Type {
	case gjson.Null:
		// absent or null: final page
	case gjson.String:
		page.NextCursor = next.Str
	case gjson.Number:
		page.NextCursor = next.Raw
	default:
		return nil, malformedPage(fmt.Sprintf("%q is not a cursor", opts.nextCursorField), body, nil)
	}
	return page, nil
}

// Cursor walks a paginated collection one item at a time, fetching the next
// page only when the current one is used up. It is single-use: once Next
// returns false it keeps returning false. Build a new Cursor to start over.
//
//	cur := starfish.NewCursor[Volume](client, starfish.Get("storage/"))
//	for cur.Next(ctx) {
//		v := cur.Item()
//	}
//	if err := cur.Err(); err != nil {
//		...
//	}
type Cursor[T any] struct {
	client *Client
	req    Request

	page    []T
	pos     int
	item    T
	next    string
	seen    map[string]struct{}
	fetched bool
	done    bool
	err     error
}

// NewCursor returns a cursor over the collection served at req.
func NewCursor[T any](client *Client, req Request) *Cursor[T] {
	return &Cursor[T]{client: client, req: req}
}

// Paginate returns a cursor yielding raw JSON items.
func (c *Client) Paginate(req Request) *Cursor[json.RawMessage] {
	return NewCursor[json.RawMessage](c, req)
}

// Next advances to the next item, fetching a page if needed. It returns
// false at the end of the collection or on error; check Err afterwards.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	for {
		if c.done {
			return false
		}

		if c.pos < len(c.page) {
			c.item = c.page[c.pos]
			c.pos++
			return true
		}

		if c.fetched && c.next == "" {
			c.finish(nil)
			return false
		}

		if c.seen == nil {
			c.seen = make(map[string]struct{})
		}
		c.seen[c.next] = struct{}{}

		page, err := FetchPage[T](ctx, c.client, c.req, c.next)
		c.fetched = true
		if err != nil {
			c.finish(err)
			return false
		}
		// a cursor already sent means the server is cycling
		if _, repeat := c.seen[page.NextCursor]; page.NextCursor != "" && repeat {
			c.finish(annotate(malformedPage(fmt.Sprintf("next cursor %q was already visited", page.NextCursor), nil, nil), &c.req))
			return false
		}

		c.page, c.pos, c.next = page.Items, 0, page.NextCursor
	}
}

// Item returns the item Next moved to.
func (c *Cursor[T]) Item() T {
	return c.item
}

// Err returns the error that ended the sequence, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// All adapts the cursor to a range-over-func sequence. An error is yielded
// once, as the final pair, with a zero item.
func (c *Cursor[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for c.Next(ctx) {
			if !yield(c.item, nil) {
				return
			}
		}
		if c.err != nil {
			var zero T
			yield(zero, c.err)
		}
	}
}

// Collect drains the cursor. On error it returns the items read so far with it.
func (c *Cursor[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for c.Next(ctx) {
		items = append(items, c.item)
	}
	return items, c.err
}

func (c *Cursor[T]) finish(err error) {
	var zero T
	c.done = true
	c.err = err
	c.page = nil
	c.seen = nil
	c.item = zero
}
