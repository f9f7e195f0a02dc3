// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 20

// MaxPageSize caps the ?limit= query parameter.
const MaxPageSize = 100

// Params are the keyset paging inputs of a list request.
// Before and After are opaque cursors produced by BuildCursors.
type Params struct {
	Before string
	After  string
	Limit  int
}

// FromRequest reads ?before=, ?after= and ?limit= from the request.
// An invalid or missing limit falls back to PageSize.
func FromRequest(r *http.Request) Params {
	p := Params{
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
		Limit:  PageSize,
	}
	if s := query.Get(r, "limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// size returns the effective page size for p.
func (p Params) size() int {
	if p.Limit <= 0 {
		return PageSize
	}
	if p.Limit > MaxPageSize {
		return MaxPageSize
	}
	return p.Limit
}

// LimitPlusOne returns the page size + 1 as int64 for look-ahead pagination
// (fetch one extra document to detect another page).
func (p Params) LimitPlusOne() int64 { return int64(p.size() + 1) }

// Page is one page of a list as returned to API clients.
type Page[T any] struct {
	Items []T    `json:"items"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// Result holds the output of TrimPage for keyset pagination.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims a fetched slice for keyset pagination.
// Call this after fetching LimitPlusOne rows. It modifies the slice in place
// and returns pagination indicators.
//
// When going backwards (Before != ""):
//   - If len > size, trim the first element (an earlier page exists)
//   - HasNext is always true (we came from somewhere)
//
// When going forwards or on the first page:
//   - If len > size, trim to size (a next page exists)
//   - HasPrev is true only if After != ""
func TrimPage[T any](rows *[]T, p Params) Result {
	size := p.size()
	orig := len(*rows)
	var hasPrev, hasNext bool

	if p.Before != "" {
		if orig > size {
			*rows = (*rows)[1:]
			hasPrev = true
		}
		hasNext = true
	} else {
		if orig > size {
			*rows = (*rows)[:size]
			hasNext = true
		}
		hasPrev = p.After != ""
	}

	return Result{HasPrev: hasPrev, HasNext: hasNext}
}

// Direction indicates the pagination direction.
type Direction int

const (
	Forward  Direction = iota // natural order of the list
	Backward                  // reversed order, results reversed after fetch
)

// Order is the natural sort order of a list.
type Order int

const (
	Ascending  Order = 1  // e.g. names A..Z
	Descending Order = -1 // e.g. newest first
)

// KeysetConfig holds the result of configuring keyset pagination.
type KeysetConfig struct {
	Direction Direction
	SortOrder int // 1 for ascending, -1 for descending
	Cursor    *wafflemongo.Cursor
}

// ConfigureKeyset determines pagination direction and decodes the cursor
// for a list whose natural order is o.
func ConfigureKeyset(p Params, o Order) KeysetConfig {
	cfg := KeysetConfig{
		Direction: Forward,
		SortOrder: int(o),
	}

	if p.Before != "" {
		cfg.Direction = Backward
		cfg.SortOrder = -int(o)
		if c, ok := wafflemongo.DecodeCursor(p.Before); ok {
			cfg.Cursor = &c
		}
	} else if p.After != "" {
		if c, ok := wafflemongo.DecodeCursor(p.After); ok {
			cfg.Cursor = &c
		}
	}

	return cfg
}

// ApplyToFind configures FindOptions with sort and limit for keyset pagination.
// An empty sortField pages on _id alone.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string, p Params) {
	sort := bson.D{}
	if sortField != "" {
		sort = append(sort, bson.E{Key: sortField, Value: cfg.SortOrder})
	}
	sort = append(sort, bson.E{Key: "_id", Value: cfg.SortOrder})
	find.SetSort(sort).SetLimit(p.LimitPlusOne())
}

// KeysetWindow returns the cursor condition for the query filter.
// Returns nil if no cursor is set.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	dir := "gt"
	if cfg.SortOrder < 0 {
		dir = "lt"
	}
	if sortField == "" {
		return bson.M{"_id": bson.M{"$" + dir: cfg.Cursor.ID}}
	}
	return wafflemongo.KeysetWindow(sortField, dir, cfg.Cursor.CI, cfg.Cursor.ID)
}

// Finish reverses backward pages into natural order, trims the look-ahead
// row and builds the cursors of the returned page.
func Finish[T any](rows []T, p Params, cfg KeysetConfig, keyFn func(T) string, idFn func(T) primitive.ObjectID) Page[T] {
	if cfg.Direction == Backward {
		Reverse(rows)
	}
	res := TrimPage(&rows, p)
	if rows == nil {
		rows = []T{}
	}
	page := Page[T]{Items: rows}
	prev, next := BuildCursors(rows, keyFn, idFn)
	if res.HasPrev {
		page.Prev = prev
	}
	if res.HasNext {
		page.Next = next
	}
	return page
}

// Reverse reverses a slice in place. Use this after fetching results
// when paging backwards to restore the correct display order.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors creates prev/next cursor strings from the first and last elements.
// keyFn extracts the sort key from an element; nil uses the hex id.
// idFn extracts the ObjectID from an element.
func BuildCursors[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	key := func(v T) string { return idFn(v).Hex() }
	if keyFn != nil {
		key = keyFn
	}
	first := rows[0]
	last := rows[len(rows)-1]
	prev = wafflemongo.EncodeCursor(key(first), idFn(first))
	next = wafflemongo.EncodeCursor(key(last), idFn(last))
	return prev, next
}
