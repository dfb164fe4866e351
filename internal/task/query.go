package task

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Listing defaults.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sort options accepted through sortOption.
const (
	SortByDate     = "date"
	SortByPriority = "priority"
)

// Fields accepted through orderBy.
const (
	OrderByCreatedAt = "createdAt"
	OrderByUpdatedAt = "updatedAt"
	OrderByTitle     = "title"
	OrderByDueDate   = "dueDate"
	OrderByPriority  = "priority"
)

// ListOptions controls listing. Page is zero-based.
type ListOptions struct {
	Page       int
	Limit      int
	Search     string
	OrderBy    string
	Order      string
	SortOption string
}

// Getter is satisfied by url.Values.
type Getter interface {
	Get(key string) string
}

// ParseListOptions reads page, limit, search, orderBy, order and sortOption.
// Absent, non-numeric or out-of-range page/limit values fall back to 0/10;
// limit is capped at MaxLimit. Unknown orderBy/sortOption values fall back
// to the default ordering.
func ParseListOptions(q Getter) ListOptions {
	opts := ListOptions{
		Page:       atoiOr(q.Get("page"), 0),
		Limit:      atoiOr(q.Get("limit"), DefaultLimit),
		Search:     q.Get("search"),
		OrderBy:    q.Get("orderBy"),
		Order:      strings.ToLower(q.Get("order")),
		SortOption: strings.ToLower(q.Get("sortOption")),
	}
	return opts.normalized()
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 0 {
		o.Page = 0
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if !validOrderBy(o.OrderBy) {
		o.OrderBy = ""
	}
	if o.Order != "asc" {
		o.Order = "desc"
	}
	if o.SortOption != SortByPriority {
		o.SortOption = SortByDate
	}
	return o
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func validOrderBy(f string) bool {
	switch f {
	case OrderByCreatedAt, OrderByUpdatedAt, OrderByTitle, OrderByDueDate, OrderByPriority:
		return true
	}
	return false
}

// Filter returns the tasks whose title or description contains search,
// case-insensitively. A blank search returns tasks unchanged.
func Filter(tasks []*Task, search string) []*Task {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return tasks
	}
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), term) ||
			strings.Contains(strings.ToLower(t.Description), term) {
			out = append(out, t)
		}
	}
	return out
}

// Sort orders tasks in place: incomplete before completed, then by the
// secondary key selected by opts, then by ID. The ID tie-break makes the
// order total, so identical calls over unchanged data agree.
func Sort(tasks []*Task, opts ListOptions) {
	opts = opts.normalized()
	secondary := secondaryKey(opts)
	slices.SortStableFunc(tasks, func(a, b *Task) int {
		if a.Completed != b.Completed {
			if !a.Completed {
				return -1
			}
			return 1
		}
		if c := secondary(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func secondaryKey(opts ListOptions) func(a, b *Task) int {
	if opts.OrderBy != "" {
		dir := -1
		if opts.Order == "asc" {
			dir = 1
		}
		return func(a, b *Task) int { return compareField(a, b, opts.OrderBy, dir) }
	}
	if opts.SortOption == SortByPriority {
		return func(a, b *Task) int {
			if c := cmp.Compare(b.Priority.Weight(), a.Priority.Weight()); c != 0 {
				return c
			}
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	}
	return func(a, b *Task) int { return b.CreatedAt.Compare(a.CreatedAt) }
}

// compareField compares one field with direction dir (1 asc, -1 desc).
// Tasks without a due date sort after those with one in both directions.
func compareField(a, b *Task, field string, dir int) int {
	switch field {
	case OrderByUpdatedAt:
		return dir * a.UpdatedAt.Compare(b.UpdatedAt)
	case OrderByTitle:
		if c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return dir * c
		}
		return dir * cmp.Compare(a.Title, b.Title)
	case OrderByDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return dir * a.DueDate.Compare(*b.DueDate)
	case OrderByPriority:
		return dir * cmp.Compare(a.Priority.Weight(), b.Priority.Weight())
	default:
		return dir * a.CreatedAt.Compare(b.CreatedAt)
	}
}

// Paginate returns tasks[page*limit : page*limit+limit], clamped. A page past
// the end yields an empty, non-nil slice.
func Paginate(tasks []*Task, page, limit int) []*Task {
	if page < 0 || limit <= 0 || page > len(tasks)/limit {
		return []*Task{}
	}
	start := page * limit
	if start >= len(tasks) {
		return []*Task{}
	}
	end := min(start+limit, len(tasks))
	return tasks[start:end]
}

// Query runs the full listing pipeline over one user's tasks: filter, sort,
// paginate. The input slice is not modified.
func Query(tasks []*Task, opts ListOptions) *Page {
	opts = opts.normalized()

	filtered := Filter(tasks, opts.Search)
	sorted := slices.Clone(filtered)
	Sort(sorted, opts)

	return &Page{
		Items: Paginate(sorted, opts.Page, opts.Limit),
		Total: len(sorted),
		Page:  opts.Page,
		Limit: opts.Limit,
	}
}
