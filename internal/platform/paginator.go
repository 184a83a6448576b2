package platform

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/rosterlab/rostersync/internal/transport"
	"github.com/rosterlab/rostersync/pkg/logging"
)

// Page is one page of a paginated listing. Callers must check StatusCode (or
// Err) per page: on the first error response the walk yields that single page
// and terminates.
type Page struct {
	Number     int
	Total      int
	StatusCode int
	Body       []byte
	Err        error
}

// OK reports whether the page carries a usable payload.
func (p Page) OK() bool {
	return p.Err == nil && p.StatusCode >= 200 && p.StatusCode < 300
}

// Paginator walks cursor-paginated listing endpoints. The page count comes
// from the total-pages response header and the cursor advances via the page
// request header. A Paginator reuses the caller's persistent authenticated
// client so headers set once are retained across pages.
type Paginator struct {
	client *transport.Client
}

// NewPaginator creates a Paginator over an existing transport client.
func NewPaginator(client *transport.Client) *Paginator {
	return &Paginator{client: client}
}

// Walk returns a finite, non-restartable iterator over the pages of url.
// Extra headers are applied to every page request.
func (p *Paginator) Walk(ctx context.Context, url string, headers map[string]string) *PageIter {
	return &PageIter{
		paginator: p,
		ctx:       ctx,
		url:       url,
		headers:   headers,
		next:      1,
	}
}

// PageIter iterates the pages of one listing. Rebuild it to re-walk.
type PageIter struct {
	paginator *Paginator
	ctx       context.Context
	url       string
	headers   map[string]string
	next      int
	total     int
	done      bool
}

// Next yields the next page. The second return is false once the sequence is
// exhausted, either because total-pages was reached or an error page ended it.
func (it *PageIter) Next() (Page, bool) {
	if it.done {
		return Page{}, false
	}

	headers := make(map[string]string, len(it.headers)+1)
	for k, v := range it.headers {
		headers[k] = v
	}
	if it.next > 1 {
		headers["page"] = strconv.Itoa(it.next)
	}

	resp, err := it.paginator.client.Get(it.ctx, it.url, headers)
	if err != nil {
		it.done = true
		return Page{Number: it.next, Err: err}, true
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		it.done = true
		return Page{Number: it.next, StatusCode: resp.StatusCode, Err: readErr}, true
	}

	page := Page{Number: it.next, StatusCode: resp.StatusCode, Body: body}

	if resp.StatusCode != http.StatusOK {
		it.done = true
		return page, true
	}

	if it.next == 1 {
		total, err := strconv.Atoi(resp.Header.Get("total-pages"))
		if err != nil || total < 1 {
			// No page count means a single-page response.
			total = 1
		}
		it.total = total
	}
	page.Total = it.total

	logging.FromContext(it.ctx).Debug().
		Str("url", it.url).
		Int("page", it.next).
		Int("total_pages", it.total).
		Msg("Read listing page")

	it.next++
	if it.next > it.total {
		it.done = true
	}
	return page, true
}
