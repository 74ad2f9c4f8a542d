package server

import (
	"net/http"

	"github.com/user/booknotes/internal/model"
)

// sortCookie carries a browser's chosen listing order.
const sortCookie = "booknotes_sort"

// resolveSort picks the order for one request: ?sort= first, then the
// cookie, then insertion order. A bad query value is an error; a bad cookie
// is ignored.
func resolveSort(r *http.Request) (model.SortOrder, error) {
	if q := r.URL.Query(); q.Has("sort") {
		return model.ParseSortOrder(q.Get("sort"))
	}
	if c, err := r.Cookie(sortCookie); err == nil {
		if order, err := model.ParseSortOrder(c.Value); err == nil {
			return order, nil
		}
	}
	return model.ByID, nil
}

func setSortCookie(w http.ResponseWriter, order model.SortOrder) {
	http.SetCookie(w, &http.Cookie{
		Name:     sortCookie,
		Value:    order.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
