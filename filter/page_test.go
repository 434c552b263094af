package filter

import (
	"fmt"
	"testing"

	"github.com/htol/techlib/book"
	"github.com/stretchr/testify/assert"
)

func numbered(n int) []book.Book {
	books := make([]book.Book, n)
	for i := range books {
		books[i] = book.Book{ID: fmt.Sprintf("b%d", i+1)}
	}
	return books
}

func TestPaginate(t *testing.T) {
	p := Paginate(numbered(30), 2, 0)

	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 30, p.Total)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, []string{"b13", "b14", "b15", "b16", "b17", "b18", "b19", "b20", "b21", "b22", "b23", "b24"}, ids(p.Items))
	assert.Equal(t, []int{1, 2, 3}, p.Window)
}

func TestPaginateClampsPage(t *testing.T) {
	p := Paginate(numbered(30), 99, 12)
	assert.Equal(t, 3, p.Page)
	assert.Len(t, p.Items, 6)

	p = Paginate(numbered(30), -1, 12)
	assert.Equal(t, 1, p.Page)
}

func TestPaginateCapsPerPage(t *testing.T) {
	p := Paginate(numbered(250), 1, 1000)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Len(t, p.Items, MaxPerPage)
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate(nil, 3, 12)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.TotalPages)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Window)
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{1, 3, []int{1, 2, 3}},
		{2, 10, []int{1, 2, 3, 4, 5}},
		{3, 10, []int{1, 2, 3, 4, 5}},
		{5, 10, []int{3, 4, 5, 6, 7}},
		{8, 10, []int{6, 7, 8, 9, 10}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{1, 0, []int{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageWindow(tt.current, tt.total), "current=%d total=%d", tt.current, tt.total)
	}
}
