package filter

import (
	"testing"

	"github.com/htol/techlib/book"
	"github.com/stretchr/testify/assert"
)

func catalog() []book.Book {
	return []book.Book{
		{ID: "b1", Title: "Современный JavaScript 2025", Author: "Алексей Петров", Description: "Полное руководство", Year: 2025, Category: "Программирование", Tags: []string{"JavaScript", "Frontend"}},
		{ID: "b2", Title: "PostgreSQL для разработчиков", Author: "Мария Сидорова", Year: 2024, Category: "Базы данных", Tags: []string{"PostgreSQL", "SQL"}},
		{ID: "b3", Title: "The Go Programming Language", Author: "Donovan", Description: "Concurrency and interfaces", Year: 2015, Category: "programming", Tags: []string{"go"}},
		{ID: "b4", Title: "Clean Architecture", Author: "Robert Martin", Year: 2022, Category: "", Tags: nil},
		{ID: "b5", Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Year: 2021, Category: "programming", Tags: []string{"databases", "SQL"}},
	}
}

func ids(books []book.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"no filters", Filters{}, []string{"b1", "b2", "b3", "b4", "b5"}},
		{"search title case insensitive", Filters{Search: "postgresql"}, []string{"b2"}},
		{"search cyrillic author", Filters{Search: "петров"}, []string{"b1"}},
		{"search description", Filters{Search: "CONCURRENCY"}, []string{"b3"}},
		{"search blank is ignored", Filters{Search: "   "}, []string{"b1", "b2", "b3", "b4", "b5"}},
		{"search skips tags by default", Filters{Search: "frontend"}, []string{}},
		{"search tags when asked", Filters{Search: "frontend", SearchTags: true}, []string{"b1"}},
		{"search author substring", Filters{Search: "martin"}, []string{"b4", "b5"}},
		{"categories", Filters{Categories: []string{"programming"}}, []string{"b3", "b5"}},
		{"empty category never matches", Filters{Categories: []string{""}}, []string{}},
		{"authors exact", Filters{Authors: []string{"Donovan", "Martin"}}, []string{"b3"}},
		{"any tag", Filters{Tags: []string{"SQL", "go"}}, []string{"b2", "b3", "b5"}},
		{"year exact", Filters{Year: "2024"}, []string{"b2"}},
		{"year range", Filters{Year: "2023-2021"}, []string{"b4", "b5"}},
		{"year range reversed", Filters{Year: "2021-2023"}, []string{"b4", "b5"}},
		{"year old", Filters{Year: "old"}, []string{"b3"}},
		{"year all", Filters{Year: "all"}, []string{"b1", "b2", "b3", "b4", "b5"}},
		{"year unknown bucket", Filters{Year: "recent"}, []string{"b1", "b2", "b3", "b4", "b5"}},
		{"year from", Filters{YearFrom: "2022"}, []string{"b1", "b2", "b4"}},
		{"year to", Filters{YearTo: "2021"}, []string{"b3", "b5"}},
		{"year from invalid ignored", Filters{YearFrom: "abc", YearTo: "2015"}, []string{"b3"}},
		{"bucket and range intersect", Filters{Year: "2023-2021", YearFrom: "2022"}, []string{"b4"}},
		{"criteria are anded", Filters{Categories: []string{"programming"}, Tags: []string{"SQL"}, Search: "data"}, []string{"b5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(catalog(), tt.f)))
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	books := catalog()
	out := Apply(books, Filters{})
	out[0].Title = "changed"
	assert.Equal(t, "Современный JavaScript 2025", books[0].Title)
}

func TestMatch(t *testing.T) {
	b := catalog()[2]
	assert.True(t, Match(&b, Filters{Search: "go", Year: "2015"}))
	assert.False(t, Match(&b, Filters{Search: "go", Year: "2016"}))
}

func TestIsZero(t *testing.T) {
	assert.True(t, Filters{Year: "all", Search: " "}.IsZero())
	assert.False(t, Filters{YearTo: "2020"}.IsZero())
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"go", "sql", "rust"}, ParseList(" go, sql,,go ", "rust,sql"))
	assert.Nil(t, ParseList("", " , "))
}
