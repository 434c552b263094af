package filter

import (
	"testing"

	"github.com/htol/techlib/book"
	"github.com/stretchr/testify/assert"
)

func TestBuildFacets(t *testing.T) {
	f := BuildFacets(catalog())

	assert.Equal(t, []string{"programming", "Базы данных", "Программирование"}, f.Categories)
	assert.Equal(t, []string{"Donovan", "Martin Kleppmann", "Robert Martin", "Алексей Петров", "Мария Сидорова"}, f.Authors)
	assert.Equal(t, []string{"Frontend", "JavaScript", "PostgreSQL", "SQL", "databases", "go"}, f.Tags)
	assert.Equal(t, 2015, f.MinYear)
	assert.Equal(t, 2025, f.MaxYear)
}

func TestBuildFacetsEmpty(t *testing.T) {
	f := BuildFacets(nil)
	assert.Empty(t, f.Categories)
	assert.Zero(t, f.MinYear)
}

func TestComputeStats(t *testing.T) {
	books := catalog()
	books[0].PDFURL = "https://example.com/js.pdf"
	books[2].PDFURL = "http://localhost:3001/files/pdf/1_go.pdf"
	books = append(books, book.Book{ID: "b6", Author: "Donovan", Category: "programming"})

	s := ComputeStats(books)

	assert.Equal(t, book.Stats{Total: 6, Authors: 5, Categories: 3, WithPDF: 2}, s)
}
