package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PadsShortRows(t *testing.T) {
	d, err := New([]string{"Адрес", "Имя"}, [][]string{
		{"Москва"},
		{"Тверь", "Иван"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Москва", ""}, d.Rows[0])
	assert.Equal(t, []string{"Тверь", "Иван"}, d.Rows[1])
	assert.Equal(t, 2, d.Len())
}

func TestNew_KeepsCellsPastLastNamedColumn(t *testing.T) {
	d, err := New([]string{"Адрес", "Имя", ""}, [][]string{
		{"Москва"},
		{"Тверь", "Иван", "заметка", "", "ещё"},
		{"Псков", "Олег", "", "", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Адрес", "Имя", "", "", ""}, d.Header)
	assert.Equal(t, []string{"Москва", "", "", "", ""}, d.Rows[0])
	assert.Equal(t, []string{"Тверь", "Иван", "заметка", "", "ещё"}, d.Rows[1])
	assert.Equal(t, []string{"Псков", "Олег", "", "", ""}, d.Rows[2])
}

func TestEnsureColumn_AppendsAfterUnnamedColumns(t *testing.T) {
	d, err := New([]string{"Адрес", "Имя"}, [][]string{{"Москва", "Иван", "заметка"}})
	require.NoError(t, err)

	require.True(t, d.EnsureColumn("Координаты"))
	require.NoError(t, d.Set(0, "Координаты", "55.7558, 37.6173"))
	assert.Equal(t, []string{"Адрес", "Имя", "", "Координаты"}, d.Header)
	assert.Equal(t, []string{"Москва", "Иван", "заметка", "55.7558, 37.6173"}, d.Rows[0])
}

func TestNew_TrimsHeaderNames(t *testing.T) {
	d, err := New([]string{" Адрес ", "Имя", "", ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Адрес", "Имя"}, d.Header)
	assert.True(t, d.HasColumn("Адрес"))
}

func TestNew_RejectsDuplicateColumns(t *testing.T) {
	_, err := New([]string{"Адрес", "Имя", "Адрес"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column")
}

func TestNew_RejectsEmptyHeader(t *testing.T) {
	_, err := New([]string{"", " "}, [][]string{{"a", "b"}})
	require.Error(t, err)
}

func TestNew_AllowsUnnamedMiddleColumns(t *testing.T) {
	d, err := New([]string{"a", "", "", "b"}, [][]string{{"1", "2", "3", "4"}})
	require.NoError(t, err)
	assert.Equal(t, "4", d.Get(0, "b"))
}

func TestEnsureColumn_AddsEmptyCells(t *testing.T) {
	d, err := New([]string{"Адрес"}, [][]string{{"Москва"}, {"Тверь"}})
	require.NoError(t, err)

	added := d.EnsureColumn("Координаты")
	assert.True(t, added)
	assert.Equal(t, []string{"Адрес", "Координаты"}, d.Header)
	for i := range d.Rows {
		assert.Len(t, d.Rows[i], 2)
		assert.Equal(t, "", d.Get(i, "Координаты"))
	}
}

func TestEnsureColumn_Idempotent(t *testing.T) {
	d, err := New([]string{"Адрес", "Координаты"}, [][]string{
		{"Москва", "55.7558, 37.6173"},
		{"Тверь", ""},
	})
	require.NoError(t, err)

	assert.False(t, d.EnsureColumn("Координаты"))
	assert.False(t, d.EnsureColumn("Координаты"))
	assert.Equal(t, []string{"Адрес", "Координаты"}, d.Header)
	assert.Equal(t, "55.7558, 37.6173", d.Get(0, "Координаты"))
	assert.Equal(t, "", d.Get(1, "Координаты"))
}

func TestGetSet(t *testing.T) {
	d, err := New([]string{"Адрес"}, [][]string{{"Москва"}})
	require.NoError(t, err)
	d.EnsureColumn("Координаты")

	require.NoError(t, d.Set(0, "Координаты", "55.7558, 37.6173"))
	assert.Equal(t, "55.7558, 37.6173", d.Get(0, "Координаты"))

	assert.Equal(t, "", d.Get(5, "Адрес"), "out of range row")
	assert.Equal(t, "", d.Get(-1, "Адрес"))
	assert.Equal(t, "", d.Get(0, "missing"), "unknown column")

	assert.Error(t, d.Set(0, "missing", "x"))
	assert.Error(t, d.Set(1, "Адрес", "x"))
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("/tmp/data.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = FormatFromPath("data.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatFromPath("data.xls")
	assert.Error(t, err)
}
