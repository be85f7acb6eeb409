package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gastos/internal/core"
	"gastos/internal/period"
)

func sample() []core.Expense {
	return []core.Expense{
		{ID: "1", Fecha: core.NewDate(2025, 2, 3), Descripcion: "Regalo", Cantidad: 40, Persona: "Ana", PartidaEspecial: true},
		{ID: "2", Fecha: core.NewDate(2025, 1, 20), Descripcion: "Pan", Cantidad: 2.5, Persona: "Bob"},
		{ID: "3", Fecha: core.NewDate(2025, 1, 5), Descripcion: "Leche", Cantidad: 1.2},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sample())
	require.Equal(t, []any{"03/02/25", "Regalo", 40.0, "Ana", "Sí"}, rows[0])
	require.Equal(t, []any{"05/01/25", "Leche", 1.2, "", "No"}, rows[2])
}

func TestFilename(t *testing.T) {
	require.Equal(t, "gastos-familia-completo.xlsx", Filename(nil, period.DefaultLocale))
	m := period.Month{Year: 2025, Month: time.January}
	require.Equal(t, "gastos-enero-2025.xlsx", Filename(&m, period.DefaultLocale))
}

func readBack(t *testing.T, content []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestWorkbookMonthAndComplementCoverEverything(t *testing.T) {
	all := sample()
	jan := period.Month{Year: 2025, Month: time.January}
	feb := period.Month{Year: 2025, Month: time.February}

	full, err := Workbook(all, nil, period.DefaultLocale)
	require.NoError(t, err)
	require.Equal(t, FullFilename, full.Name)
	require.Equal(t, 3, full.Rows)

	janFile, err := Workbook(all, &jan, period.DefaultLocale)
	require.NoError(t, err)
	febFile, err := Workbook(all, &feb, period.DefaultLocale)
	require.NoError(t, err)
	require.Equal(t, full.Rows, janFile.Rows+febFile.Rows)

	rows := readBack(t, janFile.Content)
	require.Equal(t, Header, rows[0])
	require.Len(t, rows, 3)
	require.Equal(t, "20/01/25", rows[1][0])
	require.Equal(t, "Pan", rows[1][1])
	require.Equal(t, "No", rows[1][4])
}
