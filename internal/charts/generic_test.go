package charts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{name: "integers", values: []string{"1", "2", "30"}, want: TypeNumeric},
		{name: "decimals with comma", values: []string{"1,5", "2,7"}, want: TypeNumeric},
		{name: "numeric with missing", values: []string{"1", "", "3"}, want: TypeNumeric},
		{name: "dates dayfirst", values: []string{"01/02/2024", "15/03/2024"}, want: TypeDate},
		{name: "dates iso", values: []string{"2024-02-01", "2024-03-15"}, want: TypeDate},
		{name: "same day collapses to categorical", values: []string{"2024-01-01", "2024-01-01"}, want: TypeCategorical},
		{name: "free text", values: []string{"ARMA DE FOGO", "ARMA BRANCA"}, want: TypeCategorical},
		{name: "mixed", values: []string{"1", "x"}, want: TypeCategorical},
		{name: "number before dates", values: []string{"5", "01/02/2024", "02/03/2024"}, want: TypeCategorical},
		{name: "number after dates", values: []string{"01/02/2024", "02/03/2024", "5"}, want: TypeCategorical},
		{name: "all missing", values: []string{"", ""}, want: TypeCategorical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, InferColumnType(tt.values))
		})
	}
}

func genericTable() *Table {
	tbl := &Table{Columns: []string{"BAIRRO", "TURNO", "VALOR"}}
	add := func(bairro, turno, valor string, times int) {
		for i := 0; i < times; i++ {
			tbl.Rows = append(tbl.Rows, []string{bairro, turno, valor})
		}
	}
	add("Centro", "Noite", "10", 5)
	add("Centro", "Manhã", "20", 2)
	add("Aldeota", "Noite", "15", 3)
	add("Meireles", "Tarde", "5", 1)
	return tbl
}

func TestBuildGenericChartUnsegmented(t *testing.T) {
	t.Parallel()

	got, err := BuildGenericChart(genericTable(), "BAIRRO", "", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Centro", "Aldeota", "Meireles"}, got.Labels)
	require.Len(t, got.Datasets, 1)
	assert.Equal(t, []float64{7, 3, 1}, got.Datasets[0].Data)
}

func TestBuildGenericChartSegmented(t *testing.T) {
	t.Parallel()

	got, err := BuildGenericChart(genericTable(), "BAIRRO", "TURNO", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Centro", "Aldeota", "Meireles"}, got.Labels)
	require.Len(t, got.Datasets, 3)

	byLabel := make(map[string][]float64)
	for _, ds := range got.Datasets {
		byLabel[ds.Label] = ds.Data
	}
	assert.Equal(t, []float64{5, 3, 0}, byLabel["Noite"])
	assert.Equal(t, []float64{2, 0, 0}, byLabel["Manhã"])
	assert.Equal(t, []float64{0, 0, 1}, byLabel["Tarde"])
}

func TestBuildGenericChartFilters(t *testing.T) {
	t.Parallel()

	got, err := BuildGenericChart(genericTable(), "BAIRRO", "", map[string][]string{"TURNO": {"Noite"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Centro", "Aldeota"}, got.Labels)
	assert.Equal(t, []float64{5, 3}, got.Datasets[0].Data)
}

func TestBuildGenericChartTruncation(t *testing.T) {
	t.Parallel()

	tbl := &Table{Columns: []string{"CAT", "SEG"}}
	for c := 0; c < 30; c++ {
		for s := 0; s < 10; s++ {
			// Category weight decreases with c, segment weight with s.
			for i := 0; i < (30-c)+(10-s); i++ {
				tbl.Rows = append(tbl.Rows, []string{fmt.Sprintf("c%02d", c), fmt.Sprintf("s%02d", s)})
			}
		}
	}

	unseg, err := BuildGenericChart(tbl, "CAT", "", nil)
	require.NoError(t, err)
	assert.Len(t, unseg.Labels, 20, "unsegmented truncates to top 20")

	seg, err := BuildGenericChart(tbl, "CAT", "SEG", nil)
	require.NoError(t, err)
	assert.Len(t, seg.Labels, 15, "segmented truncates to top 15 categories")
	assert.Len(t, seg.Datasets, 7, "and top 7 segments")
}

func TestBuildGenericChartNumericAxisSorted(t *testing.T) {
	t.Parallel()

	got, err := BuildGenericChart(genericTable(), "VALOR", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "10", "15", "20"}, got.Labels, "numeric axis reads in value order")
}

func TestBuildGenericChartErrors(t *testing.T) {
	t.Parallel()

	tbl := genericTable()

	_, err := BuildGenericChart(tbl, "NOPE", "", nil)
	assert.Error(t, err)

	_, err = BuildGenericChart(tbl, "BAIRRO", "NOPE", nil)
	assert.Error(t, err)

	_, err = BuildGenericChart(tbl, "BAIRRO", "", map[string][]string{"NOPE": {"x"}})
	assert.Error(t, err)
}

func TestBuildGenericChartEmptyResult(t *testing.T) {
	t.Parallel()

	got, err := BuildGenericChart(genericTable(), "BAIRRO", "", map[string][]string{"TURNO": {"Madrugada"}})
	require.NoError(t, err)
	assert.Empty(t, got.Labels)
	assert.Empty(t, got.Datasets)
}
