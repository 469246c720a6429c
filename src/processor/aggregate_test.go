package processor

import (
	"encoding/json"
	"testing"

	"BikeDashboard/src/schema"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateMeans(t *testing.T) {
	ds := Dataset{Granularity: Daily, Frame: dataframe.New(
		series.New([]string{"A", "A", "A", "B"}, series.String, "group"),
		series.New([]int{10, 20, 30, 5}, series.Int, "value"),
	)}

	agg, err := Aggregate(ds, "value", "group")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Len())

	a, ok := agg.Mean("A")
	require.True(t, ok)
	assert.Equal(t, 20.0, a)

	b, ok := agg.Mean("B")
	require.True(t, ok)
	assert.Equal(t, 5.0, b)

	_, ok = agg.Mean("C")
	assert.False(t, ok)
	assert.Equal(t, 3, agg.Counts[GroupKey{First: "A"}])
}

func TestAggregateUnderscoreKeys(t *testing.T) {
	ds := Dataset{Frame: dataframe.New(
		series.New([]string{"a_b", "a"}, series.String, "k1"),
		series.New([]string{"c", "b_c"}, series.String, "k2"),
		series.New([]float64{10, 30}, series.Float, "v"),
	)}

	agg, err := Aggregate(ds, "v", "k1", "k2")
	require.NoError(t, err)
	assert.Equal(t, map[GroupKey]float64{
		{First: "a_b", Second: "c"}: 10,
		{First: "a", Second: "b_c"}: 30,
	}, agg.Means)
	assert.Equal(t, 1, agg.Counts[GroupKey{First: "a", Second: "b_c"}])
}

func TestAggregateRowOrderIndependent(t *testing.T) {
	forward := Dataset{Frame: dataframe.New(
		series.New([]int{3, 1, 2, 1, 10}, series.Int, "k"),
		series.New([]float64{1, 2, 3, 4, 5}, series.Float, "v"),
	)}
	backward := Dataset{Frame: dataframe.New(
		series.New([]int{10, 1, 2, 1, 3}, series.Int, "k"),
		series.New([]float64{5, 4, 3, 2, 1}, series.Float, "v"),
	)}

	a, err := Aggregate(forward, "v", "k")
	require.NoError(t, err)
	b, err := Aggregate(backward, "v", "k")
	require.NoError(t, err)

	assert.Equal(t, a.Rows(), b.Rows())
	assert.Equal(t, []GroupKey{{First: "1"}, {First: "2"}, {First: "3"}, {First: "10"}}, a.Keys())
}

func TestAggregateTwoKeys(t *testing.T) {
	snap := threeDays(t)

	agg, err := Aggregate(snap.Hour, schema.TotalRentals, schema.Hour, schema.WorkingDay)
	require.NoError(t, err)

	v, ok := agg.Mean("8", "false")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)
	v, ok = agg.Mean("8", "true")
	require.True(t, ok)
	assert.Equal(t, 90.0, v)
	_, ok = agg.Mean("0", "true")
	assert.False(t, ok, "combination without rows must be absent")

	table := agg.Table()
	assert.Equal(t, schema.Hour, table.RowKey)
	assert.Equal(t, schema.WorkingDay, table.ColumnKey)
	assert.Equal(t, []string{"0", "8", "13", "18", "19"}, table.Rows)
	assert.Equal(t, []string{"false", "true"}, table.Columns)

	require.NotNil(t, table.Cells[0][0])
	assert.Equal(t, 10.0, *table.Cells[0][0])
	assert.Nil(t, table.Cells[0][1])
	assert.Nil(t, table.Cells[3][0])
	assert.Equal(t, 70.0, *table.Cells[3][1])
}

func TestAggregateSingleKeyTable(t *testing.T) {
	snap := threeDays(t)

	agg, err := Aggregate(snap.Day, schema.TotalRentals, schema.Weather)
	require.NoError(t, err)

	table := agg.Table()
	assert.Equal(t, []string{"1", "2"}, table.Rows)
	assert.Equal(t, []string{schema.TotalRentals}, table.Columns)
	assert.Equal(t, 125.0, *table.Cells[0][0])
	assert.Equal(t, 200.0, *table.Cells[1][0])
}

func TestAggregateEmptyAndErrors(t *testing.T) {
	snap := threeDays(t)
	empty := FilterRange(snap.Hour, Selection{})

	agg, err := Aggregate(empty, schema.TotalRentals, schema.DayOfWeek)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Len())
	assert.Empty(t, agg.Table().Rows)

	_, err = Aggregate(snap.Day, schema.TotalRentals)
	assert.Error(t, err)
	_, err = Aggregate(snap.Day, schema.TotalRentals, "a", "b", "c")
	assert.Error(t, err)
	_, err = Aggregate(snap.Day, schema.TotalRentals, schema.Hour)
	assert.Error(t, err, "daily dataset has no hour column")
}

func TestAggregationJSON(t *testing.T) {
	snap := threeDays(t)
	agg, err := Aggregate(snap.Day, schema.TotalRentals, schema.Weather)
	require.NoError(t, err)

	data, err := json.Marshal(agg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"by": ["weather_condition"],
		"measure": "total_rentals",
		"rows": [
			{"first": "1", "mean": 125, "count": 2},
			{"first": "2", "mean": 200, "count": 1}
		]
	}`, string(data))
}

func TestCompareValues(t *testing.T) {
	assert.Negative(t, compareValues("2", "10"))
	assert.Positive(t, compareValues("Evening", "Night"))
	assert.Negative(t, compareValues("Night", "Morning"))
	assert.Negative(t, compareValues("false", "true"))
	assert.Negative(t, compareValues("Clear", "Mist"))
	assert.Zero(t, compareValues("1.0", "1"))
}
