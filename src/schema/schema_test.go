package schema

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dayHeader = []string{"instant", "dteday", "season", "yr", "mnth", "holiday", "weekday", "workingday",
	"weathersit", "temp", "atemp", "hum", "windspeed", "casual", "registered", "cnt"}

func rawDay(rows ...[]string) dataframe.DataFrame {
	records := append([][]string{dayHeader}, rows...)
	return dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
}

func TestHourTableAddsHour(t *testing.T) {
	day, hour := DayTable(), HourTable()
	assert.Len(t, hour.Columns, len(day.Columns)+1)
	assert.True(t, hour.Has(Hour))
	assert.False(t, day.Has(Hour))
	assert.Contains(t, hour.Sources(), "hr")
	assert.Equal(t, []string{"instant", "dteday", "yr", "mnth", "hr"}, hour.Sources()[:5])
}

func TestOverride(t *testing.T) {
	table, err := DayTable().Override(map[string]string{"weather": Weather, "count": TotalRentals})
	require.NoError(t, err)
	assert.Contains(t, table.Sources(), "weather")
	assert.Contains(t, table.Sources(), "count")
	assert.NotContains(t, table.Sources(), "cnt")

	// 原表不受影响
	assert.Contains(t, DayTable().Sources(), "cnt")

	_, err = DayTable().Override(map[string]string{"hr": Hour})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	df := rawDay(
		[]string{"1", "2011-01-01", "1", "0", "1", "0", "6", "0", "2", "0.344167", "0.363625", "0.805833", "0.160446", "331", "654", "985"},
		[]string{"2", "2011/01/02", "1", "0", "1", "0", "0", "0", "2.0", "0.363478", "0.353739", "0.696087", "0.248539", "131", "670", "801"},
	)

	out, err := Normalize(df, DayTable())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Nrow())

	for _, name := range DayTable().Names() {
		assert.Contains(t, out.Names(), name)
	}
	assert.Contains(t, out.Names(), "season", "unmapped columns are kept")

	assert.Equal(t, []string{"2011-01-01", "2011-01-02"}, out.Col(Date).Records())
	assert.Equal(t, []string{"2", "2"}, out.Col(Weather).Records())
	assert.Equal(t, series.Int, out.Col(TotalRentals).Type())
	assert.Equal(t, series.Float, out.Col(Temperature).Type())
	assert.Equal(t, series.Bool, out.Col(WorkingDay).Type())
	assert.InDelta(t, 0.344167, out.Col(Temperature).Float()[0], 1e-9)
}

func TestNormalizeMissingColumn(t *testing.T) {
	records := [][]string{{"instant", "dteday"}, {"1", "2011-01-01"}}
	df := dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	_, err := Normalize(df, DayTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cnt")
}

func TestNormalizeBadDate(t *testing.T) {
	df := rawDay(
		[]string{"1", "yesterday", "1", "0", "1", "0", "6", "0", "2", "0.3", "0.3", "0.8", "0.1", "1", "2", "3"},
	)
	_, err := Normalize(df, DayTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dteday")
}

func TestNormalizeMissingWeather(t *testing.T) {
	for _, missing := range []string{"NA", "NaN", ""} {
		df := rawDay(
			[]string{"1", "2011-01-01", "1", "0", "1", "0", "6", "0", "1", "0.3", "0.3", "0.8", "0.1", "1", "2", "3"},
			[]string{"2", "2011-01-02", "1", "0", "1", "0", "0", "0", missing, "0.3", "0.3", "0.8", "0.1", "1", "2", "3"},
		)
		_, err := Normalize(df, DayTable())
		require.Error(t, err, "weathersit=%q", missing)
		assert.Contains(t, err.Error(), "weathersit")
		assert.Contains(t, err.Error(), "第 2 行")
	}
}

func TestNormalizeSerialDates(t *testing.T) {
	df := rawDay(
		[]string{"1", "40544", "1", "0", "1", "0", "6", "0", "1", "0.3", "0.3", "0.8", "0.1", "1", "2", "3"},
	)

	_, err := Normalize(df, DayTable())
	assert.Error(t, err, "csv sources do not accept serial dates")

	table := DayTable()
	table.SerialDates = true
	table, err = table.Override(map[string]string{"dteday": Date})
	require.NoError(t, err)
	assert.True(t, table.SerialDates)

	out, err := Normalize(df, table)
	require.NoError(t, err)
	assert.Equal(t, []string{"2011-01-01"}, out.Col(Date).Records())
}

func TestNormalizeBadNumber(t *testing.T) {
	df := rawDay(
		[]string{"1", "2011-01-01", "1", "0", "1", "0", "6", "0", "2", "warm", "0.3", "0.8", "0.1", "1", "2", "3"},
	)
	_, err := Normalize(df, DayTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temp")
}

func TestValidate(t *testing.T) {
	good := rawDay(
		[]string{"1", "2011-01-01", "1", "0", "1", "0", "6", "0", "1", "0.3", "0.3", "0.8", "0.1", "40", "60", "100"},
		[]string{"2", "2011-01-02", "1", "0", "1", "0", "0", "0", "2", "0.5", "0.5", "0.8", "0.1", "50", "150", "200"},
	)
	out, err := Normalize(good, DayTable())
	require.NoError(t, err)
	assert.NoError(t, Validate(out, DayTable()))

	bad := rawDay(
		[]string{"1", "2011-01-01", "1", "0", "1", "0", "6", "0", "1", "0.3", "0.3", "0.8", "0.1", "40", "60", "101"},
		[]string{"1", "2011-01-02", "1", "0", "1", "0", "9", "0", "2", "0.5", "0.5", "0.8", "0.1", "50", "150", "200"},
	)
	out, err = Normalize(bad, DayTable())
	require.NoError(t, err)

	err = Validate(out, DayTable())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "total_rentals(101)")
	assert.Contains(t, msg, "重复")
	assert.Contains(t, msg, "day_of_week")
}

func TestParseHelpers(t *testing.T) {
	v, err := parseInt("3.0")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = parseInt("3.5")
	assert.Error(t, err)

	b, err := parseFlag("True")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = parseFlag("maybe")
	assert.Error(t, err)

	assert.Equal(t, "1", CanonicalCode(" 1.0 "))
	assert.Equal(t, "Clear", CanonicalCode("Clear"))
}
