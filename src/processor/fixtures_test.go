package processor

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"BikeDashboard/src/schema"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

// row 测试用的一行原始数据，未设置的字段取默认值
type row struct {
	date       string
	hour       int
	weekday    int
	workingday bool
	weather    string
	temp       float64
	casual     int
	total      int
}

func buildDataset(t *testing.T, g Granularity, rows ...row) Dataset {
	t.Helper()

	table := schema.DayTable()
	if g == Hourly {
		table = schema.HourTable()
	}

	records := [][]string{table.Sources()}
	for i, r := range rows {
		values := map[string]string{
			schema.InstanceID:         strconv.Itoa(i + 1),
			schema.Date:               r.date,
			schema.Year:               "0",
			schema.Month:              "1",
			schema.Hour:               strconv.Itoa(r.hour),
			schema.Holiday:            "0",
			schema.DayOfWeek:          strconv.Itoa(r.weekday),
			schema.WorkingDay:         boolFlag(r.workingday),
			schema.Weather:            r.weather,
			schema.Temperature:        fmt.Sprint(r.temp),
			schema.FeelingTemperature: fmt.Sprint(r.temp),
			schema.Humidity:           "0.5",
			schema.WindSpeed:          "0.2",
			schema.CasualRiders:       strconv.Itoa(r.casual),
			schema.RegisteredRiders:   strconv.Itoa(r.total - r.casual),
			schema.TotalRentals:       strconv.Itoa(r.total),
		}
		line := make([]string, len(table.Columns))
		for j, c := range table.Columns {
			line[j] = values[c.Name]
		}
		records = append(records, line)
	}

	raw := dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
	df, err := schema.Normalize(raw, table)
	require.NoError(t, err)
	require.NoError(t, schema.Validate(df, table))
	return Dataset{Granularity: g, Frame: df}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// threeDays 端到端场景中的三行数据
func threeDays(t *testing.T) *Snapshot {
	day := buildDataset(t, Daily,
		row{date: "2011-01-01", weekday: 6, weather: "1", temp: 0.3, casual: 30, total: 100},
		row{date: "2011-01-02", weekday: 0, weather: "2", temp: 0.5, casual: 50, total: 200},
		row{date: "2011-01-03", weekday: 1, workingday: true, weather: "1", temp: 0.4, casual: 40, total: 150},
	)
	hour := buildDataset(t, Hourly,
		row{date: "2011-01-01", hour: 0, weekday: 6, weather: "1", temp: 0.2, casual: 1, total: 10},
		row{date: "2011-01-01", hour: 8, weekday: 6, weather: "2", temp: 0.3, casual: 2, total: 30},
		row{date: "2011-01-02", hour: 13, weekday: 0, weather: "2", temp: 0.5, casual: 5, total: 50},
		row{date: "2011-01-03", hour: 8, weekday: 1, workingday: true, weather: "1", temp: 0.4, casual: 10, total: 90},
		row{date: "2011-01-03", hour: 18, weekday: 1, workingday: true, weather: "1", temp: 0.4, casual: 20, total: 70},
		row{date: "2011-01-03", hour: 19, weekday: 1, workingday: true, weather: "3", temp: 0.3, casual: 4, total: 20},
	)
	return &Snapshot{Day: day, Hour: hour, LoadedAt: time.Now()}
}
