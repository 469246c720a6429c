package processor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"BikeDashboard/src/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildReportEndToEnd(t *testing.T) {
	snap := threeDays(t)
	sel := Selection{From: date("2011-01-01"), To: date("2011-01-03"), Weather: []string{"1"}}

	r, err := BuildReport(snap, sel)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Metrics.DailyRows)
	assert.Equal(t, 250, r.Metrics.TotalRentals)
	require.NotNil(t, r.Metrics.MeanTemperature)
	assert.InDelta(t, 0.35, *r.Metrics.MeanTemperature, 1e-9)

	weather := r.WeatherEffect.Daily
	assert.Equal(t, 1, weather.Len())
	mean, ok := weather.Mean("1")
	require.True(t, ok)
	assert.Equal(t, 125.0, mean)

	// 小时数据按自身天气过滤: 0 点、1 月 3 日 8 点与 18 点
	assert.Equal(t, 3, r.Metrics.HourlyRows)
	hourly, ok := r.WeatherEffect.Hourly.Mean("1")
	require.True(t, ok)
	assert.InDelta(t, (10.0+90+70)/3, hourly, 1e-9)

	assert.Len(t, r.Temperature.Daily, 2)
	require.NotNil(t, r.Temperature.DailyCorrelation)
	assert.InDelta(t, 1.0, *r.Temperature.DailyCorrelation, 1e-9)

	sat, ok := r.Weekday.Daily.Mean("6")
	require.True(t, ok)
	assert.Equal(t, 100.0, sat)

	v, ok := r.HourlyByWorkingDay.Aggregation.Mean("18", "true")
	require.True(t, ok)
	assert.Equal(t, 70.0, v)

	v, ok = r.WeekdayTimeCluster.Aggregation.Mean("1", "Morning")
	require.True(t, ok)
	assert.Equal(t, 90.0, v)
	assert.Equal(t, []string{"Night", "Morning", "Evening"}, r.WeekdayTimeCluster.Table.Columns)

	require.Len(t, r.DailyPreview, 3, "header plus two rows")
	assert.Contains(t, r.DailyPreview[0], schema.TotalRentals)
}

func TestBuildReportEmptySelection(t *testing.T) {
	snap := threeDays(t)
	sel := Selection{From: date("2011-01-01"), To: date("2011-01-03"), Weather: []string{}}

	r, err := BuildReport(snap, sel)
	require.NoError(t, err)

	assert.Zero(t, r.Metrics.TotalRentals)
	assert.Nil(t, r.Metrics.MeanTemperature)
	for _, agg := range []*Aggregation{
		r.WeatherEffect.Daily, r.WeatherEffect.Hourly,
		r.Weekday.Daily, r.Weekday.Hourly,
		r.HourlyByWorkingDay.Aggregation, r.WeekdayTimeCluster.Aggregation,
	} {
		assert.Equal(t, 0, agg.Len())
	}
	assert.Empty(t, r.Temperature.Daily)
	assert.Empty(t, r.Temperature.Hourly)
	assert.Nil(t, r.Temperature.HourlyCorrelation)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mean_temperature":null`)
}

func TestBuildReportWithoutSnapshot(t *testing.T) {
	_, err := BuildReport(nil, Selection{})
	assert.Error(t, err)
}

func TestComputeMetricsAndCorrelation(t *testing.T) {
	snap := threeDays(t)

	m, err := ComputeMetrics(snap.Day, snap.Hour)
	require.NoError(t, err)
	assert.Equal(t, 450, m.TotalRentals)
	assert.Equal(t, 6, m.HourlyRows)
	assert.InDelta(t, 0.4, *m.MeanTemperature, 1e-9)

	assert.Nil(t, Correlation([]Point{{0.1, 1}}))
	assert.Nil(t, Correlation([]Point{{0.1, 1}, {0.1, 2}}), "zero variance")
	r := Correlation([]Point{{0.1, 3}, {0.2, 2}, {0.3, 1}})
	require.NotNil(t, r)
	assert.InDelta(t, -1.0, *r, 1e-9)
}

func TestLoadSnapshotAndStore(t *testing.T) {
	dir := t.TempDir()
	dayPath := filepath.Join(dir, "final_day.csv")
	hourPath := filepath.Join(dir, "final_hour.csv")

	require.NoError(t, os.WriteFile(dayPath, []byte(
		"instant,dteday,season,yr,mnth,holiday,weekday,workingday,weathersit,temp,atemp,hum,windspeed,casual,registered,cnt\n"+
			"1,2011-01-01,1,0,1,0,6,0,2,0.344167,0.363625,0.805833,0.160446,331,654,985\n"+
			"2,2011-01-02,1,0,1,0,0,0,2,0.363478,0.353739,0.696087,0.248539,131,670,801\n"), 0644))
	require.NoError(t, os.WriteFile(hourPath, []byte(
		"instant,dteday,season,yr,mnth,hr,holiday,weekday,workingday,weathersit,temp,atemp,hum,windspeed,casual,registered,cnt\n"+
			"1,2011-01-01,1,0,1,0,0,6,0,1,0.24,0.2879,0.81,0,3,13,16\n"+
			"2,2011-01-01,1,0,1,1,0,6,0,1,0.22,0.2727,0.8,0,8,32,40\n"), 0644))

	src := Source{DayPath: dayPath, HourPath: hourPath, DayTable: schema.DayTable(), HourTable: schema.HourTable()}
	snap, err := LoadSnapshot(src)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Day.Len())
	assert.Equal(t, 2, snap.Hour.Len())
	assert.Equal(t, Daily, snap.Day.Granularity)

	store := NewStore(snap)
	assert.Same(t, snap, store.Get())

	// 加载失败时保留原快照
	require.NoError(t, os.WriteFile(hourPath, []byte("instant,dteday\n1,2011-01-01\n"), 0644))
	assert.Error(t, store.Reload(src))
	assert.Same(t, snap, store.Get())

	src.HourPath = filepath.Join(dir, "missing.csv")
	_, err = LoadSnapshot(src)
	assert.Error(t, err)
}

const (
	snapshotDayHeader  = "instant,dteday,season,yr,mnth,holiday,weekday,workingday,weathersit,temp,atemp,hum,windspeed,casual,registered,cnt\n"
	snapshotHourHeader = "instant,dteday,season,yr,mnth,hr,holiday,weekday,workingday,weathersit,temp,atemp,hum,windspeed,casual,registered,cnt\n"
)

func writeSource(t *testing.T, day string) Source {
	t.Helper()
	dir := t.TempDir()
	src := Source{
		DayPath:   filepath.Join(dir, "final_day.csv"),
		HourPath:  filepath.Join(dir, "final_hour.csv"),
		DayTable:  schema.DayTable(),
		HourTable: schema.HourTable(),
	}
	require.NoError(t, os.WriteFile(src.DayPath, []byte(snapshotDayHeader+day), 0644))
	require.NoError(t, os.WriteFile(src.HourPath, []byte(snapshotHourHeader+
		"1,2011-01-01,1,0,1,0,0,6,0,1,0.24,0.2879,0.81,0,3,13,16\n"), 0644))
	return src
}

func TestLoadSnapshotRejectsMissingWeather(t *testing.T) {
	src := writeSource(t,
		"1,2011-01-01,1,0,1,0,6,0,1,0.3,0.3,0.8,0.1,30,70,100\n"+
			"2,2011-01-02,1,0,1,0,0,0,NA,0.5,0.5,0.7,0.2,50,150,200\n")

	_, err := LoadSnapshot(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weathersit")
}

func TestLoadSnapshotSerialDates(t *testing.T) {
	// csv 中的纯数字日期视为损坏
	src := writeSource(t, "1,40544,1,0,1,0,6,0,1,0.3,0.3,0.8,0.1,30,70,100\n")
	_, err := LoadSnapshot(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dteday")

	// xlsx 中的日期序列号正常转换
	src.DayPath = filepath.Join(filepath.Dir(src.DayPath), "final_day.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"instant", "dteday", "season", "yr", "mnth", "holiday", "weekday", "workingday",
			"weathersit", "temp", "atemp", "hum", "windspeed", "casual", "registered", "cnt"},
		{1, 40544, 1, 0, 1, 0, 6, 0, 1, 0.3, 0.3, 0.8, 0.1, 30, 70, 100},
		{2, 40545, 1, 0, 1, 0, 0, 0, 2, 0.5, 0.5, 0.7, 0.2, 50, 150, 200},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(src.DayPath))
	require.NoError(t, f.Close())

	snap, err := LoadSnapshot(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"2011-01-01", "2011-01-02"}, snap.Day.Frame.Col(schema.Date).Records())
}
