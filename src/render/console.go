// Package render 把分析结果输出为控制台上的 markdown 表格
package render

import (
	"fmt"
	"io"
	"strings"

	"BikeDashboard/src/processor"
	"BikeDashboard/src/schema"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LabelFunc 把天气代码翻译为展示名称
type LabelFunc func(code string) string

// Console 控制台输出
type Console struct {
	w       io.Writer
	labels  LabelFunc
	printer *message.Printer
	heading *color.Color
}

// NewConsole 创建控制台输出。labels 为 nil 时直接显示天气代码
func NewConsole(w io.Writer, labels LabelFunc) *Console {
	if labels == nil {
		labels = func(code string) string { return code }
	}
	return &Console{
		w:       w,
		labels:  labels,
		printer: message.NewPrinter(language.English),
		heading: color.New(color.FgCyan, color.Bold),
	}
}

// Report 依次输出指标、预览与五个问题的结果
func (c *Console) Report(r *processor.Report) error {
	sel := r.Selection
	c.title(fmt.Sprintf("共享单车租借分析 %s ~ %s", sel.From.Format("2006-01-02"), sel.To.Format("2006-01-02")))
	fmt.Fprintf(c.w, "天气: %s\n\n", c.weatherList(sel.Weather))

	if err := c.metrics(r.Metrics); err != nil {
		return err
	}

	c.title("日数据预览")
	if err := c.records(r.DailyPreview); err != nil {
		return err
	}
	c.title("小时数据预览")
	if err := c.records(r.HourlyPreview); err != nil {
		return err
	}

	c.title("问题1: 天气对租借量的影响")
	if err := c.view(r.WeatherEffect); err != nil {
		return err
	}

	c.title("问题2: 温度与租借量")
	if err := c.temperature(r.Temperature); err != nil {
		return err
	}

	c.title("问题3: 一周各天的租借量")
	if err := c.view(r.Weekday); err != nil {
		return err
	}

	c.title("问题4: 工作日与非工作日的小时租借量")
	if err := c.pivot(r.HourlyByWorkingDay.Table); err != nil {
		return err
	}

	c.title("问题5: 星期与时段")
	return c.pivot(r.WeekdayTimeCluster.Table)
}

func (c *Console) title(s string) {
	c.heading.Fprintf(c.w, "## %s\n\n", s)
}

func (c *Console) metrics(m processor.Metrics) error {
	c.title("关键指标")
	mean := "-"
	if m.MeanTemperature != nil {
		mean = fmt.Sprintf("%.3f", *m.MeanTemperature)
	}
	return c.table([]string{"指标", "值"}, [][]string{
		{"总租借量", c.printer.Sprintf("%d", m.TotalRentals)},
		{"平均温度", mean},
		{"日数据行数", c.printer.Sprintf("%d", m.DailyRows)},
		{"小时数据行数", c.printer.Sprintf("%d", m.HourlyRows)},
	})
}

func (c *Console) view(v processor.View) error {
	for _, part := range []struct {
		name string
		agg  *processor.Aggregation
	}{{"日粒度", v.Daily}, {"小时粒度", v.Hourly}} {
		fmt.Fprintf(c.w, "%s:\n\n", part.name)
		if err := c.aggregation(part.agg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) aggregation(agg *processor.Aggregation) error {
	weather := len(agg.By) > 0 && agg.By[0] == schema.Weather
	headers := append(append([]string(nil), agg.By...), "mean_"+agg.Measure, "rows")
	rows := make([][]string, 0, agg.Len())
	for _, r := range agg.Rows() {
		first := r.First
		if weather {
			first = c.labels(first)
		}
		row := []string{first}
		if r.Second != "" {
			row = append(row, r.Second)
		}
		rows = append(rows, append(row, c.printer.Sprintf("%.2f", r.Mean), c.printer.Sprintf("%d", r.Count)))
	}
	return c.table(headers, rows)
}

func (c *Console) temperature(t processor.TemperatureView) error {
	return c.table([]string{"粒度", "点数", "相关系数"}, [][]string{
		{"日", c.printer.Sprintf("%d", len(t.Daily)), correlation(t.DailyCorrelation)},
		{"小时", c.printer.Sprintf("%d", len(t.Hourly)), correlation(t.HourlyCorrelation)},
	})
}

func correlation(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *r)
}

func (c *Console) pivot(p processor.PivotTable) error {
	corner := p.RowKey
	if p.ColumnKey != "" {
		corner = p.RowKey + " \\ " + p.ColumnKey
	}
	headers := append([]string{corner}, p.Columns...)

	rows := make([][]string, len(p.Rows))
	for i, key := range p.Rows {
		row := []string{key}
		for _, cell := range p.Cells[i] {
			if cell == nil {
				row = append(row, "-")
				continue
			}
			row = append(row, c.printer.Sprintf("%.2f", *cell))
		}
		rows[i] = row
	}
	return c.table(headers, rows)
}

func (c *Console) records(records [][]string) error {
	if len(records) == 0 {
		return c.table(nil, nil)
	}
	return c.table(records[0], records[1:])
}

// table 以 markdown 格式输出一张表，没有数据行时输出占位说明
func (c *Console) table(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(c.w, "_无数据_\n\n")
		return err
	}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(c.w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("写入表格行失败: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("输出表格失败: %w", err)
	}
	_, err := fmt.Fprintln(c.w)
	return err
}

func (c *Console) weatherList(codes []string) string {
	if len(codes) == 0 {
		return "(无)"
	}
	labels := make([]string, len(codes))
	for i, code := range codes {
		labels[i] = c.labels(code)
	}
	return strings.Join(labels, ", ")
}
