package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"BikeDashboard/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hashicorp/go-multierror"
)

// 校验时最多列出的违规条数
const maxViolations = 20

// Normalize 按重命名表重命名列并完成类型转换。
// 缺少原始列、日期或数值无法解析时返回错误，这些都属于输入文件损坏。
func Normalize(df dataframe.DataFrame, table Table) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s 数据集读取失败: %w", table.Granularity, df.Err)
	}
	if missing := utils.MissingColumns(df, table.Sources()...); len(missing) > 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%s 数据集缺少必需列: %s", table.Granularity, strings.Join(missing, ", "))
	}

	rules := table.bySource()
	seriesList := make([]series.Series, 0, df.Ncol())
	for _, name := range df.Names() {
		col := df.Col(name)
		rule, ok := rules[name]
		if !ok {
			// 未在表中声明的列原样保留
			seriesList = append(seriesList, col)
			continue
		}

		s, err := convert(col.Records(), rule, table.SerialDates)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%s 数据集列 %s: %w", table.Granularity, name, err)
		}
		seriesList = append(seriesList, s)
	}

	out := dataframe.New(seriesList...)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s 数据集重建失败: %w", table.Granularity, out.Err)
	}
	return out, nil
}

func convert(records []string, rule Column, serialDates bool) (series.Series, error) {
	switch rule.Kind {
	case Int:
		values := make([]int, len(records))
		for i, r := range records {
			v, err := parseInt(r)
			if err != nil {
				return series.Series{}, fmt.Errorf("第 %d 行: %w", i+1, err)
			}
			values[i] = v
		}
		return series.New(values, series.Int, rule.Name), nil

	case Float:
		values := make([]float64, len(records))
		for i, r := range records {
			v, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
			if err != nil {
				return series.Series{}, fmt.Errorf("第 %d 行: 无法解析数值 %q", i+1, r)
			}
			values[i] = v
		}
		return series.New(values, series.Float, rule.Name), nil

	case Bool:
		values := make([]bool, len(records))
		for i, r := range records {
			v, err := parseFlag(r)
			if err != nil {
				return series.Series{}, fmt.Errorf("第 %d 行: %w", i+1, err)
			}
			values[i] = v
		}
		return series.New(values, series.Bool, rule.Name), nil

	case DateKind:
		parse := utils.ParseDate
		if serialDates {
			parse = utils.ParseSheetDate
		}
		values := make([]string, len(records))
		for i, r := range records {
			t, err := parse(r)
			if err != nil {
				return series.Series{}, fmt.Errorf("第 %d 行: %w", i+1, err)
			}
			values[i] = utils.FormatDate(t)
		}
		return series.New(values, series.String, rule.Name), nil

	default:
		values := make([]string, len(records))
		for i, r := range records {
			if isMissing(r) {
				return series.Series{}, fmt.Errorf("第 %d 行: 缺少取值", i+1)
			}
			values[i] = CanonicalCode(r)
		}
		return series.New(values, series.String, rule.Name), nil
	}
}

func parseInt(s string) (int, error) {
	str := strings.TrimSpace(s)
	if v, err := strconv.Atoi(str); err == nil {
		return v, nil
	}
	// pandas 导出时整数列可能带有 ".0"
	f, err := strconv.ParseFloat(str, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("无法解析整数 %q", s)
	}
	return int(f), nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "t", "yes":
		return true, nil
	case "0", "0.0", "false", "f", "no":
		return false, nil
	}
	return false, fmt.Errorf("无法解析布尔值 %q", s)
}

// isMissing 空单元格以及 gota 读入的 NA/NaN
func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "nan":
		return true
	}
	return false
}

// CanonicalCode 统一分类编码的写法，"1.0" 与 "1" 视为同一编码
func CanonicalCode(s string) string {
	str := strings.TrimSpace(s)
	if v, err := parseInt(str); err == nil {
		return strconv.Itoa(v)
	}
	return str
}

// Validate 检查归一化后的数据集是否满足数据模型约束，返回全部违规项
func Validate(df dataframe.DataFrame, table Table) error {
	var errs *multierror.Error
	violations := 0
	report := func(format string, args ...interface{}) {
		violations++
		if violations <= maxViolations {
			errs = multierror.Append(errs, fmt.Errorf(format, args...))
		}
	}

	ids, err := df.Col(InstanceID).Int()
	if err != nil {
		return fmt.Errorf("%s 数据集 %s 列类型错误: %w", table.Granularity, InstanceID, err)
	}
	casual, _ := df.Col(CasualRiders).Int()
	registered, _ := df.Col(RegisteredRiders).Int()
	total, _ := df.Col(TotalRentals).Int()
	weekday, _ := df.Col(DayOfWeek).Int()

	var hours []int
	if table.Has(Hour) {
		hours, _ = df.Col(Hour).Int()
	}

	seen := make(map[int]int, len(ids))
	for i, id := range ids {
		if prev, ok := seen[id]; ok {
			report("%s 重复 (第 %d 行与第 %d 行): %d", InstanceID, prev+1, i+1, id)
		} else {
			seen[id] = i
		}
		if casual[i] < 0 || registered[i] < 0 || total[i] < 0 {
			report("%s=%d 骑行人数为负数", InstanceID, id)
		}
		if total[i] != casual[i]+registered[i] {
			report("%s=%d %s(%d) != %s(%d) + %s(%d)", InstanceID, id,
				TotalRentals, total[i], CasualRiders, casual[i], RegisteredRiders, registered[i])
		}
		if weekday[i] < 0 || weekday[i] > 6 {
			report("%s=%d %s 超出范围: %d", InstanceID, id, DayOfWeek, weekday[i])
		}
		if hours != nil && (hours[i] < 0 || hours[i] > 23) {
			report("%s=%d %s 超出范围: %d", InstanceID, id, Hour, hours[i])
		}
	}

	if violations > maxViolations {
		errs = multierror.Append(errs, fmt.Errorf("另有 %d 处违规未列出", violations-maxViolations))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s 数据集校验失败: %w", table.Granularity, err)
	}
	return nil
}
