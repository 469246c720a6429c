// reader.go
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Options 读取数据文件的选项
type Options struct {
	SheetName string // xlsx 工作表名，为空时取第一个工作表
	Encoding  string // 文件编码，为空或 utf-8 时不转换
}

// ReadToDataFrame 按扩展名读取 .csv 或 .xlsx 文件，所有列均按字符串读入，
// 类型转换交给 schema.Normalize
func ReadToDataFrame(filePath string, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".txt":
		f, err := os.Open(filePath)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
		}
		defer f.Close()
		return ReadCSV(f, opts.Encoding)
	case ".xlsx":
		return ReadXLSX(filePath, opts.SheetName)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的文件类型: %s", filePath)
	}
}

// ReadCSV 从 r 读取带表头的 CSV
func ReadCSV(r io.Reader, encoding string) (dataframe.DataFrame, error) {
	decoded, err := decode(r, encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.ReadCSV(decoded,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

// decode 按配置的编码转换为 UTF-8
func decode(r io.Reader, encoding string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("不支持的文件编码 %q: %w", encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func ReadXLSX(filePath, sheetName string) (df dataframe.DataFrame, err error) {

	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表 %s", sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame，第一行为标题行
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 为空", sheet.Name)
	}

	// 获取列名
	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	// 填充数据(从第二行开始)，跳过空行
	for _, row := range sheet.Rows[1:] {
		if row == nil || isBlank(row) {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	// 创建Series切片
	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

func isBlank(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}
