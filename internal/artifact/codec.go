package artifact

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Table 是一份解析后的导出数据。表头为券商原始的中文标签，
// 核心不做任何规范化，行以字符串透传给上层消费者。
type Table struct {
	Headers []string
	Rows    [][]string
	// CRLF 记录原始文件是否以 \r\n 结尾。Windows 终端的保存对话框
	// 写出的就是 CRLF，回写时必须保持一致才能逐字节还原。
	CRLF bool
}

// Maps 按表头把每行转为 map，供按标签取值的调用方使用。
func (t *Table) Maps() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// ReadCSV 以 GBK 编码读取券商导出的 CSV。
// 字段数与表头不符的行直接丢弃而不报错：单行解析失败不应拖垮整次导出。
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: 打开导出文件失败: %w", err)
	}
	defer f.Close()

	return DecodeGBK(f)
}

// DecodeGBK 从 GBK 编码的流中解析表格。
func DecodeGBK(r io.Reader) (*Table, error) {
	// csv.Reader 会吞掉行尾的 \r，在它前面探测原始的行结束符。
	det := &crlfDetector{r: transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())}
	reader := csv.NewReader(det)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: 读取表头失败: %w", err)
	}

	table := &Table{Headers: headers}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 行级错误丢弃该行，继续向后解析。
			continue
		}
		if len(row) != len(headers) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	table.CRLF = det.seen
	return table, nil
}

// crlfDetector 透传读取并记录流中是否出现过 \r\n。
type crlfDetector struct {
	r    io.Reader
	seen bool
	last byte
}

func (d *crlfDetector) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	for _, b := range p[:n] {
		if d.last == '\r' && b == '\n' {
			d.seen = true
		}
		d.last = b
	}
	return n, err
}

// EncodeGBK 以同一编码与表头顺序重新序列化表格。
// 对解析成功的行子集，与原始文件逐字节一致。
func EncodeGBK(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, simplifiedchinese.GBK.NewEncoder())

	cw := csv.NewWriter(w)
	cw.UseCRLF = t.CRLF
	if err := cw.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("artifact: 写表头失败: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("artifact: 写数据行失败: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("artifact: 序列化失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("artifact: 编码失败: %w", err)
	}

	return buf.Bytes(), nil
}
