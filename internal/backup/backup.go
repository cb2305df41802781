// Package backup builds and reads the JSON snapshot of the ledger.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// Artifact is the backup document.
type Artifact struct {
	Created        string `json:"created"`
	FinanceRecords int    `json:"finance_records"`
	Finance        []Row  `json:"finance"`
}

// Row is one ledger row keyed by the ledger header, in header order.
type Row struct {
	domain.Transaction
}

// Build snapshots records at now (Moscow time).
func Build(records []domain.Transaction, now time.Time) Artifact {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{r}
	}
	return Artifact{
		Created:        now.In(domain.Moscow()).Format(domain.TimestampLayout),
		FinanceRecords: len(rows),
		Finance:        rows,
	}
}

// FileName returns backup_YYYYMMDD_HHMM.json for now in Moscow time.
func FileName(now time.Time) string {
	return "backup_" + now.In(domain.Moscow()).Format("20060102_1504") + ".json"
}

// Transactions returns the rows of a.
func (a Artifact) Transactions() []domain.Transaction {
	out := make([]domain.Transaction, len(a.Finance))
	for i, r := range a.Finance {
		out[i] = r.Transaction
	}
	return out
}

// Encode writes a as indented JSON with non-ASCII text left as is.
func Encode(w io.Writer, a Artifact) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("backup.Encode: %w", err)
	}
	return nil
}

// Marshal encodes a into a byte slice.
func Marshal(a Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an artifact and checks the declared record count.
func Decode(r io.Reader) (Artifact, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("backup.Decode: %w", err)
	}
	if a.FinanceRecords != len(a.Finance) {
		return Artifact{}, fmt.Errorf("backup.Decode: finance_records is %d but %d rows present", a.FinanceRecords, len(a.Finance))
	}
	return a, nil
}

func (r Row) MarshalJSON() ([]byte, error) {
	values := []interface{}{
		r.Date,
		string(r.OperationType),
		r.Category,
		r.Description,
		json.Number(r.Amount.String()),
		r.Comment,
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range ledger.Header {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		v, err := marshalNoEscape(values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	cells := make([]interface{}, len(ledger.Header))
	for i, key := range ledger.Header {
		cells[i] = fields[key]
	}
	t, err := ledger.DecodeRow(cells)
	if err != nil {
		return err
	}
	r.Transaction = t
	return nil
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
