package export

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/gonogo/internal/ddm"
)

// DDMTable is the table kind for stimulus-coded DDM trials.
const DDMTable = "ddm_trials"

// DDMSchema mirrors ddm.Trial. A NaN RT is written as null.
var DDMSchema = arrow.NewSchema([]arrow.Field{
	{Name: "subj_idx", Type: arrow.PrimitiveTypes.Int32},
	{Name: "condition", Type: arrow.PrimitiveTypes.Int32},
	{Name: "response", Type: arrow.PrimitiveTypes.Int8},
	{Name: "correct", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "rt", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "stimulus", Type: arrow.PrimitiveTypes.Int8},
}, tableMetadata(DDMTable))

// DDMRecordBatch builds an Arrow record from DDM trials. The caller must
// Release it.
func DDMRecordBatch(mem memory.Allocator, trials []ddm.Trial) arrow.Record {
	b := array.NewRecordBuilder(mem, DDMSchema)
	defer b.Release()

	for _, t := range trials {
		b.Field(0).(*array.Int32Builder).Append(int32(t.SubjIdx))
		b.Field(1).(*array.Int32Builder).Append(int32(t.Condition))
		b.Field(2).(*array.Int8Builder).Append(int8(t.Response))
		b.Field(3).(*array.BooleanBuilder).Append(t.Correct)
		if math.IsNaN(t.RT) {
			b.Field(4).(*array.Float64Builder).AppendNull()
		} else {
			b.Field(4).(*array.Float64Builder).Append(t.RT)
		}
		b.Field(5).(*array.Int8Builder).Append(int8(t.Stimulus))
	}
	return b.NewRecord()
}

// WriteDDM writes DDM trials as an Arrow IPC file.
func WriteDDM(w io.WriteSeeker, trials []ddm.Trial) error {
	rec := DDMRecordBatch(memory.DefaultAllocator, trials)
	defer rec.Release()
	return writeRecord(w, rec)
}

// ReadDDM reads DDM trials from an Arrow IPC file. Null RTs come back as NaN.
func ReadDDM(r ipc.ReadAtSeeker) ([]ddm.Trial, error) {
	var out []ddm.Trial
	err := readRecords(r, DDMTable, func(rec arrow.Record) error {
		subj := rec.Column(0).(*array.Int32)
		cond := rec.Column(1).(*array.Int32)
		resp := rec.Column(2).(*array.Int8)
		correct := rec.Column(3).(*array.Boolean)
		rt := rec.Column(4).(*array.Float64)
		stim := rec.Column(5).(*array.Int8)

		for i := 0; i < int(rec.NumRows()); i++ {
			t := ddm.Trial{
				SubjIdx:   int(subj.Value(i)),
				Condition: int(cond.Value(i)),
				Response:  int(resp.Value(i)),
				Correct:   correct.Value(i),
				RT:        math.NaN(),
				Stimulus:  int(stim.Value(i)),
			}
			if rt.IsValid(i) {
				t.RT = rt.Value(i)
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// WriteDDMFile writes DDM trials to path.
func WriteDDMFile(path string, trials []ddm.Trial) error {
	return writeFile(path, func(w io.WriteSeeker) error { return WriteDDM(w, trials) })
}

// ReadDDMFile reads DDM trials from path.
func ReadDDMFile(path string) ([]ddm.Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadDDM(f)
}
