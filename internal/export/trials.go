package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/store"
)

// TrialTable is the table kind for stored knock trials.
const TrialTable = "trials"

// TrialSchema is the Arrow schema for store.TrialRecord rows.
var TrialSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "user_id", Type: arrow.BinaryTypes.String},
	{Name: "session_id", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "source", Type: arrow.BinaryTypes.String},
	{Name: "trial_number", Type: arrow.PrimitiveTypes.Int32},
	{Name: "block", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "stimulus", Type: arrow.BinaryTypes.String},
	{Name: "reaction_time_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "correct", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "score_change", Type: arrow.PrimitiveTypes.Int32},
	{Name: "new_score", Type: arrow.PrimitiveTypes.Int32},
	{Name: "action", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "p_go", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_us},
}, tableMetadata(TrialTable))

// TrialRecordBatch builds an Arrow record from trials. The caller must
// Release it.
func TrialRecordBatch(mem memory.Allocator, trials []store.TrialRecord) arrow.Record {
	b := array.NewRecordBuilder(mem, TrialSchema)
	defer b.Release()

	for _, t := range trials {
		b.Field(0).(*array.Int64Builder).Append(t.ID)
		b.Field(1).(*array.StringBuilder).Append(t.UserID)
		appendOptString(b.Field(2).(*array.StringBuilder), t.SessionID)
		b.Field(3).(*array.StringBuilder).Append(string(t.Source))
		b.Field(4).(*array.Int32Builder).Append(int32(t.TrialNumber))
		appendOptString(b.Field(5).(*array.StringBuilder), t.Block)
		b.Field(6).(*array.StringBuilder).Append(t.Stimulus)
		b.Field(7).(*array.Int64Builder).Append(t.ReactionTime)
		b.Field(8).(*array.BooleanBuilder).Append(t.Correct)
		b.Field(9).(*array.Int32Builder).Append(int32(t.ScoreChange))
		b.Field(10).(*array.Int32Builder).Append(int32(t.NewScore))
		appendOptString(b.Field(11).(*array.StringBuilder), t.Action)
		if t.PGo != nil {
			b.Field(12).(*array.Float64Builder).Append(*t.PGo)
		} else {
			b.Field(12).(*array.Float64Builder).AppendNull()
		}
		b.Field(13).(*array.TimestampBuilder).Append(arrow.Timestamp(t.Timestamp.UnixMicro()))
	}
	return b.NewRecord()
}

// WriteTrials writes trials as an Arrow IPC file.
func WriteTrials(w io.WriteSeeker, trials []store.TrialRecord) error {
	rec := TrialRecordBatch(memory.DefaultAllocator, trials)
	defer rec.Release()
	return writeRecord(w, rec)
}

// ReadTrials reads every trial from an Arrow IPC file.
func ReadTrials(r ipc.ReadAtSeeker) ([]store.TrialRecord, error) {
	var out []store.TrialRecord
	err := readRecords(r, TrialTable, func(rec arrow.Record) error {
		ids := rec.Column(0).(*array.Int64)
		users := rec.Column(1).(*array.String)
		sessions := rec.Column(2).(*array.String)
		sources := rec.Column(3).(*array.String)
		numbers := rec.Column(4).(*array.Int32)
		blocks := rec.Column(5).(*array.String)
		stimuli := rec.Column(6).(*array.String)
		rts := rec.Column(7).(*array.Int64)
		correct := rec.Column(8).(*array.Boolean)
		deltas := rec.Column(9).(*array.Int32)
		scores := rec.Column(10).(*array.Int32)
		actions := rec.Column(11).(*array.String)
		pgos := rec.Column(12).(*array.Float64)
		stamps := rec.Column(13).(*array.Timestamp)

		for i := 0; i < int(rec.NumRows()); i++ {
			t := store.TrialRecord{
				ID:           ids.Value(i),
				UserID:       users.Value(i),
				SessionID:    optString(sessions, i),
				Source:       constants.Source(sources.Value(i)),
				TrialNumber:  int(numbers.Value(i)),
				Block:        optString(blocks, i),
				Stimulus:     stimuli.Value(i),
				ReactionTime: rts.Value(i),
				Correct:      correct.Value(i),
				ScoreChange:  int(deltas.Value(i)),
				NewScore:     int(scores.Value(i)),
				Action:       optString(actions, i),
				Timestamp:    time.UnixMicro(int64(stamps.Value(i))).UTC(),
			}
			if pgos.IsValid(i) {
				v := pgos.Value(i)
				t.PGo = &v
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// WriteTrialsFile writes trials to path.
func WriteTrialsFile(path string, trials []store.TrialRecord) error {
	return writeFile(path, func(w io.WriteSeeker) error { return WriteTrials(w, trials) })
}

// ReadTrialsFile reads trials from path.
func ReadTrialsFile(path string) ([]store.TrialRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTrials(f)
}

func appendOptString(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.Append(s)
}

func optString(a *array.String, i int) string {
	if a.IsNull(i) {
		return ""
	}
	return a.Value(i)
}
