// Package export writes and reads trial tables as Apache Arrow IPC files, so
// human, agent, and DDM-simulated trials can be loaded directly into
// dataframe tooling.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// TableKey is the schema metadata key naming the table kind.
const TableKey = "gonogo.table"

// ErrWrongTable is returned when a file holds a different table kind.
var ErrWrongTable = errors.New("arrow file holds a different table")

func tableMetadata(kind string) *arrow.Metadata {
	md := arrow.NewMetadata([]string{TableKey}, []string{kind})
	return &md
}

func checkTable(schema *arrow.Schema, kind string) error {
	md := schema.Metadata()
	idx := md.FindKey(TableKey)
	if idx < 0 || md.Values()[idx] != kind {
		return fmt.Errorf("want %q table: %w", kind, ErrWrongTable)
	}
	return nil
}

// writeRecord writes a single-record IPC file.
func writeRecord(w io.WriteSeeker, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	return fw.Close()
}

// readRecords calls fn for every record in an IPC file after checking the
// table kind. Records are owned by the reader and valid only inside fn.
func readRecords(r ipc.ReadAtSeeker, kind string, fn func(arrow.Record) error) error {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("failed to open arrow file: %w", err)
	}
	defer fr.Close()

	if err := checkTable(fr.Schema(), kind); err != nil {
		return err
	}
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return fmt.Errorf("failed to read record %d: %w", i, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeFile creates path with owner-only permissions and streams into it.
func writeFile(path string, write func(io.WriteSeeker) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
