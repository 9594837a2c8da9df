package pipeline

import (
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	hrrcore "github.com/lucasjlepore/hrr-monitor"
)

type observationParquetRow struct {
	TSUTCISO      string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SessionID     string  `parquet:"name=session_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RawValue      float64 `parquet:"name=raw_value, type=DOUBLE"`
	Weight        float64 `parquet:"name=weight, type=DOUBLE"`
	WeightedValue float64 `parquet:"name=weighted_value, type=DOUBLE"`
}

func writeObservationsParquet(path string, observations []hrrcore.WeightedObservation) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(observationParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, o := range observations {
		row := observationParquetRow{
			TSUTCISO:      o.Timestamp.UTC().Format(time.RFC3339),
			SessionID:     o.SessionID,
			RawValue:      o.RawValue,
			Weight:        o.Weight,
			WeightedValue: o.WeightedValue,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}
