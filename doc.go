// Package alphadata provides typed, null-aware read access to named columnar
// datasets for research and backtesting workloads.
//
// # Architecture
//
// Datasets are parquet or arrow IPC files, optionally compressed, stored in a
// local directory or in S3/GCS. The layers are:
//
//   - pkg/table: an immutable Table over an arrow.Table with generic Value,
//     Visit, RawColumn and Data accessors that hide chunk boundaries and the
//     pandas row-index column.
//   - pkg/loader: Loader implementations that resolve a dataset name to a file
//     or object, decompress it and decode it into a Table.
//   - pkg/registry: a Registry that materializes datasets on first use, shares
//     concurrent loads and caches retained tables.
//   - pkg/hostview: host-native ([]any, map[string]any, JSON) renderings of
//     tables where nulls stay nil.
//
// # Quick Start
//
//	l := loader.NewFileLoader("data")
//	reg := registry.New(l)
//	defer reg.Close()
//
//	t, err := reg.GetData(ctx, "prices/close", true)
//	if err != nil {
//	    return err
//	}
//	defer t.Release()
//
//	// 20-row trailing mean ending at row
//	var sum float64
//	var n int
//	err = table.Visit[float64](t, row, 0, -19, func(v float64, rel int) bool {
//	    if !math.IsNaN(v) {
//	        sum += v
//	        n++
//	    }
//	    return false
//	})
//
// # Command Line
//
// The alphadata binary in cmd/alphadata lists, inspects and reads datasets:
//
//	alphadata --root data inspect prices/close
//	alphadata --root data window prices/close --row 250 --col 0 --offset -19
//
// Configuration comes from an optional YAML file (--config) with flags and
// ALPHADATA_* environment variables layered on top. See pkg/config.
package alphadata
