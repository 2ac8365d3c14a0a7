package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/model"
	"github.com/seantiz/tablesnap/internal/objectstore"
	"github.com/seantiz/tablesnap/internal/source"
	"github.com/seantiz/tablesnap/internal/tabular"
)

// Asset names.
const (
	AssetExtract = "mariadb_table_extract"
	AssetLoad    = "upload_to_s3"
)

// LoadResult is the output of the load asset. An empty URI means the extracted
// table had no rows and nothing was written.
type LoadResult struct {
	URI   string `json:"uri,omitempty"`
	Key   string `json:"key,omitempty"`
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// NoData reports whether the load was skipped for an empty table.
func (r LoadResult) NoData() bool {
	return r.URI == ""
}

// Summary implements engine.Summarizer.
func (r LoadResult) Summary() string {
	if r.NoData() {
		return "No data to upload"
	}
	return r.URI
}

// ExtractAsset reads the configured table in full.
func ExtractAsset() asset.Asset {
	return asset.Asset{
		Name:        AssetExtract,
		Description: "Extracts the configured table from the source database.",
		Config: config.Schema{
			config.Required("table", "MARIADB_TABLE", config.KindString),
		},
		Resources: []string{ResourceDatabase},
		Compute: func(ctx context.Context, in asset.Input) (any, error) {
			db, err := asset.Resource[*sql.DB](in, ResourceDatabase)
			if err != nil {
				return nil, err
			}
			table := in.Config.String("table")

			in.Logger.Info("extracting table", "table", table)
			ds, err := source.ReadTable(ctx, db, table)
			if err != nil {
				return nil, err
			}
			in.Logger.Info("table extracted", "table", table, "rows", ds.Len(), "columns", len(ds.Columns))
			return ds, nil
		},
	}
}

// ObjectKey returns the key a snapshot taken at the run time is stored under:
// {prefix}/{YYYYMMDD_HHMMSS}.parquet.
func ObjectKey(prefix string, run asset.RunInfo) string {
	name := model.FormatRunTimestamp(run.Time) + ".parquet"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// LoadAsset encodes the extracted table as Parquet and uploads it.
func LoadAsset() asset.Asset {
	return asset.Asset{
		Name:        AssetLoad,
		Description: "Uploads the extracted table to S3 as a Parquet file.",
		Upstreams:   []string{AssetExtract},
		Config: config.Schema{
			config.Required("bucket", "S3_BUCKET", config.KindString),
			config.Optional("key_prefix", "S3_KEY_PREFIX", config.KindString),
		},
		Resources: []string{ResourceS3},
		Compute: func(ctx context.Context, in asset.Input) (any, error) {
			ds, err := asset.Upstream[*tabular.Dataset](in, AssetExtract)
			if err != nil {
				return nil, err
			}
			if ds.Empty() {
				in.Logger.Info("dataset is empty, skipping upload")
				return LoadResult{}, nil
			}

			store, err := asset.Resource[objectstore.Store](in, ResourceS3)
			if err != nil {
				return nil, err
			}
			bucket := in.Config.String("bucket")
			key := ObjectKey(in.Config.String("key_prefix"), in.Run)
			uri := objectstore.URI(bucket, key)
			if err := objectstore.CheckBucket(ctx, store, bucket); err != nil {
				return nil, err
			}

			payload, err := tabular.EncodeParquet(ds)
			if err != nil {
				return nil, fmt.Errorf("encode parquet: %w", err)
			}

			in.Logger.Info("uploading parquet", "uri", uri, "rows", ds.Len(), "bytes", len(payload))
			if _, err := store.Put(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)), tabular.ContentType); err != nil {
				in.Logger.Error("upload failed", "uri", uri, "error", err)
				return nil, err
			}
			in.Logger.Info("upload complete", "uri", uri)

			return LoadResult{URI: uri, Key: key, Rows: ds.Len(), Bytes: int64(len(payload))}, nil
		},
	}
}
