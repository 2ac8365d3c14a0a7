package pipeline

import (
	"context"

	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/objectstore"
	"github.com/seantiz/tablesnap/internal/resource"
	"github.com/seantiz/tablesnap/internal/source"
)

// Resource names.
const (
	ResourceDatabase = "database"
	ResourceS3       = "s3"
)

var databaseSchema = config.Schema{
	config.WithDefault("driver", "SOURCE_DRIVER", config.KindString, source.DriverMySQL),
	config.Required("host", "MARIADB_HOST", config.KindString),
	config.WithDefault("port", "MARIADB_PORT", config.KindInt, "3306"),
	config.Required("user", "MARIADB_USER", config.KindString),
	config.Optional("password", "MARIADB_PASSWORD", config.KindString),
	config.Required("database", "MARIADB_DATABASE", config.KindString),
	config.WithDefault("ping_timeout", "SOURCE_PING_TIMEOUT", config.KindDuration, "5s"),
}

var s3Schema = config.Schema{
	config.WithDefault("region", "AWS_REGION", config.KindString, "us-east-1"),
	config.Optional("access_key", "AWS_ACCESS_KEY_ID", config.KindString),
	config.Optional("secret_key", "AWS_SECRET_ACCESS_KEY", config.KindString),
	config.Optional("endpoint", "MINIO_ENDPOINT_URL", config.KindString),
}

// StoreOpener builds the object store behind the s3 resource.
type StoreOpener func(ctx context.Context, cfg objectstore.Config) (objectstore.Store, error)

func openMinio(_ context.Context, cfg objectstore.Config) (objectstore.Store, error) {
	return objectstore.NewMinioStore(cfg)
}

// DatabaseResource declares the source database connection. The handle is a
// *sql.DB, closed when the run releases its resources.
func DatabaseResource() resource.Declaration {
	return resource.Declaration{
		Name:   ResourceDatabase,
		Config: databaseSchema,
		Open: func(ctx context.Context, c config.Resolved) (any, error) {
			return source.Open(ctx, source.Config{
				Driver:      c.String("driver"),
				Host:        c.String("host"),
				Port:        c.Int("port"),
				User:        c.String("user"),
				Password:    c.String("password"),
				Database:    c.String("database"),
				PingTimeout: c.Duration("ping_timeout"),
			})
		},
	}
}

// S3Resource declares the object store the snapshot is written to.
func S3Resource(open StoreOpener) resource.Declaration {
	if open == nil {
		open = openMinio
	}
	return resource.Declaration{
		Name:   ResourceS3,
		Config: s3Schema,
		Open: func(ctx context.Context, c config.Resolved) (any, error) {
			return open(ctx, objectstore.Config{
				Endpoint:  c.String("endpoint"),
				Region:    c.String("region"),
				AccessKey: c.String("access_key"),
				SecretKey: c.String("secret_key"),
			})
		},
	}
}
