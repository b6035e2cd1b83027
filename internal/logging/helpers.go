package logging

import (
	"log/slog"
	"time"
)

// Duration logs a duration as name_ms
func Duration(name string, d time.Duration) slog.Attr {
	return slog.Int64(name+"_ms", d.Milliseconds())
}

// Err renders err as a string so JSON output stays readable
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Count logs name_count
func Count(name string, count int) slog.Attr {
	return slog.Int(name+"_count", count)
}

// Backend names the analytical store in use
func Backend(name string) slog.Attr {
	return slog.String("backend", name)
}

// HTTP groups method, path and status of a served request
func HTTP(method, path string, status int) []any {
	return []any{
		slog.String("http_method", method),
		slog.String("http_path", path),
		slog.Int("http_status", status),
	}
}

// File names a dataset or log path
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Query names the storage operation or view
func Query(operation string) slog.Attr {
	return slog.String("query", operation)
}

// Filters logs a filter state. The value renders itself through slog.LogValuer.
func Filters(f slog.LogValuer) slog.Attr {
	return slog.Any("filters", f)
}

// Rows is a result table length
func Rows(n int) slog.Attr {
	return slog.Int("rows", n)
}

// CacheKey is the memoization key of a query
func CacheKey(key string) slog.Attr {
	return slog.String("cache_key", key)
}
