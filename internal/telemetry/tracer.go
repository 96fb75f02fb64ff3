package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for filesystem operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// Client attributes
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// HTTP attributes
	AttrHTTPMethod    = "http.request.method"
	AttrHTTPRoute     = "http.route"
	AttrHTTPStatus    = "http.response.status_code"
	AttrHTTPRequestID = "http.request_id"

	// Filesystem attributes
	AttrOperation = "fs.operation" // Provider operation name
	AttrPath      = "fs.path"      // Virtual path
	AttrDestPath  = "fs.dest_path" // Destination path for move/copy
	AttrSize      = "fs.size"      // File size in bytes
	AttrMimeType  = "fs.mime_type"

	// User/Auth attributes
	AttrUserID   = "user.id"
	AttrUsername = "user.name"

	// Blob store attributes
	AttrBlobHash  = "blob.hash"      // SHA-256 content hash
	AttrBlobCount = "blob.ref_count" // Reference count
	AttrDedupHit  = "blob.dedup_hit" // Content already stored

	// Payload storage attributes
	AttrStoreType = "store.type" // fs, s3, memory
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"

	// Reaper attributes
	AttrReapedCount = "reaper.reaped_count"
)

// Span names.
// Format: <component>.<operation>
const (
	// Root span for API request processing
	SpanAPIRequest = "api.request"

	// Provider operation spans
	SpanVFSWrite  = "vfs.write_file"
	SpanVFSRead   = "vfs.read_file"
	SpanVFSDelete = "vfs.delete"
	SpanVFSMove   = "vfs.move"
	SpanVFSCopy   = "vfs.copy"
	SpanVFSList   = "vfs.list"

	// Payload store spans
	SpanPayloadPut    = "payload.put"
	SpanPayloadGet    = "payload.get"
	SpanPayloadDelete = "payload.delete"

	// Reaper spans
	SpanReaperSweep = "reaper.sweep"
)

// ClientIP creates a client IP attribute.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr creates a client address attribute (ip:port).
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// HTTPMethod creates an HTTP method attribute.
func HTTPMethod(method string) attribute.KeyValue {
	return attribute.String(AttrHTTPMethod, method)
}

// HTTPRoute creates an HTTP route attribute.
func HTTPRoute(route string) attribute.KeyValue {
	return attribute.String(AttrHTTPRoute, route)
}

// HTTPStatus creates an HTTP status code attribute.
func HTTPStatus(status int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, status)
}

// HTTPRequestID creates a request ID attribute.
func HTTPRequestID(id string) attribute.KeyValue {
	return attribute.String(AttrHTTPRequestID, id)
}

// FSOperation creates a filesystem operation attribute.
func FSOperation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// FSPath creates a virtual path attribute.
func FSPath(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// FSDestPath creates a destination path attribute.
func FSDestPath(path string) attribute.KeyValue {
	return attribute.String(AttrDestPath, path)
}

// FSSize creates a file size attribute.
func FSSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

// MimeType creates a MIME type attribute.
func MimeType(mime string) attribute.KeyValue {
	return attribute.String(AttrMimeType, mime)
}

// UserID creates a user ID attribute.
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

// Username creates a username attribute.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// BlobHash creates a content hash attribute.
func BlobHash(hash string) attribute.KeyValue {
	return attribute.String(AttrBlobHash, hash)
}

// BlobRefCount creates a reference count attribute.
func BlobRefCount(count int64) attribute.KeyValue {
	return attribute.Int64(AttrBlobCount, count)
}

// DedupHit creates a deduplication hit attribute.
func DedupHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrDedupHit, hit)
}

// StoreType creates a payload store type attribute.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket creates a storage bucket attribute.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey creates a storage key attribute.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// ReapedCount creates a reaped blob count attribute.
func ReapedCount(count int) attribute.KeyValue {
	return attribute.Int(AttrReapedCount, count)
}

// StartAPISpan starts a span for an incoming API request.
func StartAPISpan(ctx context.Context, method, route string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		HTTPMethod(method),
		HTTPRoute(route),
	}, attrs...)
	return Tracer().Start(ctx, SpanAPIRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(all...))
}

// StartVFSSpan starts a span for a filesystem provider operation.
func StartVFSSpan(ctx context.Context, name, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{FSPath(path)}, attrs...)
	return Tracer().Start(ctx, name, trace.WithAttributes(all...))
}

// StartPayloadSpan starts a span for a payload store operation.
func StartPayloadSpan(ctx context.Context, name, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{StorageKey(key)}, attrs...)
	return Tracer().Start(ctx, name, trace.WithAttributes(all...))
}
