package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/capability-facade/pkg/commsutil"
	"github.com/morezero/capability-facade/pkg/db"
)

const fetchLogPrefix = "loader:fetch"

// DefaultRequestTimeout bounds a NATS document request when none is set.
const DefaultRequestTimeout = 5 * time.Second

// Fetcher reads the raw provider document at a location.
type Fetcher interface {
	// Fetch returns the document body and its format; an empty format
	// means the content should be sniffed.
	Fetch(ctx context.Context, location string) ([]byte, commsutil.Format, error)
}

// FileFetcher reads documents from disk. It accepts plain paths and file://
// URLs.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(ctx context.Context, location string) ([]byte, commsutil.Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%s - read %s: %w", fetchLogPrefix, path, err)
	}
	slog.Debug(fmt.Sprintf("%s - Read provider document %s (%d bytes)", fetchLogPrefix, path, len(data)))
	return data, formatFromExt(path), nil
}

func formatFromExt(path string) commsutil.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return commsutil.FormatYAML
	case ".json":
		return commsutil.FormatJSON
	}
	return ""
}

// NATSFetcher requests documents over COMMS. A location has the form
// nats://host:port/subject; the reply body is the document.
type NATSFetcher struct {
	// Conn is used when set. Otherwise a connection to the location's host
	// is opened for the request and closed afterwards.
	Conn    *comms.Conn
	Timeout time.Duration
}

// Fetch implements Fetcher.
func (f *NATSFetcher) Fetch(ctx context.Context, location string) ([]byte, commsutil.Format, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("%s - parse %s: %w", fetchLogPrefix, location, err)
	}
	subject := strings.Trim(u.Path, "/")
	if subject == "" {
		return nil, "", fmt.Errorf("%s - %s names no subject", fetchLogPrefix, location)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	nc := f.Conn
	if nc == nil {
		nc, err = commsutil.Connect("nats://"+u.Host, "facade-loader")
		if err != nil {
			return nil, "", err
		}
		defer nc.Close()
	}

	data, err := commsutil.Request(nc, subject, nil, timeout)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

// PostgresFetcher reads documents from the provider_documents table. A
// location is a Postgres URL with a document query parameter naming the row,
// e.g. postgres://user@host/db?sslmode=disable&document=default.
type PostgresFetcher struct {
	// Repository is used when set. Otherwise a pool is opened on the
	// location (minus the document parameter) for the read.
	Repository *db.Repository
}

// Fetch implements Fetcher.
func (f *PostgresFetcher) Fetch(ctx context.Context, location string) ([]byte, commsutil.Format, error) {
	dsn, name, err := splitDocumentLocation(location)
	if err != nil {
		return nil, "", err
	}

	repo := f.Repository
	if repo == nil {
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			return nil, "", err
		}
		defer pool.Close()
		repo = db.NewRepository(pool)
	}

	doc, err := repo.GetProviderDocument(ctx, name)
	if err != nil {
		return nil, "", err
	}
	if doc == nil {
		return nil, "", fmt.Errorf("%s - provider document %s not found", fetchLogPrefix, name)
	}
	return doc.Body, commsutil.Format(doc.Format), nil
}

// splitDocumentLocation separates the document name from the connection
// string of a postgres location.
func splitDocumentLocation(location string) (dsn, name string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("%s - parse location: %w", fetchLogPrefix, err)
	}
	q := u.Query()
	name = q.Get("document")
	if name == "" {
		return "", "", fmt.Errorf("%s - %s names no document", fetchLogPrefix, u.Redacted())
	}
	q.Del("document")
	u.RawQuery = q.Encode()
	return u.String(), name, nil
}

// schemeOf returns the lower-cased URL scheme of location, or "file" for a
// plain path.
func schemeOf(location string) string {
	scheme, _, ok := strings.Cut(location, "://")
	if !ok {
		return "file"
	}
	return strings.ToLower(scheme)
}
