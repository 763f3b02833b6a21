// Package ingest invokes the external ingestion adapter the control plane
// treats as an opaque, out-of-process collaborator: it lands raw rows into
// {tenant_slug}.{source}_{object} tables itself, and reports back only which
// objects it landed so the Scaffolder knows what to build on top of.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/orchestrator"
)

// BinaryResolver locates the ingestion adapter executable for one source
// platform, e.g. by looking up "{source_platform}-ingest" on $PATH.
type BinaryResolver func(sourcePlatform string) (string, error)

// PathResolver resolves a source platform to "{sourcePlatform}-ingest",
// deferring to exec.LookPath to fail fast if it isn't installed.
func PathResolver(sourcePlatform string) (string, error) {
	name := sourcePlatform + "-ingest"
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locating ingestion adapter %q: %w", name, err)
	}
	return path, nil
}

// summary is the one line of JSON an adapter writes to stdout after it
// finishes landing rows; everything else on stdout/stderr is adapter log
// output the control plane only surfaces, never parses.
type summary struct {
	Landed []struct {
		Object string `json:"object"`
	} `json:"landed"`
}

// ProcessAdapter runs one ingestion adapter per call as a subprocess,
// satisfying orchestrator.Ingestor.
type ProcessAdapter struct {
	resolve BinaryResolver
}

// New builds a ProcessAdapter using resolve to find each source's adapter
// binary. A nil resolve defaults to PathResolver.
func New(resolve BinaryResolver) *ProcessAdapter {
	if resolve == nil {
		resolve = PathResolver
	}
	return &ProcessAdapter{resolve: resolve}
}

// Ingest invokes "{binary} --tenant {tenantSlug} --days {days}", streaming
// its stderr to the control plane's own log output and parsing the final
// stdout line as the landed-object summary.
func (a *ProcessAdapter) Ingest(ctx context.Context, tenantSlug, sourcePlatform string, days int) ([]orchestrator.LandedRelation, error) {
	binary, err := a.resolve(sourcePlatform)
	if err != nil {
		return nil, &errkind.IngestFailureError{SourcePlat: sourcePlatform, Cause: err}
	}

	cmd := exec.CommandContext(ctx, binary,
		"--tenant", tenantSlug, "--days", strconv.Itoa(days))
	cmd.Stderr = newPrefixedLogger(sourcePlatform)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, &errkind.IngestFailureError{SourcePlat: sourcePlatform, Cause: err}
	}

	lastLine, err := lastNonEmptyLine(stdout.Bytes())
	if err != nil {
		return nil, &errkind.IngestFailureError{SourcePlat: sourcePlatform, Cause: err}
	}

	var s summary
	if err := json.Unmarshal(lastLine, &s); err != nil {
		return nil, &errkind.IngestFailureError{
			SourcePlat: sourcePlatform,
			Cause:      fmt.Errorf("decoding adapter summary: %w", err),
		}
	}

	out := make([]orchestrator.LandedRelation, 0, len(s.Landed))
	for _, l := range s.Landed {
		out = append(out, orchestrator.LandedRelation{Object: l.Object})
	}
	return out, nil
}

func lastNonEmptyLine(b []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	var last []byte
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			last = append([]byte(nil), line...)
		}
	}
	if last == nil {
		return nil, fmt.Errorf("adapter produced no output")
	}
	return last, nil
}

// prefixedLogger relays an adapter's stderr into the control plane's own
// logger, one line at a time, tagged with the source platform it came from.
type prefixedLogger struct {
	sourcePlatform string
}

func newPrefixedLogger(sourcePlatform string) *prefixedLogger {
	return &prefixedLogger{sourcePlatform: sourcePlatform}
}

func (p *prefixedLogger) Write(b []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		log.WithField("adapter", p.sourcePlatform).Debug(scanner.Text())
	}
	return len(b), nil
}
