package wtf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/internal/scan"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

var ErrEmptyExpression = errors.New("expression must not be empty")

type ReplaceOutcome struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Occurrences int    `json:"occurrences"`
	DryRun      bool   `json:"dry_run"`
	Version     int64  `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ReplaceMessage is the commit message of dashboards saved by Replace.
func ReplaceMessage(expression, replacement string) string {
	return fmt.Sprintf(`grafana-wtf: Replaced "%s" by "%s"`, expression, replacement)
}

// Replace substitutes expression by replacement in the serialized form of
// every scanned dashboard and saves the changed ones. Dashboards without an
// occurrence are skipped. With dryRun, nothing is written.
func (e *Engine) Replace(ctx context.Context, expression, replacement string, dryRun bool) ([]ReplaceOutcome, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	e.logger.Info("Replacing within Grafana",
		zap.String("url", e.grafanaURL),
		zap.String("expression", expression),
		zap.String("replacement", replacement),
		zap.Bool("dry_run", dryRun))

	data := e.Data()
	dashboards := make([]*types.Dashboard, len(data.Dashboards))
	copy(dashboards, data.Dashboards)

	outcomes := []ReplaceOutcome{}
	written := false
	for i, d := range dashboards {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		before, err := marshal(d)
		if err != nil {
			return outcomes, fmt.Errorf("failed to serialize dashboard %s: %w", d.UID(), err)
		}
		count := strings.Count(before, expression)
		if count == 0 {
			e.logger.Info("No replacements for dashboard", zap.String("uid", d.UID()))
			continue
		}

		outcome := ReplaceOutcome{
			UID:         d.UID(),
			Title:       d.Title(),
			URL:         index.JoinURL(e.grafanaURL, d.URL()),
			Occurrences: count,
			DryRun:      dryRun,
		}

		var updated types.Dashboard
		if err := unmarshal(strings.ReplaceAll(before, expression, replacement), &updated); err != nil {
			outcome.Error = fmt.Sprintf("replacement yields invalid JSON: %v", err)
			e.logger.Error("Skipping dashboard", zap.String("uid", d.UID()), zap.Error(err))
			outcomes = append(outcomes, outcome)
			continue
		}

		if dryRun {
			e.logger.Info("Would update dashboard", zap.String("uid", d.UID()), zap.Int("occurrences", count))
			outcomes = append(outcomes, outcome)
			continue
		}

		resp, err := e.api.UpdateDashboard(ctx, updateRequest(&updated, ReplaceMessage(expression, replacement)))
		written = true
		if err != nil {
			outcome.Error = err.Error()
			e.logger.Error("Failed to update dashboard", zap.String("uid", d.UID()), zap.Error(err))
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Version = resp.Version
		e.logger.Info("Updated dashboard", zap.String("uid", d.UID()), zap.Int64("version", resp.Version))
		dashboards[i] = &updated
		outcomes = append(outcomes, outcome)
	}

	if written {
		e.mu.Lock()
		e.data = &scan.Data{
			Datasources:   data.Datasources,
			DashboardList: data.DashboardList,
			Dashboards:    dashboards,
		}
		e.mu.Unlock()
		e.ClearCache()
	}
	return outcomes, nil
}

// updateRequest carries the folder over from the meta block, Grafana moves
// the dashboard to the General folder otherwise.
func updateRequest(d *types.Dashboard, message string) types.UpdateDashboardRequest {
	req := types.UpdateDashboardRequest{
		Dashboard: d.Dashboard,
		FolderUID: d.FolderUID(),
		Message:   message,
		Overwrite: true,
	}
	if id, ok := d.FolderID(); ok {
		req.FolderID = &id
	}
	return req
}

func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshal decodes exactly one JSON value, keeping numbers as json.Number.
func unmarshal(text string, v any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
