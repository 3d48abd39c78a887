package pipeline

import (
	"context"
	"strings"

	"curator/internal/host"
	"curator/internal/intake"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/services"
)

var scanTypes = []string{host.TypeMovie, host.TypeSeries}

// Scan pages through the host library and dispatches one work item per
// movie or series. The context is checked at every page and item; a
// cancelled scan returns ErrCancelled with the count dispatched so far.
func (o *Orchestrator) Scan(ctx context.Context, deep bool, dispatch intake.DispatchFunc) (int, error) {
	logger := logging.WithContext(ctx, o.logger)
	dispatched := 0
	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return dispatched, services.Cancelled(err)
		}
		items, total, err := o.host.ListItems(ctx, scanTypes, start, o.pageSize)
		if err != nil {
			if c := services.Cancelled(ctx.Err()); c != nil {
				return dispatched, c
			}
			return dispatched, services.Wrap(services.ErrTransient, "scan", "list items", "", err)
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return dispatched, services.Cancelled(err)
			}
			work := WorkItemForHost(item, deep)
			if work.ParentID == "" {
				continue
			}
			dispatch(work)
			dispatched++
		}
		start += len(items)
		logger.Debug("scan page", logging.Int("start", start), logging.Int("total", total))
		if len(items) == 0 || start >= total {
			break
		}
	}
	logger.Info("library scan dispatched",
		logging.String(logging.FieldEventType, "scan_completed"),
		logging.Int("dispatched", dispatched),
		logging.Bool("deep", deep),
	)
	o.publish(ctx, notifications.EventScanCompleted, notifications.Payload{"dispatched": dispatched})
	return dispatched, nil
}

// WorkItemForHost builds a work item for a host movie or series, as used by
// scans and manual reprocessing.
func WorkItemForHost(item host.Item, deep bool) intake.WorkItem {
	work := intake.NewWorkItem(strings.TrimSpace(item.ID), item.Type)
	work.Name = item.Name
	work.DeepRefresh = deep
	work.Events = 1
	for k, v := range item.ProviderIDs {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.TrimSpace(v) != "" {
			work.ExternalIDs[k] = strings.TrimSpace(v)
		}
	}
	return work
}
