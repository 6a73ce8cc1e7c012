package bulk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"nxenhance/pkg/domain"
	"nxenhance/pkg/nextdns"
)

// SplitLines turns textarea input into trimmed, non-empty entries.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// BulkAdd creates one list entry per domain, skipping those already in existing without a
// request. Each created entry is followed by the item delay.
func (o *Orchestrator) BulkAdd(ctx context.Context, list nextdns.Resource, domains []string, existing *domain.Set) (*Job[string], error) {
	job := newJob(domains)
	if len(domains) == 0 {
		return job, nil
	}

	o.progress.Start(fmt.Sprintf("Adding %d domains", len(domains)))
	for i, name := range domains {
		if existing.Has(name) {
			job.skip()
			o.progress.Update(fmt.Sprintf("Skipping existing %d/%d: %s", i+1, len(domains), name))
			continue
		}
		o.progress.Update(fmt.Sprintf("Adding %d/%d: %s", i+1, len(domains), name))

		body, err := o.client.Request(ctx, http.MethodPost, string(list), map[string]any{"id": name, "active": true})
		if err == nil && !nextdns.Accepted(body) {
			err = fmt.Errorf("rejected: %s", strings.TrimSpace(body))
		}
		if err != nil {
			o.log.Error("failed to add domain", "list", list, "domain", name, "error", err)
		}
		job.finish(name, err)

		if err := o.sleep(ctx, o.itemDelay); err != nil {
			o.progress.Done()
			return job, err
		}
	}
	o.log.Info("bulk add finished", "list", list, "added", job.Succeeded, "skipped", job.Skipped, "failed", len(job.Failed))
	o.finish(ctx)
	return job, nil
}

// BulkDelete removes the selected domains from list. Selections above the delete limit are
// truncated after the user agrees; smaller selections need a count confirmation.
func (o *Orchestrator) BulkDelete(ctx context.Context, list nextdns.Resource, domains []string) (*Job[string], error) {
	if len(domains) == 0 {
		o.alert(ctx, "Please select domains to delete first.")
		return newJob[string](nil), nil
	}
	if len(domains) > o.deleteLimit {
		msg := fmt.Sprintf("You selected %d domains.\nTo prevent rate-limiting errors (429), we will only delete the first %d items now.\n\nDo you want to proceed?",
			len(domains), o.deleteLimit)
		if err := o.confirm(ctx, msg); err != nil {
			return newJob[string](nil), err
		}
		domains = domains[:o.deleteLimit]
	} else {
		msg := fmt.Sprintf("Are you sure you want to delete %d domains from the %s?", len(domains), list)
		if err := o.confirm(ctx, msg); err != nil {
			return newJob[string](nil), err
		}
	}

	job := newJob(domains)
	o.progress.Start(fmt.Sprintf("Deleting %d domains", len(domains)))
	for _, name := range domains {
		_, err := o.client.Request(ctx, http.MethodDelete, nextdns.ItemPath(list, name), nil)
		if err != nil {
			o.log.Error("failed to delete domain", "list", list, "domain", name, "error", err)
		}
		job.finish(name, err)

		if err := o.sleep(ctx, o.itemDelay); err != nil {
			o.progress.Done()
			return job, err
		}
	}
	o.log.Info("bulk delete finished", "list", list, "deleted", job.Succeeded, "failed", len(job.Failed))
	o.finish(ctx)
	return job, nil
}

// ClearResult reports a list clear. Verified is false when the list still had entries
// after the last poll.
type ClearResult struct {
	Verified bool
	Polls    int
}

// ClearList empties list with a single request, then polls until the API reports no
// entries. A poll timeout is a warning, not an error.
func (o *Orchestrator) ClearList(ctx context.Context, list nextdns.Resource) (ClearResult, error) {
	msg := fmt.Sprintf("WARNING: This will delete ALL items in the %s!\n\nThis action cannot be undone.\n\nAre you absolutely sure?", list)
	if err := o.confirm(ctx, msg); err != nil {
		return ClearResult{}, err
	}

	o.progress.Start("Clearing list... This may take a few seconds")
	if _, err := o.client.Request(ctx, http.MethodPatch, "", map[string][]any{string(list): {}}); err != nil {
		o.log.Error("failed to clear list", "list", list, "error", err)
		o.progress.Done()
		o.alert(ctx, "Failed to clear list. See console for details.")
		return ClearResult{}, fmt.Errorf("clear %s: %w", list, err)
	}

	o.progress.Update("Verifying deletion...")
	var result ClearResult
	for result.Polls < o.clearPolls {
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			o.progress.Done()
			return result, err
		}
		result.Polls++
		body, err := o.client.Request(ctx, http.MethodGet, string(list), nil)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				o.progress.Done()
				return result, err
			}
			o.log.Warn("verification check failed", "list", list, "error", err)
			continue
		}
		if data := gjson.Get(body, "data"); data.IsArray() && len(data.Array()) == 0 {
			result.Verified = true
			break
		}
	}

	o.progress.Done()
	if !result.Verified {
		o.log.Warn("list not empty after clear", "list", list, "polls", result.Polls)
		o.alert(ctx, "Command sent, but list not yet empty. Please refresh manually in a few seconds.")
	} else {
		o.log.Info("list cleared", "list", list, "polls", result.Polls)
	}
	o.finish(ctx)
	return result, nil
}

// SuffixRemover clears every blocked top-level domain. *nextdns.SuffixBlocker implements it.
type SuffixRemover interface {
	RemoveAll(ctx context.Context) error
}

// RemoveAllSuffixes clears the blocked TLD list after confirmation.
func (o *Orchestrator) RemoveAllSuffixes(ctx context.Context, remover SuffixRemover) error {
	if err := o.confirm(ctx, "WARNING: This will remove ALL blocked TLDs.\nThis action cannot be undone.\nAre you absolutely sure?"); err != nil {
		return err
	}
	o.progress.Start("Removing all TLDs...")
	if err := remover.RemoveAll(ctx); err != nil {
		o.log.Error("failed to remove all TLDs", "error", err)
		o.progress.Done()
		o.alert(ctx, "Failed to remove all TLDs. See console for details.")
		return fmt.Errorf("remove all TLDs: %w", err)
	}
	o.log.Info("removed all blocked TLDs")
	o.finish(ctx)
	return nil
}
