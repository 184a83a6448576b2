package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
)

// submit sends a homogeneous collection to the platform, choosing the
// synchronous collection endpoint for small collections and the asynchronous
// /batch endpoint (with the token/poll protocol) for larger ones. The
// returned results carry one normalized outcome per submitted record, after
// the retry policy has been applied.
func (c *Client) submit(ctx context.Context, d descriptor, records []batchRecord) ([]Result, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > d.maxBatch {
		return nil, errors.NewSizeLimitError(string(d.kind), len(records), d.maxBatch)
	}

	results, err := c.post(ctx, d, records)
	if err != nil {
		return nil, err
	}
	return c.applyRetryPolicy(ctx, d, records, results)
}

// post performs one POST round trip (plus the poll loop for large batches)
// and normalizes the response into per-record results.
func (c *Client) post(ctx context.Context, d descriptor, records []batchRecord) ([]Result, error) {
	url := c.url(d.path)
	if len(records) > syncBatchLimit {
		url += "/batch"
	}

	payloads := make([]map[string]any, len(records))
	for i, r := range records {
		payloads[i] = r.payload
	}
	body, err := json.Marshal(map[string]any{d.postHeading: payloads})
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Post(ctx, url, body)
	if err != nil {
		return nil, errors.NewConnectionError("platform", url, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, errors.NewConnectionError("platform", url, readErr)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.NewAPIError("platform", resp.StatusCode, "credentials rejected")
	}

	// A status token means the batch was queued rather than processed
	// inline; the real results come from the poll loop.
	if token := gjson.GetBytes(raw, "BatchStatusToken").String(); token != "" {
		logging.FromContext(ctx).Info().
			Str("kind", string(d.kind)).
			Str("batch_token", token).
			Msg("Received batch status token")
		raw, err = c.pollBatch(ctx, d, token)
		if err != nil {
			return nil, err
		}
		return parseBatchBody(d, records, http.StatusOK, raw)
	}

	return parseBatchBody(d, records, resp.StatusCode, raw)
}

// pollBatch re-reads the batch status endpoint at a fixed interval until the
// message no longer indicates processing or the wall-clock deadline elapses.
// On timeout the token is surfaced so the caller can check the batch later;
// the remote job is not cancelled.
func (c *Client) pollBatch(ctx context.Context, d descriptor, token string) ([]byte, error) {
	url := c.url(d.path, "batch", token)
	log := logging.FromContext(ctx)
	start := time.Now()

	operation := func() ([]byte, error) {
		resp, err := c.transport.Get(ctx, url, nil)
		if err != nil {
			return nil, backoff.Permanent(errors.NewConnectionError("platform", url, err))
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, backoff.Permanent(errors.NewConnectionError("platform", url, readErr))
		}

		message := gjson.GetBytes(raw, "Message").String()
		if stillProcessing(message) {
			log.Debug().Str("batch_token", token).Msg("Batch still processing")
			return nil, errBatchProcessing
		}
		return raw, nil
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxElapsedTime(c.maxBatchWait),
	)
	if err != nil {
		if errors.IsConnection(err) {
			return nil, err
		}
		return nil, errors.NewBatchTimeoutError(string(d.kind), token, time.Since(start))
	}
	return raw, nil
}

var errBatchProcessing = errors.New("batch still processing")

// stillProcessing matches the platform's processing banner.
func stillProcessing(message string) bool {
	return strings.HasPrefix(strings.ToLower(message), "the batch processing results")
}

// parseBatchBody normalizes the platform's two partial-failure payload
// shapes into per-record results: an object keyed by the POST heading (or
// "Users") with {Index, Message, Code} entries, or a bare list of
// {ValidationError, ImportUserId, Index} entries.
func parseBatchBody(d descriptor, records []batchRecord, status int, raw []byte) ([]Result, error) {
	results := make([]Result, len(records))
	for i, r := range records {
		results[i] = Result{ID: r.id, Outcome: OutcomeSuccess}
	}

	parsed := gjson.ParseBytes(raw)

	if parsed.IsArray() {
		// Bare list shape: indexes that failed validation carry a truthy
		// ValidationError; entries with a falsy one failed for other
		// reasons and stay eligible for the retry policy.
		for _, entry := range parsed.Array() {
			idx := int(entry.Get("Index").Int())
			if idx < 0 || idx >= len(records) {
				continue
			}
			if v := entry.Get("ValidationError"); v.Bool() || (v.Type == gjson.String && v.String() != "") {
				results[idx].Outcome = OutcomeValidationFailed
				results[idx].Message = v.String()
			} else {
				results[idx].Outcome = OutcomeUnrecognized
				results[idx].Message = entry.Get("Message").String()
			}
		}
		return results, nil
	}

	if parsed.IsObject() {
		var entries gjson.Result
		for _, label := range []string{d.postHeading, "Users"} {
			if arr := parsed.Get(label); arr.Exists() {
				entries = arr
				break
			}
		}
		if !entries.Exists() {
			if status >= 200 && status < 300 {
				return results, nil
			}
			return nil, errors.NewMalformedResponseError("platform", string(raw))
		}

		idToIndex := make(map[string]int, len(records))
		for i, r := range records {
			idToIndex[r.id] = i
		}

		for _, entry := range entries.Array() {
			if entry.Get("Code").Int() == http.StatusOK {
				continue
			}
			idx := -1
			if v := entry.Get("Index"); v.Exists() {
				idx = int(v.Int())
			} else if id := entry.Get(d.mainID).String(); id != "" {
				if i, ok := idToIndex[id]; ok {
					idx = i
				}
			}
			if idx < 0 || idx >= len(records) {
				continue
			}
			message := entry.Get("Message").String()
			results[idx].Outcome = classify(message)
			results[idx].Message = message
		}
		return results, nil
	}

	if status >= 200 && status < 300 {
		return results, nil
	}
	return nil, errors.NewMalformedResponseError("platform", string(raw))
}

// applyRetryPolicy handles the per-outcome follow-ups: duplicates become
// individual update calls, validation failures are dropped and reported, and
// every other failure is re-POSTed once as a smaller batch.
func (c *Client) applyRetryPolicy(ctx context.Context, d descriptor, records []batchRecord, results []Result) ([]Result, error) {
	log := logging.FromContext(ctx)

	var retry []batchRecord
	retryIndex := make(map[string]int, len(results))

	for i := range results {
		switch results[i].Outcome {
		case OutcomeSuccess, OutcomeAlreadyEnrolled:
		case OutcomeDuplicate:
			// A duplicate on create means the record exists and
			// should be updated instead.
			if err := c.putRecord(ctx, d, records[i]); err != nil {
				log.Warn().Err(err).Str("id", results[i].ID).
					Msg("Update of duplicate record failed")
			} else {
				results[i].Outcome = OutcomeSuccess
				results[i].Message = ""
			}
		case OutcomeValidationFailed:
			log.Info().Str("id", results[i].ID).Str("reason", results[i].Message).
				Msg("Record failed platform validation, dropping")
		default:
			retry = append(retry, records[i])
			retryIndex[records[i].id] = i
		}
	}

	if len(retry) > 0 {
		log.Debug().Int("count", len(retry)).Str("kind", string(d.kind)).
			Msg("Retrying failed records as a fresh batch")
		retried, err := c.post(ctx, d, retry)
		if err != nil {
			return results, err
		}
		for _, r := range retried {
			if i, ok := retryIndex[r.ID]; ok {
				results[i] = r
			}
		}
	}

	return results, nil
}

// putRecord updates a single existing record. The identity field travels in
// the URL, and the generated login password is never updated.
func (c *Client) putRecord(ctx context.Context, d descriptor, record batchRecord) error {
	payload := make(map[string]any, len(record.payload))
	for k, v := range record.payload {
		if k == d.mainID || k == "LoginPw" {
			continue
		}
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := c.url(d.path, record.id)
	resp, err := c.transport.Put(ctx, url, body)
	if err != nil {
		return errors.NewConnectionError("platform", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewAPIError("platform", resp.StatusCode, "update rejected for "+record.id)
	}
	return nil
}
