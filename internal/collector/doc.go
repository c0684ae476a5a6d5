// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package collector pulls audit events from the organization
// events-stream API. The Client handles authentication, paging, rate
// limiting, and circuit breaking; the Poller drives periodic
// collection, persists the resume cursor in the durable store, and
// forwards batches to the pipeline. Delivery to the pipeline is
// at-least-once: the cursor only advances after a page has been
// forwarded, and the processor deduplicates replayed events by ID.
package collector
