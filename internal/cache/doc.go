// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

/*
Package cache provides an in-memory TTL cache used to memoize upstream API
responses, session data, and configuration lookups.

A single Cache instance is shared process-wide and partitioned with Namespace
wrappers ("api:", "session:", "config:") so use-cases cannot collide on keys.
Expiry is enforced lazily on access and eagerly by Sweep; the sweep schedule
is owned by a supervised service rather than an internal timer.

The cache is strictly best-effort. Nothing in it is a source of truth, and a
miss always means "recompute from the durable store or upstream API".
*/
package cache
