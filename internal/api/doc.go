// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

/*
Package api provides the HTTP REST API layer for Pinboard.

Routes are served by a chi router under /api/v1:

  - Devices: list, create, fetch, update and delete devices, including the
    3D model upload (multipart/form-data).
  - Pins: create, update, bulk update, fetch and delete pins of a device,
    plus the per-device overview joining pins with their history.
  - History: query per-day pin history, delete an item's history or a
    single recorded change.
  - Bridge: read a pin value from the remote service or write one to it.

Every response uses the same envelope:

	{"message": "ok", "data": {...}, "code": 200}
	{"message": "device not found", "error": {"type": "NOT_FOUND", "message": "..."}, "code": 404}

The HTTP status always equals code.

Outside /api/v1 the router serves /health/live, /health/ready, /metrics
(Prometheus), /swagger/* (OpenAPI UI) and /shapes/* (uploaded model files).
*/
package api
