// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// @title Pinboard API
// @version 1.0
// @description Device catalog, pin management and per-day pin history for IoT dashboards.
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per IP address under /api/v1.
// @description
// @description ## Error Responses
// @description
// @description All responses share one envelope:
// @description ```json
// @description {
// @description   "message": "device not found",
// @description   "code": 404,
// @description   "error": {
// @description     "type": "NOT_FOUND",
// @description     "message": "device not found"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/pinboard/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:3000
// @BasePath /api/v1
// @schemes http https
//
// @tag.name Core
// @tag.description Health probes
//
// @tag.name Devices
// @tag.description Device catalog and model file uploads
//
// @tag.name Pins
// @tag.description Pin creation, updates and the sorted overview
//
// @tag.name History
// @tag.description Per-day pin change history
//
// @tag.name Bridge
// @tag.description Reads and writes against the remote pin API
package main
